package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoUpdates          = errors.New("no updates provided")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrUsernameReserved   = errors.New("this username is reserved")
)

type userRepository interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UsernameTaken(ctx context.Context, username, exceptID string) (bool, error)
	UpdateProfile(ctx context.Context, u *User) error
	DeleteUser(ctx context.Context, id string) error
	Stats(ctx context.Context, id string) (*ProfileStats, error)
}

type Service struct {
	repo      userRepository
	jwtSecret string
	tokenTTL  time.Duration
}

type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func NewService(repo userRepository, secret string, tokenTTL time.Duration) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: secret,
		tokenTTL:  tokenTTL,
	}
}

func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*Profile, error) {
	username := normalizeUsername(req.Username)
	if err := CheckUsername(username); err != nil {
		return nil, err
	}

	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Username:     username,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		PasswordHash: string(hashedPwd),
		CreatedAt:    time.Now().UTC(),
	}
	if u.DisplayName == "" {
		u.DisplayName = u.Username
	}

	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u.Profile(), nil
}

func (s *Service) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	u, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	ss, err := s.IssueToken(u.ID, u.Username)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		AccessToken: ss,
		ID:          u.ID,
		Username:    u.Username,
	}, nil
}

// IssueToken signs an HS256 token for the user.
func (s *Service) IssueToken(userID, username string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    "lettrly",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	})

	ss, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return ss, nil
}

func (s *Service) ValidateToken(tokenString string) (string, string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer("lettrly"))
	if err != nil {
		return "", "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", "", errors.New("invalid token")
	}

	return claims.Subject, claims.Username, nil
}

// RecipientID resolves a share link username to the user id letters go to.
func (s *Service) RecipientID(ctx context.Context, username string) (string, error) {
	u, err := s.repo.GetUserByUsername(ctx, normalizeUsername(username))
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

func (s *Service) Profile(ctx context.Context, username string) (*Profile, error) {
	u, err := s.repo.GetUserByUsername(ctx, normalizeUsername(username))
	if err != nil {
		return nil, err
	}
	return u.Profile(), nil
}

func (s *Service) Me(ctx context.Context, userID string) (*User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// UpdateProfile applies the non-nil fields of req to the user. A blank
// display name falls back to the username, as on registration.
func (s *Service) UpdateProfile(ctx context.Context, userID string, req *UpdateProfileRequest) (*User, error) {
	if req.Username == nil && req.DisplayName == nil && req.AvatarURL == nil {
		return nil, ErrNoUpdates
	}

	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Username != nil {
		name := normalizeUsername(*req.Username)
		if err := CheckUsername(name); err != nil {
			return nil, err
		}
		if name != u.Username {
			taken, err := s.repo.UsernameTaken(ctx, name, u.ID)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, ErrUserTaken
			}
			u.Username = name
		}
	}
	if req.DisplayName != nil {
		u.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if u.DisplayName == "" {
		u.DisplayName = u.Username
	}
	if req.AvatarURL != nil {
		u.AvatarURL = strings.TrimSpace(*req.AvatarURL)
	}

	if err := s.repo.UpdateProfile(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// UsernameAvailable reports whether userID could switch to username.
// Invalid and reserved names are unavailable with a reason.
func (s *Service) UsernameAvailable(ctx context.Context, userID, username string) (*UsernameAvailability, error) {
	name := normalizeUsername(username)
	res := &UsernameAvailability{Username: name}
	if err := CheckUsername(name); err != nil {
		res.Reason = err.Error()
		return res, nil
	}

	taken, err := s.repo.UsernameTaken(ctx, name, userID)
	if err != nil {
		return nil, err
	}
	res.Available = !taken
	if taken {
		res.Reason = "this username is already taken"
	}
	return res, nil
}

// DeleteAccount removes the user and, through the schema, every letter
// addressed to them.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	return s.repo.DeleteUser(ctx, userID)
}

func (s *Service) Stats(ctx context.Context, userID string) (*ProfileStats, error) {
	return s.repo.Stats(ctx, userID)
}

// CheckUsername applies the registration rules to an already normalized name.
func CheckUsername(username string) error {
	switch {
	case len(username) < usernameMinLength:
		return fmt.Errorf("%w: must be at least %d characters", ErrInvalidUsername, usernameMinLength)
	case len(username) > usernameMaxLength:
		return fmt.Errorf("%w: must be no more than %d characters", ErrInvalidUsername, usernameMaxLength)
	case !usernamePattern.MatchString(username):
		return fmt.Errorf("%w: only letters, numbers, hyphens and underscores are allowed", ErrInvalidUsername)
	case IsReservedUsername(username):
		return ErrUsernameReserved
	}
	return nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (u *User) Profile() *Profile {
	return &Profile{Username: u.Username, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL}
}
