package user

import "time"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	AvatarURL    string    `json:"avatar_url"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the public part of a user, shown on the share link page.
type Profile struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Username    string `json:"username" validate:"required,min=3,max=30,username"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"max=50"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ID          string `json:"id"`
	Username    string `json:"username"`
}

// UpdateProfileRequest is the body of PATCH /api/me. Nil fields are left
// alone; an empty display name or avatar clears it.
type UpdateProfileRequest struct {
	Username    *string `json:"username" validate:"omitempty,min=3,max=30,username"`
	DisplayName *string `json:"display_name" validate:"omitempty,max=50"`
	AvatarURL   *string `json:"avatar_url" validate:"omitempty,max=500,avatar_url"`
}

// ProfileStats summarizes the owner's inbox for the settings page.
type ProfileStats struct {
	TotalLetters     int64     `json:"total_letters"`
	UnreadLetters    int64     `json:"unread_letters"`
	FavoritedLetters int64     `json:"favorited_letters"`
	MemberSince      time.Time `json:"member_since"`
}

type UsernameAvailability struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

const (
	usernameMinLength = 3
	usernameMaxLength = 30
)

// reservedUsernames collide with app routes or the brand.
var reservedUsernames = map[string]struct{}{
	"admin": {}, "api": {}, "auth": {}, "dashboard": {}, "login": {}, "register": {},
	"settings": {}, "profile": {}, "user": {}, "users": {}, "help": {}, "support": {},
	"about": {}, "contact": {}, "terms": {}, "privacy": {}, "lettrly": {},
}

func IsReservedUsername(username string) bool {
	_, ok := reservedUsernames[normalizeUsername(username)]
	return ok
}
