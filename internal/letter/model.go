package letter

import "time"

// Letter is one message left for a recipient. The JSON names are the wire
// format of both the REST API and the live inbox stream.
type Letter struct {
	ID                string     `json:"id"`
	Content           string     `json:"content"`
	SenderID          *string    `json:"sender_id"`
	SenderDisplayName *string    `json:"sender_display_name"`
	RecipientID       string     `json:"recipient_id"`
	IsAnonymous       bool       `json:"is_anonymous"`
	IsRead            bool       `json:"is_read"`
	IsFavorited       bool       `json:"is_favorited"`
	CreatedAt         time.Time  `json:"created_at"`
	ReadAt            *time.Time `json:"read_at"`
}

// SenderName is the name used in "From ..." lines such as the new letter
// banner, "Anonymous" when none was given.
func (l Letter) SenderName() string {
	if l.SenderDisplayName == nil || *l.SenderDisplayName == "" {
		return "Anonymous"
	}
	return *l.SenderDisplayName
}

// Signature is the sender as shown on the letter itself. Unlike SenderName
// it tells an anonymous letter from a signed one whose sender left no
// display name, which reads "Someone".
func (l Letter) Signature() string {
	if l.IsAnonymous {
		return "Anonymous"
	}
	if l.SenderDisplayName == nil || *l.SenderDisplayName == "" {
		return "Someone"
	}
	return *l.SenderDisplayName
}

// CountUnread returns the number of letters not yet read.
func CountUnread(letters []Letter) int {
	n := 0
	for _, l := range letters {
		if !l.IsRead {
			n++
		}
	}
	return n
}

// SendRequest is the JSON body of a public send.
type SendRequest struct {
	Content     string `json:"content" validate:"required"`
	SenderName  string `json:"sender_name" validate:"max=100"`
	IsAnonymous bool   `json:"is_anonymous"`
}

type FavoriteRequest struct {
	IsFavorited bool `json:"is_favorited"`
}

// Sender identifies who is sending. SenderID is empty for signed-out visitors.
type Sender struct {
	SenderID    string
	DisplayName string
	Anonymous   bool
}
