package inbox

import "lettrly/internal/letter"

const (
	TypeInit   = "init"
	TypeUpdate = "update"
)

// Message is one frame of the live inbox stream.
type Message struct {
	Type       string          `json:"type"`
	Letters    []letter.Letter `json:"letters"`
	NewLetters []letter.Letter `json:"newLetters,omitzero"`
	DeletedIDs []string        `json:"deletedIds,omitzero"`
}

func initMessage(snapshot []letter.Letter) Message {
	return Message{Type: TypeInit, Letters: nonNil(snapshot)}
}

// updateMessage always carries both lists, even when one is empty; init
// frames leave them nil so omitzero drops them.
func updateMessage(d Delta) Message {
	return Message{
		Type:       TypeUpdate,
		Letters:    nonNil(d.Letters),
		NewLetters: nonNil(d.NewLetters),
		DeletedIDs: nonNilIDs(d.DeletedIDs),
	}
}

func nonNil(l []letter.Letter) []letter.Letter {
	if l == nil {
		return []letter.Letter{}
	}
	return l
}

func nonNilIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
