package live

import "lettrly/internal/letter"

// View is what an inbox screen renders.
type View struct {
	Unread      []letter.Letter
	Read        []letter.Letter
	IsConnected bool
	Error       string
	Batch       Batch
}

// Empty reports whether the inbox has no letters at all.
func (v View) Empty() bool {
	return len(v.Unread) == 0 && len(v.Read) == 0
}

// BuildView splits the letters into unread and read, both newest first.
func BuildView(status Status, batch Batch) View {
	v := View{
		IsConnected: status.IsConnected,
		Error:       status.Error,
		Batch:       batch,
	}
	for _, l := range status.Letters {
		if l.IsRead {
			v.Read = append(v.Read, l)
		} else {
			v.Unread = append(v.Unread, l)
		}
	}
	return v
}
