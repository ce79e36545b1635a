package live

import (
	"fmt"
	"sync"

	"lettrly/internal/letter"
)

// Batch is a copy of the aggregator state at one instant.
type Batch struct {
	UnreadCount    int
	PendingLetters []letter.Letter
	BannerVisible  bool
}

// ShowBanner reports whether there is anything for the banner to announce.
func (b Batch) ShowBanner() bool {
	return b.BannerVisible && len(b.PendingLetters) > 0
}

func (b Batch) Headline() string {
	if len(b.PendingLetters) == 1 {
		return "You have a new letter!"
	}
	return fmt.Sprintf("You have %d new letters!", len(b.PendingLetters))
}

func (b Batch) Detail() string {
	if len(b.PendingLetters) == 1 {
		return "From " + b.PendingLetters[0].SenderName()
	}
	return fmt.Sprintf("%d new messages just arrived", len(b.PendingLetters))
}

// Aggregator collects letters that arrived while the inbox was open into one
// dismissible batch. The unread count is kept beside it and is always set
// from a full snapshot.
type Aggregator struct {
	mu      sync.Mutex
	unread  int
	pending []letter.Letter
	visible bool
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

func (a *Aggregator) SetUnreadCount(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unread = n
}

// AddNewLetters prepends letters to the pending batch and shows the banner.
// An empty list changes nothing.
func (a *Aggregator) AddNewLetters(letters []letter.Letter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.addLocked(letters)
}

// ClearNewLetters empties the batch once the user has looked at it.
func (a *Aggregator) ClearNewLetters() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = nil
	a.visible = false
}

// DismissBatchNotification hides the banner and keeps the pending letters.
func (a *Aggregator) DismissBatchNotification() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.visible = false
}

// Apply sets the unread count and adds the new letters of one frame under a
// single lock, so readers never see one without the other.
func (a *Aggregator) Apply(unread int, newLetters []letter.Letter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unread = unread
	a.addLocked(newLetters)
}

func (a *Aggregator) Batch() Batch {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Batch{
		UnreadCount:    a.unread,
		PendingLetters: append([]letter.Letter(nil), a.pending...),
		BannerVisible:  a.visible,
	}
}

func (a *Aggregator) addLocked(letters []letter.Letter) {
	if len(letters) == 0 {
		return
	}
	merged := make([]letter.Letter, 0, len(letters)+len(a.pending))
	merged = append(merged, letters...)
	a.pending = append(merged, a.pending...)
	a.visible = true
}
