package inbox

import (
	"sort"

	"lettrly/internal/letter"
)

// IDSet is the set of letter ids seen in one snapshot.
type IDSet map[string]struct{}

// IDs collects the ids of a snapshot.
func IDs(snapshot []letter.Letter) IDSet {
	set := make(IDSet, len(snapshot))
	for _, l := range snapshot {
		set[l.ID] = struct{}{}
	}
	return set
}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Delta is the difference between a baseline id set and the current snapshot.
// Letters is the full current snapshot and is authoritative for field values.
type Delta struct {
	Letters    []letter.Letter
	NewLetters []letter.Letter
	DeletedIDs []string
}

// Empty reports whether nothing arrived and nothing was removed.
func (d Delta) Empty() bool {
	return len(d.NewLetters) == 0 && len(d.DeletedIDs) == 0
}

// Diff compares by identity only. A letter whose flags changed is not new.
// NewLetters keeps the snapshot order; DeletedIDs is sorted.
func Diff(previous IDSet, current []letter.Letter) Delta {
	d := Delta{Letters: current}

	seen := make(IDSet, len(current))
	for _, l := range current {
		seen[l.ID] = struct{}{}
		if !previous.Has(l.ID) {
			d.NewLetters = append(d.NewLetters, l)
		}
	}

	for id := range previous {
		if !seen.Has(id) {
			d.DeletedIDs = append(d.DeletedIDs, id)
		}
	}
	sort.Strings(d.DeletedIDs)
	return d
}
