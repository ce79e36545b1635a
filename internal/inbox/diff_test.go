package inbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"lettrly/internal/letter"
)

func mk(id string, at int) letter.Letter {
	return letter.Letter{ID: id, RecipientID: "r-1", Content: id, CreatedAt: time.Unix(int64(at), 0).UTC()}
}

func ids(letters []letter.Letter) []string {
	out := make([]string, 0, len(letters))
	for _, l := range letters {
		out = append(out, l.ID)
	}
	return out
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		previous []string
		current  []letter.Letter
		wantNew  []string
		wantGone []string
	}{
		{name: "both empty", wantNew: []string{}},
		{name: "empty previous", current: []letter.Letter{mk("b", 2), mk("a", 1)}, wantNew: []string{"b", "a"}},
		{name: "empty current", previous: []string{"a", "b"}, wantNew: []string{}, wantGone: []string{"a", "b"}},
		{name: "disjoint", previous: []string{"x", "y"}, current: []letter.Letter{mk("b", 2), mk("a", 1)}, wantNew: []string{"b", "a"}, wantGone: []string{"x", "y"}},
		{name: "one arrival keeps order", previous: []string{"a", "c"}, current: []letter.Letter{mk("d", 4), mk("c", 3), mk("b", 2), mk("a", 1)}, wantNew: []string{"d", "b"}},
		{name: "one removal", previous: []string{"a", "b", "c"}, current: []letter.Letter{mk("c", 3), mk("a", 1)}, wantNew: []string{}, wantGone: []string{"b"}},
		{name: "unchanged", previous: []string{"a", "b"}, current: []letter.Letter{mk("b", 2), mk("a", 1)}, wantNew: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := IDSet{}
			for _, id := range tt.previous {
				prev[id] = struct{}{}
			}

			d := Diff(prev, tt.current)

			assert.Equal(t, tt.wantNew, ids(d.NewLetters))
			assert.Equal(t, tt.wantGone, d.DeletedIDs)
			assert.Equal(t, len(tt.current), len(d.Letters))
			assert.Equal(t, len(tt.wantNew) == 0 && len(tt.wantGone) == 0, d.Empty())

			current := IDs(tt.current)
			for _, l := range d.NewLetters {
				assert.True(t, current.Has(l.ID), "new letters are part of the full set")
			}
			for _, id := range d.DeletedIDs {
				assert.False(t, current.Has(id), "deleted ids are not in the full set")
			}
		})
	}
}

func TestDiff_IgnoresFieldChanges(t *testing.T) {
	before := []letter.Letter{mk("a", 1)}
	after := []letter.Letter{mk("a", 1)}
	after[0].IsRead = true
	after[0].IsFavorited = true

	d := Diff(IDs(before), after)

	assert.True(t, d.Empty())
	assert.True(t, d.Letters[0].IsRead, "full set still carries current field values")
}

func TestDiff_Idempotent(t *testing.T) {
	prev := IDs([]letter.Letter{mk("a", 1), mk("z", 0)})
	current := []letter.Letter{mk("b", 2), mk("a", 1)}

	assert.Equal(t, Diff(prev, current), Diff(prev, current))
}
