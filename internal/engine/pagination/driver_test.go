package pagination

import (
	"fmt"
	"testing"

	"github.com/law-makers/harvest/pkg/models"
	"github.com/stretchr/testify/assert"
)

type seenSet map[string]bool

func (s seenSet) Contains(id string) bool { return s[id] }

type queryPages struct{}

func (queryPages) BuildPageDescriptor(page int) models.RequestDescriptor {
	return models.Get(fmt.Sprintf("https://board.example/list?page=%d", page))
}

func anns(titles ...string) []models.Announcement {
	out := make([]models.Announcement, len(titles))
	for i, t := range titles {
		out[i] = models.Announcement{Title: t}
	}
	return out
}

func TestNextPageForwardsDescriptor(t *testing.T) {
	d := NextPage(queryPages{}, 3)
	assert.Equal(t, models.MethodGet, d.Method)
	assert.Equal(t, "https://board.example/list?page=3", d.URL)
}

func TestExhaustedTieBreakOrder(t *testing.T) {
	p := Policy{MaxPages: 2, StopEarly: true}
	seen := seenSet{"a": true}

	done, why := p.Exhausted(3, nil, seen)
	assert.True(t, done)
	assert.Equal(t, ReasonMaxPages, why, "ceiling wins over empty page")

	done, why = p.Exhausted(3, anns("a"), seen)
	assert.True(t, done)
	assert.Equal(t, ReasonMaxPages, why, "ceiling wins over all-seen")

	done, why = p.Exhausted(1, nil, seen)
	assert.True(t, done)
	assert.Equal(t, ReasonEmptyPage, why)

	done, why = p.Exhausted(2, anns("a", " a "), seen)
	assert.True(t, done)
	assert.Equal(t, ReasonAllSeen, why)

	done, why = p.Exhausted(2, anns("a", "b"), seen)
	assert.False(t, done)
	assert.Equal(t, ReasonNone, why)
}

func TestExhaustedStopEarlyDisabled(t *testing.T) {
	p := Policy{MaxPages: 10}
	done, _ := p.Exhausted(2, anns("a"), seenSet{"a": true})
	assert.False(t, done)
}

func TestExhaustedDuplicateThreshold(t *testing.T) {
	p := Policy{MaxPages: 10, StopEarly: true, DuplicateThreshold: 2}
	seen := seenSet{"a": true, "b": true}

	done, why := p.Exhausted(1, anns("a", "b", "new"), seen)
	assert.True(t, done)
	assert.Equal(t, ReasonAllSeen, why)

	done, _ = p.Exhausted(1, anns("a", "new", "newer"), seen)
	assert.False(t, done)
}

func TestCeilingBoundsAnyAdapter(t *testing.T) {
	p := Policy{MaxPages: 5}
	iterations := 0
	for page := 1; ; page++ {
		if done, _ := p.Exhausted(page, anns(fmt.Sprintf("item-%d", page)), nil); done {
			break
		}
		iterations++
		if iterations > 100 {
			t.Fatal("pagination never terminated")
		}
	}
	assert.Equal(t, 5, iterations)
}

func TestFresh(t *testing.T) {
	got := Fresh(anns("a", "b", "b ", "", "c"), seenSet{"a": true})
	var titles []string
	for _, a := range got {
		titles = append(titles, a.Title)
	}
	assert.Equal(t, []string{"b", "c"}, titles)
}
