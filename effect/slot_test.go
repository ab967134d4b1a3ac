package effect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptySlot(t *testing.T) {
	t.Parallel()

	var slot Slot[string]

	assert.True(t, slot.Empty())
	assert.True(t, slot.Ticket().IsZero())
	assert.True(t, slot.Last().IsZero())

	val, ok := slot.Pending()
	assert.False(t, ok)
	assert.Empty(t, val)
	assert.Equal(t, "None", slot.String())
}

func TestIssueAssignsIncreasingTickets(t *testing.T) {
	t.Parallel()

	var slot Slot[string]

	first := slot.Issue("send")
	second := first.Issue("check")

	assert.Equal(t, Ticket(1), first.Ticket())
	assert.Equal(t, Ticket(2), second.Ticket())

	val, ok := second.Pending()
	assert.True(t, ok)
	assert.Equal(t, "check", val)

	// The receiver is never modified.
	val, ok = first.Pending()
	assert.True(t, ok)
	assert.Equal(t, "send", val)
}

func TestHandledKeepsSequence(t *testing.T) {
	t.Parallel()

	var slot Slot[int]

	slot = slot.Issue(7).Handled()

	assert.True(t, slot.Empty())
	assert.True(t, slot.Ticket().IsZero())
	assert.Equal(t, Ticket(1), slot.Last())

	slot = slot.Issue(8)
	assert.Equal(t, Ticket(2), slot.Ticket())
}

func TestHandledOnEmptySlotIsNoop(t *testing.T) {
	t.Parallel()

	slot := Slot[int]{}.Issue(1).Handled()

	assert.Equal(t, slot, slot.Handled())
}

func TestAccepts(t *testing.T) {
	t.Parallel()

	slot := Slot[string]{}.Issue("a").Issue("b")

	tests := []struct {
		name   string
		ticket Ticket
		want   bool
	}{
		{"untagged", 0, true},
		{"latest", 2, true},
		{"superseded", 1, false},
		{"from the future", 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, slot.Accepts(tt.ticket))
		})
	}

	// Acknowledging the effect does not make its result stale.
	assert.True(t, slot.Handled().Accepts(2))
}
