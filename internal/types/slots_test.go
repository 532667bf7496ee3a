package types

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestSlotTable_MergeKeepsFirstSeen(t *testing.T) {
	table := NewSlotTable()

	added := table.Merge([]DayColumn{
		{Day: "Mon", Slots: []Slot{{Time: "9am", Label: "Available"}}},
		{Day: "Tue", Slots: []Slot{{Time: "9am", Label: "Full"}}},
	})
	assert.Equal(t, 2, added)

	added = table.Merge([]DayColumn{
		{Day: "Tue", Slots: []Slot{{Time: "9am", Label: "Available"}, {Time: "11am", Label: "Available"}}},
		{Day: "Wed", Slots: []Slot{{Time: "11am", Label: "Full"}}},
	})
	assert.Equal(t, 1, added)

	label, ok := table.Get("Tue", "9am")
	assert.True(t, ok)
	assert.Equal(t, "Full", label)

	want := map[string]map[string]string{
		"Mon": {"9am": "Available"},
		"Tue": {"9am": "Full", "11am": "Available"},
		"Wed": {"11am": "Full"},
	}
	if diff := cmp.Diff(want, table.Cells); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"Mon", "Tue", "Wed"}, table.Days)
	assert.Equal(t, []string{"9am", "11am"}, table.Times)
}

func TestSlotTable_GetMissing(t *testing.T) {
	table := NewSlotTable()
	_, ok := table.Get("Mon", "9am")
	assert.False(t, ok)
	assert.False(t, table.HasDay("Mon"))
}

func TestPageTermination_String(t *testing.T) {
	assert.Equal(t, "duplicate-day", TerminateOnDuplicateDay.String())
	assert.Equal(t, "disabled-next", TerminateOnDisabledNext.String())
}
