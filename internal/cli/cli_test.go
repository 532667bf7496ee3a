package cli

import (
	"bytes"
	"strings"
	"testing"

	"grocery-helpers/internal/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewLogger(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, logrus.InfoLevel, NewLogger(false).GetLevel())
	assert.Equal(t, logrus.DebugLevel, NewLogger(true).GetLevel())

	t.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, logrus.WarnLevel, NewLogger(true).GetLevel())

	t.Setenv("LOG_LEVEL", "nonsense")
	assert.Equal(t, logrus.DebugLevel, NewLogger(true).GetLevel())
}

func TestRenderSlots(t *testing.T) {
	slots := types.NewSlotTable()
	slots.Merge([]types.DayColumn{
		{Day: "Mon Jan 4", Slots: []types.Slot{{Time: "9:00", Label: "Available"}, {Time: "10:00", Label: "Full"}}},
		{Day: "Tue Jan 5", Slots: []types.Slot{{Time: "10:00", Label: "Available"}}},
	})

	var out bytes.Buffer
	RenderSlots(&out, slots)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 6)
	assert.Contains(t, lines[1], "MON JAN 4")
	assert.Contains(t, lines[1], "TUE JAN 5")
	assert.Contains(t, lines[3], "9:00")
	assert.Contains(t, lines[3], "Available")
	assert.Contains(t, lines[4], "10:00")
	assert.Contains(t, lines[4], "Full")
}
