package types

// PageTermination selects how slot-picker pagination detects its last page
type PageTermination int

const (
	// TerminateOnDuplicateDay stops once a page's last day label was already collected
	TerminateOnDuplicateDay PageTermination = iota
	// TerminateOnDisabledNext stops once the "next" control reports itself disabled
	TerminateOnDisabledNext
)

func (p PageTermination) String() string {
	switch p {
	case TerminateOnDuplicateDay:
		return "duplicate-day"
	case TerminateOnDisabledNext:
		return "disabled-next"
	}
	return "unknown"
}

// DayColumn is one day of a slot-picker page: time label -> availability label
type DayColumn struct {
	Day   string
	Slots []Slot
}

// Slot is a single cell of the slot picker
type Slot struct {
	Time  string
	Label string
}

// SlotTable is a sparse (day, time) -> label matrix built page by page.
// Days and Times keep first-seen order.
type SlotTable struct {
	Days  []string
	Times []string
	Cells map[string]map[string]string
}

// NewSlotTable creates an empty table
func NewSlotTable() *SlotTable {
	return &SlotTable{Cells: make(map[string]map[string]string)}
}

// HasDay reports whether a day column was already collected
func (t *SlotTable) HasDay(day string) bool {
	_, ok := t.Cells[day]
	return ok
}

// Get returns the label at (day, time)
func (t *SlotTable) Get(day, time string) (string, bool) {
	col, ok := t.Cells[day]
	if !ok {
		return "", false
	}
	label, ok := col[time]
	return label, ok
}

// Merge adds a page of columns to the table and returns how many days were new.
// Cells already present are never overwritten.
func (t *SlotTable) Merge(columns []DayColumn) int {
	added := 0
	for _, column := range columns {
		col, ok := t.Cells[column.Day]
		if !ok {
			col = make(map[string]string)
			t.Cells[column.Day] = col
			t.Days = append(t.Days, column.Day)
			added++
		}
		for _, slot := range column.Slots {
			if _, exists := col[slot.Time]; exists {
				continue
			}
			col[slot.Time] = slot.Label
			t.addTime(slot.Time)
		}
	}
	return added
}

func (t *SlotTable) addTime(time string) {
	for _, existing := range t.Times {
		if existing == time {
			return
		}
	}
	t.Times = append(t.Times, time)
}
