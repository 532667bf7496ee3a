package adapters

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"grocery-helpers/internal/types"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loblawLocatorPage = `
<ul>
  <li class="location-list-item" data-store-id="1517">
    <span class="location-list-item__name">Shawnessy</span>
    <span class="location-list-item__address">15915 MacLeod Trail SE</span>
    <button class="location-list-item__select-button">Select</button>
  </li>
  <li class="location-list-item" data-store-id="1577">
    <span class="location-list-item__name">Country Hills</span>
    <span class="location-list-item__address">4700 130 Ave SE</span>
    <button class="location-list-item__select-button">Select</button>
  </li>
</ul>
<button class="fulfillment-mode-button__timeslot">Pick a time</button>`

// loblawDay renders one slot-picker column; slots are "time=status" pairs
func loblawDay(label string, slots ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="timeslot-selector__day"><h3 class="timeslot-selector__day__label">%s</h3>`, label)
	for _, slot := range slots {
		time, status, _ := strings.Cut(slot, "=")
		fmt.Fprintf(&b, `<div class="timeslot-selector__slot"><span class="timeslot-selector__slot__time">%s</span><span class="timeslot-selector__slot__status">%s</span></div>`, time, status)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func loblawSlotPage(days ...string) string {
	return page(`<div class="timeslot-selector">` + strings.Join(days, "") +
		`<button class="timeslot-selector__next-button">Next</button></div>`)
}

func TestLoblawAdapter_GetPickupSlots_DuplicateDayEndsPaging(t *testing.T) {
	session := newFakeSession()
	locator := rcss + "/store-locator?searchQuery=T2P+1J9"
	session.show(locator, page(loblawLocatorPage))
	session.show("slots:1", loblawSlotPage(
		loblawDay("Mon Jan 4", "9:00=Available", "10:00=Full"),
		loblawDay("Tue Jan 5", "9:00=Available"),
	))
	session.show("slots:2", loblawSlotPage(
		loblawDay("Wed Jan 6", "9:00=Full"),
		loblawDay("Thu Jan 7", "9:00=Available"),
	))
	session.show("slots:3", loblawSlotPage(
		loblawDay("Fri Jan 8", "11:00=Available"),
		loblawDay("Tue Jan 5", "9:00=Full", "12:00=Available"),
	))
	session.onClick[loblawSlots.openPicker] = func(f *fakeSession) { f.current = "slots:1" }
	pageNumber := 1
	session.onClick[loblawSlots.next] = func(f *fakeSession) {
		pageNumber++
		f.current = fmt.Sprintf("slots:%d", pageNumber)
	}
	adapter, _ := newTestLoblaw(t, session)

	table, err := adapter.GetPickupSlots(context.Background(), "T2P 1J9", "country hills")

	require.NoError(t, err)
	assert.Equal(t, []string{
		".location-list-item[data-store-id='1577'] .location-list-item__select-button",
		loblawSlots.openPicker,
		loblawSlots.next,
		loblawSlots.next,
	}, session.clicks)
	assert.Equal(t, 3, pageNumber)

	want := &types.SlotTable{
		Days:  []string{"Mon Jan 4", "Tue Jan 5", "Wed Jan 6", "Thu Jan 7", "Fri Jan 8"},
		Times: []string{"9:00", "10:00", "11:00", "12:00"},
		Cells: map[string]map[string]string{
			"Mon Jan 4": {"9:00": "Available", "10:00": "Full"},
			"Tue Jan 5": {"9:00": "Available", "12:00": "Available"},
			"Wed Jan 6": {"9:00": "Full"},
			"Thu Jan 7": {"9:00": "Available"},
			"Fri Jan 8": {"11:00": "Available"},
		},
	}
	if diff := cmp.Diff(want, table); diff != "" {
		t.Errorf("slot table mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, session.released)
}

func TestLoblawAdapter_GetPickupSlots_PageCap(t *testing.T) {
	session := newFakeSession()
	session.show(rcss+"/store-locator?searchQuery=T2P+1J9", page(loblawLocatorPage))
	pageNumber := 0
	advance := func(f *fakeSession) {
		pageNumber++
		key := fmt.Sprintf("slots:%d", pageNumber)
		f.show(key, loblawSlotPage(loblawDay(fmt.Sprintf("Day %d", pageNumber), "9:00=Available")))
		f.current = key
	}
	session.onClick[loblawSlots.openPicker] = advance
	session.onClick[loblawSlots.next] = advance
	adapter, _ := newTestLoblaw(t, session)
	adapter.Config().MaxSlotPages = 3

	table, err := adapter.GetPickupSlots(context.Background(), "T2P 1J9", "")

	require.NoError(t, err)
	assert.Equal(t, []string{"Day 1", "Day 2", "Day 3"}, table.Days)
	assert.Equal(t, ".location-list-item[data-store-id='1517'] .location-list-item__select-button", session.clicks[0])
}

func TestLoblawAdapter_GetPickupSlots_UnknownLocation(t *testing.T) {
	session := newFakeSession()
	session.show(rcss+"/store-locator?searchQuery=T2P+1J9", page(loblawLocatorPage))
	adapter, _ := newTestLoblaw(t, session)

	_, err := adapter.GetPickupSlots(context.Background(), "T2P 1J9", "Moncton")

	assert.ErrorIs(t, err, types.ErrLocationNotFound)
	assert.Empty(t, session.clicks)
	assert.Equal(t, 1, session.released)
}

func TestLoblawAdapter_GetPickupLocations(t *testing.T) {
	session := newFakeSession()
	session.show(rcss+"/store-locator?searchQuery=T2P+1J9", page(strings.Replace(loblawLocatorPage,
		`class="location-list-item" data-store-id="1577"`,
		`class="location-list-item location-list-item--selected" data-store-id="1577"`, 1)))
	adapter, _ := newTestLoblaw(t, session)

	locations, err := adapter.GetPickupLocations(context.Background(), "T2P 1J9")

	require.NoError(t, err)
	assert.Equal(t, []types.PickupLocation{
		{ID: "1517", Name: "Shawnessy", Address: "15915 MacLeod Trail SE"},
		{ID: "1577", Name: "Country Hills", Address: "4700 130 Ave SE", Selected: true},
	}, locations)
}

func TestPickLocation(t *testing.T) {
	locations := []types.PickupLocation{
		{ID: "1", Name: "Shawnessy"},
		{ID: "2", Name: "Country Hills"},
	}

	first, err := pickLocation(locations, "")
	require.NoError(t, err)
	assert.Equal(t, "1", first.ID)

	near, err := pickLocation(locations, "Country Hils")
	require.NoError(t, err)
	assert.Equal(t, "2", near.ID)

	_, err = pickLocation(nil, "")
	assert.ErrorIs(t, err, types.ErrLocationNotFound)
}

func TestLoblawAdapter_GetPickupSlots_WaitsForNextPage(t *testing.T) {
	session := newFakeSession()
	session.show(rcss+"/store-locator?searchQuery=T2P+1J9", page(loblawLocatorPage))
	first := loblawSlotPage(loblawDay("Mon Jan 4", "9:00=Available"), loblawDay("Tue Jan 5", "9:00=Full"))
	second := loblawSlotPage(loblawDay("Wed Jan 6", "9:00=Available"), loblawDay("Thu Jan 7", "9:00=Full"))
	third := loblawSlotPage(loblawDay("Fri Jan 8", "9:00=Available"), loblawDay("Thu Jan 7", "9:00=Full"))
	// Each page keeps showing the previous one for a render before switching.
	session.show("slots:1", first)
	session.show("slots:2", first, second)
	session.show("slots:3", second, third)
	session.onClick[loblawSlots.openPicker] = func(f *fakeSession) { f.current = "slots:1" }
	pageNumber := 1
	session.onClick[loblawSlots.next] = func(f *fakeSession) {
		pageNumber++
		f.current = fmt.Sprintf("slots:%d", pageNumber)
	}
	adapter, _ := newTestLoblaw(t, session)

	table, err := adapter.GetPickupSlots(context.Background(), "T2P 1J9", "Shawnessy")

	require.NoError(t, err)
	assert.Equal(t, []string{"Mon Jan 4", "Tue Jan 5", "Wed Jan 6", "Thu Jan 7", "Fri Jan 8"}, table.Days)
	assert.Equal(t, 2, session.reads["slots:2"])
}

func TestLoblawAdapter_GetPickupSlots_UnchangedPageEndsPaging(t *testing.T) {
	session := newFakeSession()
	session.show(rcss+"/store-locator?searchQuery=T2P+1J9", page(loblawLocatorPage))
	session.show("slots:1", loblawSlotPage(loblawDay("Mon Jan 4", "9:00=Available")))
	session.onClick[loblawSlots.openPicker] = func(f *fakeSession) { f.current = "slots:1" }
	adapter, _ := newTestLoblaw(t, session)

	table, err := adapter.GetPickupSlots(context.Background(), "T2P 1J9", "Shawnessy")

	require.NoError(t, err)
	assert.Equal(t, []string{"Mon Jan 4"}, table.Days)
	assert.Equal(t, loblawSlots.next, session.clicks[len(session.clicks)-1])
}

func TestLocationButton(t *testing.T) {
	locations := []types.PickupLocation{
		{Name: "Shawnessy"},
		{Name: "Country Hills"},
		{ID: "O'Hare", Name: "O'Hare"},
	}

	assert.Equal(t,
		".location-list-item:nth-of-type(2) .location-list-item__select-button",
		locationButton(loblawSlots, locations, locations[1]))
	assert.Equal(t,
		`.location-list-item[data-store-id='O\'Hare'] .location-list-item__select-button`,
		locationButton(loblawSlots, locations, locations[2]))
}

func TestLoblawAdapter_GetPickupSlots_LocationWithoutID(t *testing.T) {
	session := newFakeSession()
	session.show(rcss+"/store-locator?searchQuery=T2P+1J9", page(strings.ReplaceAll(loblawLocatorPage, ` data-store-id="1577"`, "")))
	session.show("slots:1", loblawSlotPage(loblawDay("Mon Jan 4", "9:00=Available")))
	session.onClick[loblawSlots.openPicker] = func(f *fakeSession) { f.current = "slots:1" }
	adapter, _ := newTestLoblaw(t, session)

	_, err := adapter.GetPickupSlots(context.Background(), "T2P 1J9", "Country Hills")

	require.NoError(t, err)
	assert.Equal(t, ".location-list-item:nth-of-type(2) .location-list-item__select-button", session.clicks[0])
}
