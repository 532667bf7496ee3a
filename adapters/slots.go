package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"grocery-helpers/internal/types"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
)

// minLocationScore is the Jaro-Winkler similarity a location name must reach
// to count as a match for the requested one.
const minLocationScore = 0.7

// slotMarkup describes one retailer's store locator and slot picker. The
// pagination state machine below is shared; only the selectors and the
// termination strategy differ between retailers.
type slotMarkup struct {
	locatorURL func(baseURL, postalCode string) string

	locationItem     string // one row per store in the locator results
	locationIDAttr   string // attribute on the row identifying the store
	locationName     string
	locationAddress  string
	locationSelected string // matches a row that is the current pickup store
	locationSelect   string // button inside a row that picks it

	openPicker string // control revealing the slot picker
	day        string // one column of the picker
	dayLabel   string
	slot       string // one cell inside a column
	slotTime   string
	slotStatus string
	next       string // "next page" control

	termination types.PageTermination
}

type slotState int

const (
	stateNeedLocation slotState = iota
	stateUnpaged
	statePaged
	stateDone
)

// listLocations loads the store locator for postalCode and reads its rows
func (b *BaseAdapter) listLocations(ctx context.Context, br types.Browser, m slotMarkup, postalCode string) ([]types.PickupLocation, error) {
	if err := br.Navigate(ctx, m.locatorURL(b.baseURL, postalCode)); err != nil {
		return nil, err
	}
	doc, err := b.waitForSelector(ctx, br, m.locationItem)
	if err != nil {
		return nil, fmt.Errorf("no pickup locations near %s: %w", postalCode, err)
	}

	var locations []types.PickupLocation
	doc.Find(m.locationItem).Each(func(i int, row *goquery.Selection) {
		id, _ := row.Attr(m.locationIDAttr)
		locations = append(locations, types.PickupLocation{
			ID:       strings.TrimSpace(id),
			Name:     strings.TrimSpace(row.Find(m.locationName).First().Text()),
			Address:  strings.TrimSpace(row.Find(m.locationAddress).First().Text()),
			Selected: row.Is(m.locationSelected),
		})
	})
	return locations, nil
}

// pickLocation returns the first location when name is empty, otherwise the
// closest match by name.
func pickLocation(locations []types.PickupLocation, name string) (types.PickupLocation, error) {
	if len(locations) == 0 {
		return types.PickupLocation{}, types.ErrLocationNotFound
	}
	if strings.TrimSpace(name) == "" {
		return locations[0], nil
	}

	want := strings.ToLower(strings.TrimSpace(name))
	best, bestScore := -1, 0.0
	for i, location := range locations {
		score := matchr.JaroWinkler(want, strings.ToLower(location.Name), false)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 || bestScore < minLocationScore {
		return types.PickupLocation{}, fmt.Errorf("%w: %q", types.ErrLocationNotFound, name)
	}
	return locations[best], nil
}

func (b *BaseAdapter) selectLocation(ctx context.Context, br types.Browser, m slotMarkup, postalCode, name string) error {
	locations, err := b.listLocations(ctx, br, m, postalCode)
	if err != nil {
		return err
	}
	location, err := pickLocation(locations, name)
	if err != nil {
		return err
	}
	if location.Selected {
		b.logger.Debugf("Pickup location %q already selected", location.Name)
		return nil
	}

	b.logger.Infof("Selecting pickup location %q", location.Name)
	if err := br.Click(ctx, locationButton(m, locations, location)); err != nil {
		return err
	}
	return b.settle(ctx)
}

// locationButton is the selector of location's select button: by its id
// attribute, or by row position when the row has no id
func locationButton(m slotMarkup, locations []types.PickupLocation, location types.PickupLocation) string {
	if location.ID != "" {
		return fmt.Sprintf("%s[%s=%s] %s", m.locationItem, m.locationIDAttr, cssString(location.ID), m.locationSelect)
	}
	row := 1
	for i, candidate := range locations {
		if candidate == location {
			row = i + 1
			break
		}
	}
	return fmt.Sprintf("%s:nth-of-type(%d) %s", m.locationItem, row, m.locationSelect)
}

// cssString quotes s as a CSS string literal
func cssString(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\a `).Replace(s) + "'"
}

// daySignature identifies a rendered picker page by its day labels
func daySignature(doc *goquery.Document, m slotMarkup) string {
	var labels []string
	doc.Find(m.day).Each(func(i int, day *goquery.Selection) {
		labels = append(labels, strings.TrimSpace(day.Find(m.dayLabel).First().Text()))
	})
	return strings.Join(labels, "|")
}

// readSlotPage reads the visible day columns and the state of the next control
func (b *BaseAdapter) readSlotPage(doc *goquery.Document, m slotMarkup) ([]types.DayColumn, bool) {
	var columns []types.DayColumn
	doc.Find(m.day).Each(func(i int, day *goquery.Selection) {
		column := types.DayColumn{Day: strings.TrimSpace(day.Find(m.dayLabel).First().Text())}
		day.Find(m.slot).Each(func(j int, slot *goquery.Selection) {
			column.Slots = append(column.Slots, types.Slot{
				Time:  strings.TrimSpace(slot.Find(m.slotTime).First().Text()),
				Label: strings.TrimSpace(slot.Find(m.slotStatus).First().Text()),
			})
		})
		columns = append(columns, column)
	})

	next := doc.Find(m.next).First()
	_, disabled := next.Attr("disabled")
	if aria, ok := next.Attr("aria-disabled"); ok && aria == "true" {
		disabled = true
	}
	return columns, next.Length() == 0 || disabled
}

// collectSlots pages through the slot picker and merges every page into one
// table. Paging ends by m.termination, when a page adds no new day, or after
// MaxSlotPages pages.
func (b *BaseAdapter) collectSlots(ctx context.Context, br types.Browser, m slotMarkup, postalCode, location string) (*types.SlotTable, error) {
	table := types.NewSlotTable()
	state := stateNeedLocation
	pages := 0
	previous := ""

	for state != stateDone {
		switch state {
		case stateNeedLocation:
			if err := b.selectLocation(ctx, br, m, postalCode, location); err != nil {
				return nil, err
			}
			state = stateUnpaged

		case stateUnpaged:
			if err := br.Click(ctx, m.openPicker); err != nil {
				return nil, err
			}
			if _, err := b.waitForSelector(ctx, br, m.day); err != nil {
				return nil, err
			}
			state = statePaged

		case statePaged:
			// after "next" the old page stays rendered until the new one replaces it
			doc, err := b.waitForDoc(ctx, br, func(doc *goquery.Document) (bool, error) {
				if doc.Find(m.day).Length() == 0 {
					return false, nil
				}
				return pages == 0 || daySignature(doc, m) != previous, nil
			})
			if err != nil {
				if pages > 0 && errors.Is(err, types.ErrTimeout) {
					b.logger.Warnf("Slot picker did not change after page %d, stopping", pages)
					state = stateDone
					continue
				}
				return nil, fmt.Errorf("waiting for %s: %w", m.day, err)
			}
			previous = daySignature(doc, m)
			columns, nextDisabled := b.readSlotPage(doc, m)
			pages++

			lastSeen := len(columns) > 0 && table.HasDay(columns[len(columns)-1].Day)
			added := table.Merge(columns)
			b.logger.Debugf("Slot page %d: %d days, %d new", pages, len(columns), added)

			switch {
			case m.termination == types.TerminateOnDuplicateDay && lastSeen:
				state = stateDone
			case m.termination == types.TerminateOnDisabledNext && nextDisabled:
				state = stateDone
			case added == 0:
				state = stateDone
			case b.config.MaxSlotPages > 0 && pages >= b.config.MaxSlotPages:
				b.logger.Warnf("Stopped paging pickup slots after %d pages", pages)
				state = stateDone
			default:
				if err := br.Click(ctx, m.next); err != nil {
					return nil, err
				}
				if err := b.settle(ctx); err != nil {
					return nil, err
				}
			}
		}
	}

	b.logger.Infof("Collected %d pickup days over %d pages", len(table.Days), pages)
	return table, nil
}
