package flyers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"grocery-helpers/internal/types"
)

// Flyer is one flyer's item table. Columns exclude the CSV index column.
type Flyer struct {
	ID       int64
	Merchant string
	Path     string
	Columns  []string
	Rows     [][]string
}

// Service downloads flyers and keeps one CSV per flyer under
// <dataDir>/<merchant>/flyers
type Service struct {
	client *Client
	cache  *ItemCache
	logger types.Logger
}

// NewService creates a flyer service. config.FlyerCachePath enables the item cache.
func NewService(config *types.Config, logger types.Logger) (*Service, error) {
	s := &Service{
		client: NewClient(config, logger),
		logger: logger,
	}
	if config.FlyerCachePath != "" {
		cache, err := OpenItemCache(config.FlyerCachePath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open flyer cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// GetFlyers returns every current flyer of merchant near postalCode. Flyers
// already on disk are loaded instead of fetched.
func (s *Service) GetFlyers(ctx context.Context, merchant, postalCode, dataDir string) ([]*Flyer, error) {
	result, err := s.client.Search(ctx, merchant, postalCode)
	if err != nil {
		return nil, err
	}
	if len(result.Merchants) == 0 || result.Merchants[0].Name != merchant {
		found := ""
		if len(result.Merchants) > 0 {
			found = result.Merchants[0].Name
		}
		return nil, fmt.Errorf("searched %q, got %q: %w", merchant, found, types.ErrMerchantMismatch)
	}

	dir := filepath.Join(dataDir, merchant, "flyers")
	flyers := make([]*Flyer, 0, len(result.Flyers))
	for _, ref := range result.Flyers {
		existing, err := findFlyerFile(dir, ref.ID)
		if err != nil {
			return nil, err
		}
		if existing != "" {
			s.logger.Infof("Already downloaded flyer %d for %s", ref.ID, merchant)
			flyer, err := loadFlyer(existing)
			if err != nil {
				return nil, err
			}
			flyer.ID = ref.ID
			flyer.Merchant = merchant
			flyers = append(flyers, flyer)
			continue
		}

		s.logger.Infof("Scrape flyer %d for %s", ref.ID, merchant)
		flyer, err := s.scrapeFlyer(ctx, result.Items, ref.ID)
		if err != nil {
			return nil, err
		}
		flyer.Merchant = merchant
		if len(flyer.Rows) > 0 {
			flyer.Path = filepath.Join(dir, flyerFileName(flyer, merchant))
			if err := saveFlyer(flyer); err != nil {
				return nil, err
			}
		}
		flyers = append(flyers, flyer)
	}
	return flyers, nil
}

// Close releases the item cache, if any
func (s *Service) Close() error {
	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}

// scrapeFlyer fetches the items of flyerID one request at a time
func (s *Service) scrapeFlyer(ctx context.Context, summaries []ItemSummary, flyerID int64) (*Flyer, error) {
	var items []Item
	for _, summary := range summaries {
		if summary.FlyerID != flyerID {
			continue
		}
		item, err := s.item(ctx, summary.FlyerItemID)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	flyer := &Flyer{ID: flyerID}
	if len(items) == 0 {
		return flyer, nil
	}

	for column := range items[0] {
		flyer.Columns = append(flyer.Columns, column)
	}
	sort.Strings(flyer.Columns)

	for _, item := range items {
		row := make([]string, len(flyer.Columns))
		for i, column := range flyer.Columns {
			row[i] = cell(item[column])
		}
		flyer.Rows = append(flyer.Rows, row)
	}
	return flyer, nil
}

func (s *Service) item(ctx context.Context, id int64) (Item, error) {
	if s.cache != nil {
		if item, ok := s.cache.Get(id); ok {
			s.logger.Debugf("Flyer item %d served from cache", id)
			return item, nil
		}
	}
	item, err := s.client.Item(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(id, item)
	}
	return item, nil
}

// Value returns the cell of column in row i
func (f *Flyer) Value(i int, column string) string {
	for c, name := range f.Columns {
		if name == column {
			return f.Rows[i][c]
		}
	}
	return ""
}

// flyerFileName is "<valid-to date> - <merchant> flyer <id>.csv", using the
// first item's flyer_valid_to
func flyerFileName(flyer *Flyer, merchant string) string {
	return fmt.Sprintf("%s - %s flyer %d.csv", isoDate(flyer.Value(0, "flyer_valid_to")), merchant, flyer.ID)
}

func isoDate(value string) string {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.Format("2006-01-02")
	}
	if len(value) >= 10 {
		return value[:10]
	}
	return value
}

func findFlyerFile(dir string, id int64) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, fmt.Sprintf("*flyer %d.csv", id)))
	if err != nil {
		return "", fmt.Errorf("failed to look for flyer %d: %w", id, err)
	}
	if len(matches) == 0 {
		return "", nil
	}
	return matches[0], nil
}

func cell(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

func saveFlyer(flyer *Flyer) error {
	if err := os.MkdirAll(filepath.Dir(flyer.Path), 0755); err != nil {
		return fmt.Errorf("failed to create flyer directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(flyer.Path), ".flyer-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	records := make([][]string, 0, len(flyer.Rows)+1)
	records = append(records, append([]string{""}, flyer.Columns...))
	for i, row := range flyer.Rows {
		records = append(records, append([]string{strconv.Itoa(i)}, row...))
	}
	if err := writer.WriteAll(records); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write flyer %d: %w", flyer.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), flyer.Path)
}

func loadFlyer(path string) (*Flyer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	flyer := &Flyer{Path: path}

	header, err := reader.Read()
	if err == io.EOF {
		return flyer, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	if len(header) > 0 && strings.TrimSpace(header[0]) == "" {
		flyer.Columns = header[1:]
	} else {
		flyer.Columns = header
	}
	offset := len(header) - len(flyer.Columns)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		row := make([]string, len(flyer.Columns))
		if len(record) > offset {
			copy(row, record[offset:])
		}
		flyer.Rows = append(flyer.Rows, row)
	}
	return flyer, nil
}
