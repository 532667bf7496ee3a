package catalog

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"grocery-helpers/internal/types"

	"github.com/gofrs/flock"
	"github.com/shopspring/decimal"
)

var productColumns = []string{
	"", "name", "brand", "description", "price", "packageSize", "averageWeight", "kg",
	"categories", "unitPrice", "link", "image", "previouslyPurchased",
	"catalog", "vendor", "dealBadge", "loyaltyBadge", "textBadge", "identifiers",
}

var orderColumns = []string{
	"", "description", "productSKU", "quantity", "kg", "price", "orderNumber", "date",
}

// lockDataset takes the single-writer lock of a retailer directory. It does
// not wait: a held lock fails with types.ErrDatasetLocked.
func lockDataset(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create dataset directory: %w", err)
	}
	lock := flock.New(filepath.Join(dir, ".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", dir, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", dir, types.ErrDatasetLocked)
	}
	return lock, nil
}

// productDataset is products.csv in memory, indexed by SKU and link
type productDataset struct {
	products []types.Product
	bySKU    map[string]int
	byLink   map[string]int
}

func newProductDataset() *productDataset {
	return &productDataset{bySKU: make(map[string]int), byLink: make(map[string]int)}
}

func (d *productDataset) get(sku string) (types.Product, bool) {
	i, ok := d.bySKU[sku]
	if !ok {
		return types.Product{}, false
	}
	return d.products[i], true
}

func (d *productDataset) hasLink(link string) bool {
	_, ok := d.byLink[link]
	return ok
}

func (d *productDataset) add(p types.Product) {
	d.bySKU[p.SKU] = len(d.products)
	if p.Link != "" {
		d.byLink[p.Link] = len(d.products)
	}
	d.products = append(d.products, p)
}

// readTable reads a CSV file into header-keyed rows. A missing file is an empty table.
func readTable(path string) ([]map[string]string, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		row := make(map[string]string, len(header))
		for i, column := range header {
			if i < len(record) {
				row[column] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// writeTable replaces path with header and rows. The file is written next to
// its destination and renamed into place so readers never see a partial file.
func writeTable(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	if err := writer.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write rows: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func loadProducts(path string) (*productDataset, error) {
	rows, err := readTable(path)
	if err != nil {
		return nil, err
	}

	dataset := newProductDataset()
	for _, row := range rows {
		p := types.Product{
			SKU:                 row[""],
			Name:                row["name"],
			Brand:               row["brand"],
			Description:         row["description"],
			PackageSize:         row["packageSize"],
			AverageWeight:       row["averageWeight"],
			Kg:                  parseOptionalFloat(row["kg"]),
			Link:                row["link"],
			ImageURL:            row["image"],
			PreviouslyPurchased: row["previouslyPurchased"] == "true",
			Catalog:             row["catalog"],
			Vendor:              row["vendor"],
			DealBadge:           row["dealBadge"],
			LoyaltyBadge:        row["loyaltyBadge"],
			TextBadge:           row["textBadge"],
			Categories:          []string{},
			UnitPrices:          []types.UnitPrice{},
		}
		if price, err := decimal.NewFromString(row["price"]); err == nil {
			p.Price = price
		}
		decodeJSONColumn(row["categories"], &p.Categories)
		decodeJSONColumn(row["unitPrice"], &p.UnitPrices)
		decodeJSONColumn(row["identifiers"], &p.Identifiers)
		dataset.add(p)
	}
	return dataset, nil
}

func saveProducts(path string, dataset *productDataset) error {
	rows := make([][]string, 0, len(dataset.products))
	for _, p := range dataset.products {
		rows = append(rows, []string{
			p.SKU, p.Name, p.Brand, p.Description, p.Price.String(), p.PackageSize, p.AverageWeight,
			formatOptionalFloat(p.Kg), encodeJSONColumn(p.Categories), encodeJSONColumn(p.UnitPrices),
			p.Link, p.ImageURL, strconv.FormatBool(p.PreviouslyPurchased),
			p.Catalog, p.Vendor, p.DealBadge, p.LoyaltyBadge, p.TextBadge, encodeJSONColumn(p.Identifiers),
		})
	}
	return writeTable(path, productColumns, rows)
}

func loadOrders(path string) ([]types.OrderItem, error) {
	rows, err := readTable(path)
	if err != nil {
		return nil, err
	}

	items := make([]types.OrderItem, 0, len(rows))
	for _, row := range rows {
		item := types.OrderItem{
			Description: row["description"],
			ProductSKU:  row["productSKU"],
			Quantity:    parseOptionalFloat(row["quantity"]),
			Kg:          parseOptionalFloat(row["kg"]),
			OrderNumber: row["orderNumber"],
			Date:        row["date"],
		}
		if price, err := decimal.NewFromString(row["price"]); err == nil {
			item.Price = price
		}
		items = append(items, item)
	}
	return items, nil
}

func saveOrders(path string, items []types.OrderItem) error {
	rows := make([][]string, 0, len(items))
	for i, item := range items {
		rows = append(rows, []string{
			strconv.Itoa(i), item.Description, item.ProductSKU,
			formatOptionalFloat(item.Quantity), formatOptionalFloat(item.Kg),
			item.Price.String(), item.OrderNumber, item.Date,
		})
	}
	return writeTable(path, orderColumns, rows)
}

func parseOptionalFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func encodeJSONColumn(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeJSONColumn(s string, v interface{}) {
	if s == "" || s == "null" {
		return
	}
	_ = json.Unmarshal([]byte(s), v)
}
