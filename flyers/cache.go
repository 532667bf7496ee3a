package flyers

import (
	"database/sql"
	"encoding/json"
	"time"

	"grocery-helpers/internal/types"

	_ "modernc.org/sqlite"
)

// ItemCache keeps fetched flyer items in a local sqlite file so an
// interrupted download does not refetch the items it already has
type ItemCache struct {
	db     *sql.DB
	logger types.Logger
}

// OpenItemCache opens or creates the cache database at dbPath
func OpenItemCache(dbPath string, logger types.Logger) (*ItemCache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS flyer_items (
			item_id INTEGER PRIMARY KEY,
			data TEXT NOT NULL,
			fetched_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &ItemCache{db: db, logger: logger}, nil
}

// Get returns the cached item with id
func (c *ItemCache) Get(id int64) (Item, bool) {
	var data string
	err := c.db.QueryRow(`SELECT data FROM flyer_items WHERE item_id = ?`, id).Scan(&data)
	if err != nil {
		return nil, false
	}

	var item Item
	if err := decodeNumbers([]byte(data), &item); err != nil {
		c.logger.Warnf("Cache: failed to unmarshal flyer item %d: %v", id, err)
		return nil, false
	}
	return item, true
}

// Set stores item under id, replacing an earlier copy
func (c *ItemCache) Set(id int64, item Item) {
	data, err := json.Marshal(item)
	if err != nil {
		c.logger.Warnf("Cache: failed to marshal flyer item %d: %v", id, err)
		return
	}

	_, err = c.db.Exec(
		`INSERT INTO flyer_items (item_id, data, fetched_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(item_id)
		 DO UPDATE SET data = excluded.data, fetched_at = excluded.fetched_at`,
		id, string(data), time.Now(),
	)
	if err != nil {
		c.logger.Warnf("Cache: failed to store flyer item %d: %v", id, err)
	}
}

// Close closes the database
func (c *ItemCache) Close() error {
	return c.db.Close()
}
