package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tradepost/pkg/logger"
	"tradepost/pkg/models"

	"github.com/cockroachdb/pebble"
)

var (
	db     *pebble.DB
	dbPath string
)

// ErrNotFound is returned when a referenced document does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the acting user is not a participant of the
// conversation being read or written.
var ErrForbidden = errors.New("not a participant")

// Key namespaces. All documents are JSON values; messages live under their
// conversation with a sortable timestamp key so prefix scans return them in
// creation order.
const (
	userPrefix    = "user:"
	itemPrefix    = "item:"
	convPrefix    = "conv:"
	convKeyPrefix = "convkey:"
	msgIdxPrefix  = "msgidx:"
	reportPrefix  = "report:"
)

// Open opens (or creates) a Pebble database at the given path and keeps a
// global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_store", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("store_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("store_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("store_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func getJSON(key string, v interface{}) error {
	if db == nil {
		return fmt.Errorf("store not opened; call store.Open first")
	}
	opsTotal.WithLabelValues("get").Inc()
	val, closer, err := db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	defer closer.Close()
	if err := json.Unmarshal(val, v); err != nil {
		return fmt.Errorf("corrupt document at %s: %w", key, err)
	}
	return nil
}

func setJSON(key string, v interface{}) error {
	if db == nil {
		return fmt.Errorf("store not opened; call store.Open first")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	opsTotal.WithLabelValues("set").Inc()
	return db.Set([]byte(key), data, pebble.Sync)
}

func setRaw(key, val string) error {
	if db == nil {
		return fmt.Errorf("store not opened; call store.Open first")
	}
	opsTotal.WithLabelValues("set").Inc()
	return db.Set([]byte(key), []byte(val), pebble.Sync)
}

func getRaw(key string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("store not opened; call store.Open first")
	}
	opsTotal.WithLabelValues("get").Inc()
	val, closer, err := db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	defer closer.Close()
	out := append([]byte(nil), val...)
	return string(out), nil
}

func deleteKey(key string) error {
	if db == nil {
		return fmt.Errorf("store not opened; call store.Open first")
	}
	opsTotal.WithLabelValues("delete").Inc()
	return db.Delete([]byte(key), pebble.Sync)
}

// scanPrefix iterates all values under prefix, invoking fn with each key
// and a copy of its value. fn returning false stops the scan.
func scanPrefix(prefix string, fn func(key string, val []byte) bool) error {
	if db == nil {
		return fmt.Errorf("store not opened; call store.Open first")
	}
	opsTotal.WithLabelValues("scan").Inc()
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()
	p := []byte(prefix)
	for iter.SeekGE(p); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), p) {
			break
		}
		v := append([]byte(nil), iter.Value()...)
		if !fn(string(iter.Key()), v) {
			break
		}
	}
	return iter.Error()
}

func nowTS() int64 { return time.Now().UTC().UnixNano() }

// --- Users ---

// SaveUser writes a user document.
func SaveUser(u models.User) error {
	return setJSON(userPrefix+u.ID, u)
}

// GetUser looks up a user by id.
func GetUser(id string) (models.User, error) {
	var u models.User
	err := getJSON(userPrefix+id, &u)
	return u, err
}

// ListUsers returns all users in the directory.
func ListUsers() ([]models.User, error) {
	out := []models.User{}
	err := scanPrefix(userPrefix, func(_ string, val []byte) bool {
		var u models.User
		if json.Unmarshal(val, &u) == nil {
			out = append(out, u)
		}
		return true
	})
	return out, err
}

// --- Items ---

// SaveItem writes an item document.
func SaveItem(it models.Item) error {
	return setJSON(itemPrefix+it.ID, it)
}

// GetItem looks up an item by id.
func GetItem(id string) (models.Item, error) {
	var it models.Item
	err := getJSON(itemPrefix+id, &it)
	return it, err
}

// DeleteItem removes an item document.
func DeleteItem(id string) error {
	return deleteKey(itemPrefix + id)
}

// ListItems returns items, filtered by status when status is non-empty.
func ListItems(status string) ([]models.Item, error) {
	out := []models.Item{}
	err := scanPrefix(itemPrefix, func(_ string, val []byte) bool {
		var it models.Item
		if json.Unmarshal(val, &it) == nil {
			if status == "" || it.Status == status {
				out = append(out, it)
			}
		}
		return true
	})
	return out, err
}

// --- Reports ---

// SaveReport writes a report document.
func SaveReport(rep models.Report) error {
	return setJSON(reportPrefix+rep.ID, rep)
}

// GetReport looks up a report by id.
func GetReport(id string) (models.Report, error) {
	var rep models.Report
	err := getJSON(reportPrefix+id, &rep)
	return rep, err
}

// DeleteReport removes a report document.
func DeleteReport(id string) error {
	return deleteKey(reportPrefix + id)
}

// ListReports returns reports, filtered by status when status is non-empty.
func ListReports(status string) ([]models.Report, error) {
	out := []models.Report{}
	err := scanPrefix(reportPrefix, func(_ string, val []byte) bool {
		var rep models.Report
		if json.Unmarshal(val, &rep) == nil {
			if status == "" || rep.Status == status {
				out = append(out, rep)
			}
		}
		return true
	})
	return out, err
}

// Stats summarizes document counts for the admin surface.
type Stats struct {
	Users         int `json:"users"`
	Items         int `json:"items"`
	PendingItems  int `json:"pending_items"`
	Conversations int `json:"conversations"`
	Messages      int `json:"messages"`
	OpenReports   int `json:"open_reports"`
}

// CollectStats counts stored documents by namespace.
func CollectStats() (Stats, error) {
	var s Stats
	err := scanPrefix(userPrefix, func(string, []byte) bool { s.Users++; return true })
	if err != nil {
		return s, err
	}
	err = scanPrefix(itemPrefix, func(_ string, val []byte) bool {
		s.Items++
		var it models.Item
		if json.Unmarshal(val, &it) == nil && it.Status == models.ItemPending {
			s.PendingItems++
		}
		return true
	})
	if err != nil {
		return s, err
	}
	err = scanPrefix(convPrefix, func(key string, _ []byte) bool {
		if isConvDocKey(key) {
			s.Conversations++
		} else {
			s.Messages++
		}
		return true
	})
	if err != nil {
		return s, err
	}
	err = scanPrefix(reportPrefix, func(_ string, val []byte) bool {
		var rep models.Report
		if json.Unmarshal(val, &rep) == nil && !models.ReportClosed(rep.Status) {
			s.OpenReports++
		}
		return true
	})
	return s, err
}
