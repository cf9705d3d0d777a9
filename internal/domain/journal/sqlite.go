package journal

import (
	"context"
	"time"

	"caption-server-go/internal/platform/errors"
	"caption-server-go/internal/platform/storage"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type sqliteStore struct {
	db       *gorm.DB
	capacity int
	owned    bool
}

// NewSQLite stores entries in the describe_journal table. When db is nil the
// store opens cfg.SQLite.DSN itself and closes it on Close.
func NewSQLite(db *gorm.DB, cfg Config) (Store, error) {
	owned := false
	if db == nil {
		if cfg.SQLite == nil || cfg.SQLite.DSN == "" {
			return nil, errors.New(errors.KindStorage, "journal.sqlite", "sqlite driver requires database handle or dsn")
		}
		var err error
		db, err = storage.Open(cfg.SQLite.DSN)
		if err != nil {
			return nil, err
		}
		owned = true
	}
	return &sqliteStore{db: db, capacity: capacityOf(cfg), owned: owned}, nil
}

func (s *sqliteStore) Append(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	record := &storage.JournalRecord{
		RequestID:  entry.RequestID,
		ImageURL:   entry.ImageURL,
		Host:       entry.Host,
		Outcome:    entry.Outcome,
		Caption:    entry.Caption,
		Detail:     entry.Detail,
		Bytes:      entry.Bytes,
		DurationMS: entry.Duration.Milliseconds(),
		Meta: datatypes.JSONMap{
			"entry_id":    entry.ID,
			"engine":      entry.Engine,
			"format":      entry.Format,
			"width":       entry.Width,
			"height":      entry.Height,
			"duration_ns": entry.Duration.Nanoseconds(),
		},
		CreatedAt: entry.CreatedAt,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		if err := tx.Exec(`INSERT INTO describe_journal_stats (outcome, total) VALUES (?, 1)
			ON CONFLICT(outcome) DO UPDATE SET total = total + 1`, entry.Outcome).Error; err != nil {
			return err
		}
		return tx.Exec(`DELETE FROM describe_journal WHERE id NOT IN
			(SELECT id FROM describe_journal ORDER BY id DESC LIMIT ?)`, s.capacity).Error
	})
	if err != nil {
		return errors.Wrap(errors.KindStorage, "journal.sqlite.append", "failed to store journal entry", err)
	}
	return nil
}

func (s *sqliteStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	var records []storage.JournalRecord
	if err := s.db.WithContext(ctx).
		Order("id DESC").
		Limit(ClampLimit(limit)).
		Find(&records).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "journal.sqlite.recent", "failed to query journal", err)
	}

	out := make([]Entry, 0, len(records))
	for _, r := range records {
		out = append(out, entryFromRecord(r))
	}
	return out, nil
}

func (s *sqliteStore) Stats(ctx context.Context) (map[string]any, error) {
	// 计数表累计全部请求，describe_journal 只保留最近 capacity 行
	var rows []storage.JournalOutcomeCount
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "journal.sqlite.stats", "failed to read journal counters", err)
	}

	outcomes := make(map[string]int64, len(rows))
	var total int64
	for _, r := range rows {
		outcomes[r.Outcome] = r.Total
		total += r.Total
	}
	return map[string]any{
		"type":     DriverSQLite,
		"total":    total,
		"capacity": s.capacity,
		"outcomes": outcomes,
	}, nil
}

func (s *sqliteStore) Close(context.Context) error {
	if !s.owned {
		return nil
	}
	return storage.Close(s.db)
}

func entryFromRecord(r storage.JournalRecord) Entry {
	e := Entry{
		RequestID: r.RequestID,
		ImageURL:  r.ImageURL,
		Host:      r.Host,
		Outcome:   r.Outcome,
		Caption:   r.Caption,
		Detail:    r.Detail,
		Bytes:     r.Bytes,
		Duration:  time.Duration(r.DurationMS) * time.Millisecond,
		CreatedAt: r.CreatedAt,
	}
	// JSON 数字读回后为 float64
	if v, ok := r.Meta["entry_id"].(string); ok {
		e.ID = v
	}
	if v, ok := r.Meta["engine"].(string); ok {
		e.Engine = v
	}
	if v, ok := r.Meta["format"].(string); ok {
		e.Format = v
	}
	if v, ok := r.Meta["width"].(float64); ok {
		e.Width = int(v)
	}
	if v, ok := r.Meta["height"].(float64); ok {
		e.Height = int(v)
	}
	if v, ok := r.Meta["duration_ns"].(float64); ok {
		e.Duration = time.Duration(v)
	}
	return e
}
