package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"lmstaker/core/events"
	"lmstaker/core/types"
)

const (
	// DefaultLimit bounds Recent when the caller passes no limit.
	DefaultLimit = 100
	// MaxLimit caps the number of rows returned by Recent.
	MaxLimit = 1000
)

// ErrPathRequired is returned when the sqlite path is missing.
var ErrPathRequired = errors.New("indexer path must be configured")

// Record is one persisted event.
type Record struct {
	ID         int64             `json:"id"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	RecordedAt time.Time         `json:"recordedAt"`
}

// eventRow is the persisted form of a Record.
type eventRow struct {
	ID         int64  `gorm:"primaryKey;autoIncrement;index:events_type_idx,priority:2"`
	Type       string `gorm:"not null;index:events_type_idx,priority:1"`
	Attributes string `gorm:"type:text;not null"`
	RecordedAt int64  `gorm:"not null"`
}

func (eventRow) TableName() string { return "events" }

// Indexer is an append-only sqlite log of engine events.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
	nowFn  func() time.Time
}

var _ events.Emitter = (*Indexer)(nil)

// Open initialises the event log at path.
func Open(path string) (*Indexer, error) {
	dsn, err := FileDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	// sqlite allows a single writer
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&eventRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Indexer{db: db, logger: slog.Default(), nowFn: time.Now}, nil
}

// SetLogger replaces the logger used to report failed writes from Emit.
func (i *Indexer) SetLogger(logger *slog.Logger) {
	if logger != nil {
		i.logger = logger
	}
}

// Close releases database resources.
func (i *Indexer) Close() error {
	if i == nil || i.db == nil {
		return nil
	}
	sqlDB, err := i.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Emit implements events.Emitter. Events that cannot render themselves as a
// flat record are skipped. Write failures are logged and not propagated.
func (i *Indexer) Emit(evt events.Event) {
	if i == nil || evt == nil {
		return
	}
	payload, ok := evt.(events.Payload)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := i.Append(ctx, payload.Event()); err != nil {
		i.logger.Error("index event", slog.String("type", evt.EventType()), slog.Any("error", err))
	}
}

// Append stores evt and returns its sequence number.
func (i *Indexer) Append(ctx context.Context, evt *types.Event) (int64, error) {
	if i == nil || i.db == nil {
		return 0, fmt.Errorf("indexer not configured")
	}
	if evt == nil {
		return 0, fmt.Errorf("nil event")
	}
	attrs := evt.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return 0, fmt.Errorf("encode attributes: %w", err)
	}
	row := eventRow{Type: evt.Type, Attributes: string(encoded), RecordedAt: i.nowFn().UTC().UnixNano()}
	if err := i.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return row.ID, nil
}

// Recent returns up to limit events, newest first. An empty eventType matches
// every type.
func (i *Indexer) Recent(ctx context.Context, eventType string, limit int) ([]Record, error) {
	if i == nil || i.db == nil {
		return nil, fmt.Errorf("indexer not configured")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	query := i.db.WithContext(ctx).Order("id DESC").Limit(limit)
	if eventType != "" {
		query = query.Where("type = ?", eventType)
	}
	var rows []eventRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := Record{ID: row.ID, Type: row.Type, RecordedAt: time.Unix(0, row.RecordedAt).UTC()}
		if err := json.Unmarshal([]byte(row.Attributes), &rec.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
