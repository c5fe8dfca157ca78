package db

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"youtube-rag/internal/config"
)

// ExchangeRecord is one answered question. The archive is write-mostly and is never used to
// restore sessions.
type ExchangeRecord struct {
	bun.BaseModel `bun:"table:exchanges,alias:e"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	SessionID     string    `bun:"session_id,notnull" json:"session_id"`
	VideoID       string    `bun:"video_id,notnull" json:"video_id"`
	Question      string    `bun:"question,notnull" json:"question"`
	Answer        string    `bun:"answer,notnull" json:"answer"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(dbConfig *config.DatabaseConfig) (*sql.DB, error) {
	if dbConfig.DSN == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}
	opts := []pgdriver.Option{pgdriver.WithDSN(dbConfig.DSN)}
	if dbConfig.Password != "" {
		opts = append(opts, pgdriver.WithPassword(dbConfig.Password))
	}
	return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().Model((*ExchangeRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create exchanges table: %w", err)
	}
	_, err := db.NewCreateIndex().
		Model((*ExchangeRecord)(nil)).
		Index("exchanges_session_id_idx").
		Column("session_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create exchanges index: %w", err)
	}
	return nil
}

// Archive stores exchanges in Postgres.
type Archive struct {
	db *bun.DB
}

func NewArchive(db *bun.DB) *Archive {
	return &Archive{db: db}
}

// Open connects to the configured database and makes sure the schema exists.
func Open(ctx context.Context, dbConfig *config.DatabaseConfig) (*Archive, error) {
	sqldb, err := ConnectDB(dbConfig)
	if err != nil {
		return nil, err
	}
	db := NewDB(sqldb, dbConfig.Debug)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	if err := InitDB(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return NewArchive(db), nil
}

func (a *Archive) StoreExchange(ctx context.Context, sessionID, videoID, question, answer string) error {
	_, err := a.insertQuery(sessionID, videoID, question, answer).Exec(ctx)
	return err
}

func (a *Archive) insertQuery(sessionID, videoID, question, answer string) *bun.InsertQuery {
	return a.db.NewInsert().Model(&ExchangeRecord{
		SessionID: sessionID,
		VideoID:   videoID,
		Question:  question,
		Answer:    answer,
	})
}

// ListExchanges returns the latest limit exchanges, oldest first. An empty sessionID covers every
// session; limit <= 0 returns all of them.
func (a *Archive) ListExchanges(ctx context.Context, sessionID string, limit int) ([]ExchangeRecord, error) {
	var records []ExchangeRecord
	if err := a.listQuery(&records, sessionID, limit).Scan(ctx); err != nil {
		return nil, err
	}
	slices.Reverse(records)
	return records, nil
}

// listQuery selects newest first so the limit keeps the latest rows.
func (a *Archive) listQuery(dest *[]ExchangeRecord, sessionID string, limit int) *bun.SelectQuery {
	q := a.db.NewSelect().Model(dest).OrderExpr("e.id DESC")
	if sessionID != "" {
		q = q.Where("e.session_id = ?", sessionID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

func (a *Archive) Close() error {
	return a.db.Close()
}
