// Package history persists completed analyses so they can be listed and
// inspected later. It is optional and sits outside the ranking core.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/faceanalyzer/internal/store"
	"github.com/google/uuid"
)

// ErrNotFound is returned when no analysis has the requested ID.
var ErrNotFound = errors.New("analysis not found")

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Record is one stored analysis.
type Record struct {
	ID              string          `json:"id"`
	Features        []string        `json:"features"`
	Candidates      []string        `json:"candidates"`
	Recommendations json.RawMessage `json:"recommendations"`
	Model           string          `json:"model,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Repository stores and retrieves analysis records.
type Repository interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, limit int) ([]Record, error)
}

var _ Repository = (*SQLiteRepository)(nil)

// SQLiteRepository implements Repository on the shared SQLite store.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository runs the history migrations and returns a repository.
func NewSQLiteRepository(ctx context.Context, s *store.SQLiteStore) (*SQLiteRepository, error) {
	if err := s.Migrate(ctx, "history", migrations); err != nil {
		return nil, fmt.Errorf("history migrations: %w", err)
	}
	return &SQLiteRepository{db: s.DB(), now: time.Now}, nil
}

// WithClock replaces the time source used for CreatedAt.
func (r *SQLiteRepository) WithClock(now func() time.Time) *SQLiteRepository {
	r.now = now
	return r
}

// Save inserts rec, assigning an ID and CreatedAt when they are unset.
func (r *SQLiteRepository) Save(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}
	if len(rec.Recommendations) == 0 {
		rec.Recommendations = json.RawMessage("[]")
	}

	features, err := json.Marshal(nonNil(rec.Features))
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}
	candidates, err := json.Marshal(nonNil(rec.Candidates))
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO analyses (id, features, candidates, recommendations, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, string(features), string(candidates), string(rec.Recommendations), rec.Model, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", rec.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, features, candidates, recommendations, model, created_at
		FROM analyses WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get analysis %s: %w", id, err)
	}
	return rec, nil
}

// List returns the most recent analyses first. limit is clamped to
// [1, MaxListLimit]; zero or negative means DefaultListLimit.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]Record, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, features, candidates, recommendations, model, created_at
		FROM analyses ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis row: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var (
		rec                  Record
		features, candidates string
		recommendations      string
	)
	if err := s.Scan(&rec.ID, &features, &candidates, &recommendations, &rec.Model, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(features), &rec.Features); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	if err := json.Unmarshal([]byte(candidates), &rec.Candidates); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}
	rec.Recommendations = json.RawMessage(recommendations)
	return &rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var migrations = []store.Migration{
	{
		Version:     1,
		Description: "create analyses table",
		Statements: []string{`
			CREATE TABLE analyses (
				id              TEXT PRIMARY KEY,
				features        TEXT NOT NULL,
				candidates      TEXT NOT NULL,
				recommendations TEXT NOT NULL,
				model           TEXT NOT NULL DEFAULT '',
				created_at      DATETIME NOT NULL
			)`,
		},
	},
	{
		Version:     2,
		Description: "index analyses by creation time",
		Statements:  []string{`CREATE INDEX idx_analyses_created_at ON analyses (created_at)`},
	},
}
