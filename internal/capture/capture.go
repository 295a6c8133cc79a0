// Package capture records the history of screenshot and animation
// captures taken through the HTTP API.
package capture

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the capture endpoint that produced an entry.
type Kind string

// Capture kinds.
const (
	KindViewportScreenshot Kind = "viewport_screenshot"
	KindRenderScreenshot   Kind = "render_screenshot"
	KindViewportAnimation  Kind = "viewport_animation"
	KindRenderAnimation    Kind = "render_animation"
)

// IsVideo reports whether the kind produces an animation.
func (k Kind) IsVideo() bool {
	return k == KindViewportAnimation || k == KindRenderAnimation
}

// Status is the outcome of a capture.
type Status string

// Capture statuses.
const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// List limits.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// timeLayout is fixed-width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrInvalidEntry is returned by Record for entries missing required fields.
var ErrInvalidEntry = errors.New("capture: invalid entry")

// Entry is one capture attempt.
type Entry struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Renderer   string    `json:"renderer,omitempty"`
	Extension  string    `json:"extension,omitempty"`
	File       string    `json:"file"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

// Filter controls which entries List returns.
type Filter struct {
	Kind   Kind   // optional
	Status Status // optional
	Limit  int    // default DefaultLimit, max MaxLimit
}

// Repository stores capture history.
type Repository interface {
	Record(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// SQLiteRepository stores capture history in the captures table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over db. The captures table must
// already exist (see the migrations package).
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts e. ID and StartedAt are generated if empty.
func (r *SQLiteRepository) Record(ctx context.Context, e *Entry) error {
	if e.Kind == "" || e.File == "" {
		return fmt.Errorf("%w: kind and file are required", ErrInvalidEntry)
	}
	if e.Status == "" {
		e.Status = StatusOK
	}
	if e.ID == "" {
		e.ID = "cap-" + uuid.NewString()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	e.StartedAt = e.StartedAt.UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO captures (id, kind, renderer, extension, file, status, error, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), e.Renderer, e.Extension, e.File,
		string(e.Status), e.Error,
		e.StartedAt.Format(timeLayout), e.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("inserting capture: %w", err)
	}
	return nil
}

// List returns entries matching filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultLimit
	}
	filter.Limit = min(filter.Limit, MaxLimit)

	var conditions []string
	var args []any
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, kind, renderer, extension, file, status, error, started_at, duration_ms
		 FROM captures %s ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		where,
	)
	args = append(args, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying captures: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var kind, status, startedAt string
		if err := rows.Scan(&e.ID, &kind, &e.Renderer, &e.Extension, &e.File,
			&status, &e.Error, &startedAt, &e.DurationMS); err != nil {
			return nil, fmt.Errorf("scanning capture: %w", err)
		}
		e.Kind = Kind(kind)
		e.Status = Status(status)

		e.StartedAt, err = time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing capture timestamp %q: %w", startedAt, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating captures: %w", err)
	}
	return entries, nil
}
