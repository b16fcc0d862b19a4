// Package template loads campaign templates and resolves them into final
// subject/body content.
package template

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrTemplateNotFound is returned when no template exists for an ID.
var ErrTemplateNotFound = errors.New("template not found")

// Template is a stored email template.
type Template struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Subject   string    `db:"subject"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Store provides database access to email templates.
type Store struct {
	db *sql.DB
}

// NewStore creates a template store over the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Load fetches a template by ID.
func (s *Store) Load(ctx context.Context, id string) (*Template, error) {
	query := `SELECT id, name, subject, body, created_at, updated_at
		FROM email_templates WHERE id = $1`

	var t Template
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.Subject, &t.Body, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading template %s: %w", id, err)
	}
	return &t, nil
}
