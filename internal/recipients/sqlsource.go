// Package recipients streams recipient records out of an ad-hoc SQL query.
// It works against any database/sql driver; production wires either
// lib/pq (postgres) or gosnowflake (warehouse) depending on config.
package recipients

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ignite/bulkmail/internal/campaign"
)

// SQLSource streams the rows of one query as campaign records. It is a
// one-pass iterator: rows are never materialized in full here, so very
// large recipient lists flow through in constant memory.
type SQLSource struct {
	rows    *sql.Rows
	columns []string
	ordinal int
}

// Open executes the recipient query and returns a streaming source over its
// rows. The caller owns the source and must drain or Close it.
func Open(ctx context.Context, db *sql.DB, query string) (*SQLSource, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("executing recipient query: %w", err)
	}

	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("reading recipient query columns: %w", err)
	}
	for i, c := range columns {
		columns[i] = strings.ToLower(c)
	}

	return &SQLSource{rows: rows, columns: columns}, nil
}

// Next returns the next record, or io.EOF when the stream is exhausted.
func (s *SQLSource) Next(ctx context.Context) (campaign.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return nil, fmt.Errorf("iterating recipient rows: %w", err)
		}
		return nil, io.EOF
	}

	values := make([]sql.NullString, len(s.columns))
	dest := make([]any, len(s.columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := s.rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scanning recipient row: %w", err)
	}

	fields := make(map[string]string, len(s.columns))
	for i, col := range s.columns {
		if values[i].Valid {
			fields[col] = values[i].String
		}
	}

	s.ordinal++
	return sqlRecord{ordinal: s.ordinal, fields: fields}, nil
}

// Close releases the underlying rows.
func (s *SQLSource) Close() error {
	return s.rows.Close()
}

// sqlRecord exposes one scanned row by lowercase column name.
type sqlRecord struct {
	ordinal int
	fields  map[string]string
}

// ID returns the row's id column, falling back to its ordinal position so
// log lines can still point at the offending row.
func (r sqlRecord) ID() string {
	if id, ok := r.fields["id"]; ok && id != "" {
		return id
	}
	return "row-" + strconv.Itoa(r.ordinal)
}

// Type returns the row's record type column, defaulting to "customer".
func (r sqlRecord) Type() string {
	if t, ok := r.fields["recordtype"]; ok && t != "" {
		return t
	}
	return "customer"
}

// Field returns the named column's value, or "" when absent or NULL.
func (r sqlRecord) Field(name string) string {
	return r.fields[strings.ToLower(name)]
}
