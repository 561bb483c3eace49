package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresDriver stores payloads as rows in a blob table, one row per key.
// Suited to pipelines that already run against Postgres and have no object
// store provisioned.
type PostgresDriver struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresDriver(dsn string) (*PostgresDriver, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("storage: postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open postgres: %w", err)
	}
	return &PostgresDriver{db: db}, nil
}

// NewPostgresDriverFromDB wraps an existing connection pool.
func NewPostgresDriverFromDB(db *sql.DB) *PostgresDriver {
	return &PostgresDriver{db: db}
}

func (d *PostgresDriver) ensureSchema(ctx context.Context) error {
	d.schemaOnce.Do(func() {
		_, d.schemaErr = d.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS step_payloads (
    run_id TEXT NOT NULL,
    step_id TEXT NOT NULL,
    slot TEXT NOT NULL,
    content BYTEA NOT NULL DEFAULT ''::bytea,
    content_type TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    PRIMARY KEY (run_id, step_id, slot)
);
`)
	})
	return d.schemaErr
}

func (d *PostgresDriver) Write(ctx context.Context, key Key, payload Payload) error {
	if err := d.ensureSchema(ctx); err != nil {
		return &WriteError{Key: key, Err: fmt.Errorf("ensure schema: %w", err)}
	}
	content := payload.Data
	if content == nil {
		content = []byte{}
	}
	contentType := "application/octet-stream"
	if payload.Kind == PayloadText {
		cs := payload.Charset
		if cs == "" {
			cs = DefaultCharset
		}
		contentType = "text/plain; charset=" + cs
	}
	_, err := d.db.ExecContext(ctx, `
INSERT INTO step_payloads (run_id, step_id, slot, content, content_type, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (run_id, step_id, slot)
DO UPDATE SET content=EXCLUDED.content, content_type=EXCLUDED.content_type, updated_at=EXCLUDED.updated_at
`, key.RunID, key.StepID, key.Slot, content, contentType, time.Now())
	if err != nil {
		return &WriteError{Key: key, Err: err}
	}
	return nil
}

func (d *PostgresDriver) Read(ctx context.Context, key Key) (Payload, error) {
	if err := d.ensureSchema(ctx); err != nil {
		return Payload{}, &ReadError{Key: key, Err: fmt.Errorf("ensure schema: %w", err)}
	}
	var content []byte
	err := d.db.QueryRowContext(ctx,
		`SELECT content FROM step_payloads WHERE run_id=$1 AND step_id=$2 AND slot=$3`,
		key.RunID, key.StepID, key.Slot).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return Payload{}, ErrNotFound
	}
	if err != nil {
		return Payload{}, &ReadError{Key: key, Err: err}
	}
	return Bytes(content), nil
}

func (d *PostgresDriver) Exists(ctx context.Context, key Key) (bool, error) {
	if err := d.ensureSchema(ctx); err != nil {
		return false, &ReadError{Key: key, Err: fmt.Errorf("ensure schema: %w", err)}
	}
	var one int
	err := d.db.QueryRowContext(ctx,
		`SELECT 1 FROM step_payloads WHERE run_id=$1 AND step_id=$2 AND slot=$3`,
		key.RunID, key.StepID, key.Slot).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &ReadError{Key: key, Err: err}
	}
	return true, nil
}

func (d *PostgresDriver) List(ctx context.Context, runID, stepID string) ([]string, error) {
	if err := checkIdentifier("run", runID); err != nil {
		return nil, err
	}
	if err := checkIdentifier("step", stepID); err != nil {
		return nil, err
	}
	stepKey := Key{RunID: runID, StepID: stepID}
	if err := d.ensureSchema(ctx); err != nil {
		return nil, &ReadError{Key: stepKey, Err: fmt.Errorf("ensure schema: %w", err)}
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT slot FROM step_payloads WHERE run_id=$1 AND step_id=$2 ORDER BY slot`,
		runID, stepID)
	if err != nil {
		return nil, &ReadError{Key: stepKey, Err: err}
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, &ReadError{Key: stepKey, Err: err}
		}
		names = append(names, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, &ReadError{Key: stepKey, Err: err}
	}
	return names, nil
}

func (d *PostgresDriver) Location(key Key) string {
	return "postgres://step_payloads/" + key.String()
}

// Close releases the connection pool.
func (d *PostgresDriver) Close() error {
	return d.db.Close()
}
