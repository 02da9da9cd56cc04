package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresConfig mirrors the teacher's plugins/postgres Config: a pooled
// lib/pq connection tuned by MaxOpenConns/MaxIdleConns/ConnMaxLifetimeMs.
type PostgresConfig struct {
	ConnectionString  string `yaml:"connection_string" validate:"required"`
	MaxOpenConns      int    `yaml:"max_open_conns" default:"10" validate:"gte=1,lte=100"`
	MaxIdleConns      int    `yaml:"max_idle_conns" default:"5" validate:"gte=0,lte=50"`
	ConnMaxLifetimeMs int    `yaml:"conn_max_lifetime_ms" default:"300000" validate:"gte=0"`
}

// OpenPostgres opens and pings a pooled *sql.DB, adapted from the teacher's
// plugins/postgres/plugin.go Initialize.
func OpenPostgres(cfg PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMs) * time.Millisecond)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}
	return db, nil
}

// Postgres is an EntityStore backend storing every row of one entity kind
// as a JSONB blob in its own table, keyed by (id, tenant). It generalizes
// the teacher's hand-rolled Get/Exec query plugin into a typed contract:
// instead of exposing raw SQL to workflow authors, it binds the same
// lib/pq driver to the fixed schema every entity kind needs.
type Postgres[T any] struct {
	db    *sql.DB
	table string
}

// NewPostgres opens (creating if absent) the backing table for one entity
// kind. table must be a trusted, code-controlled identifier — it is never
// derived from request input — since it is interpolated into DDL/DML that
// lib/pq cannot parameterize for table names.
func NewPostgres[T any](db *sql.DB, table string) (*Postgres[T], error) {
	p := &Postgres[T]{db: db, table: table}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT NOT NULL,
		tenant TEXT NOT NULL DEFAULT '',
		entity JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (id, tenant)
	)`, table)
	if _, err := db.Exec(ddl); err != nil {
		return nil, fmt.Errorf("postgres: failed to initialize table %s: %w", table, err)
	}
	return p, nil
}

func (p *Postgres[T]) Get(ctx context.Context, id, tenant string) (*T, error) {
	id = DecodeID(id)
	query := fmt.Sprintf(`SELECT entity, created_at, updated_at FROM %s WHERE id = $1 AND ($2 = '' OR tenant = $2)`, p.table)
	row := p.db.QueryRowContext(ctx, query, id, tenant)

	var raw []byte
	var createdAt, updatedAt time.Time
	if err := row.Scan(&raw, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres.get: %w", err)
	}

	var entity T
	if err := json.Unmarshal(raw, &entity); err != nil {
		return nil, fmt.Errorf("postgres.get: decode failed: %w", err)
	}
	entity = stampEntity(entity, Timestamps{CreatedAt: createdAt, UpdatedAt: updatedAt})
	return &entity, nil
}

func (p *Postgres[T]) Upsert(ctx context.Context, id string, entity T, tenant string) (*T, error) {
	id = DecodeID(id)
	now := time.Now()

	// Stamp tentatively so the JSONB body already carries updatedAt and a
	// provisional createdAt; the RETURNING clause below corrects
	// createdAt to the row's original value when this is an update, so
	// it survives across upserts per spec.md §4.3.
	entity = stampEntity(entity, Timestamps{CreatedAt: now, UpdatedAt: now})
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("postgres.upsert: encode failed: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, tenant, entity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id, tenant) DO UPDATE
		SET entity = $3, updated_at = $4
		RETURNING created_at, updated_at`, p.table)
	row := p.db.QueryRowContext(ctx, query, id, tenant, raw, now)

	var createdAt, updatedAt time.Time
	if err := row.Scan(&createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("postgres.upsert: %w", err)
	}

	entity = stampEntity(entity, Timestamps{CreatedAt: createdAt, UpdatedAt: updatedAt})
	result := entity
	return &result, nil
}

func (p *Postgres[T]) Delete(ctx context.Context, id, tenant string) (bool, error) {
	id = DecodeID(id)
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND ($2 = '' OR tenant = $2)`, p.table)
	result, err := p.db.ExecContext(ctx, query, id, tenant)
	if err != nil {
		return false, fmt.Errorf("postgres.delete: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres.delete: %w", err)
	}
	return affected > 0, nil
}

func (p *Postgres[T]) List(ctx context.Context, limit, offset int, tenant string) (Page[T], error) {
	countQuery := fmt.Sprintf(`SELECT count(*) FROM %s WHERE ($1 = '' OR tenant = $1)`, p.table)
	var total int
	if err := p.db.QueryRowContext(ctx, countQuery, tenant).Scan(&total); err != nil {
		return Page[T]{}, fmt.Errorf("postgres.list: count failed: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT entity, created_at, updated_at FROM %s WHERE ($1 = '' OR tenant = $1)
		ORDER BY id ASC`, p.table)
	args := []any{tenant}
	if limit > 0 {
		query += " LIMIT $2 OFFSET $3"
		args = append(args, limit, offset)
	} else if offset > 0 {
		query += " OFFSET $2"
		args = append(args, offset)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Page[T]{}, fmt.Errorf("postgres.list: %w", err)
	}
	defer rows.Close()

	items := make([]T, 0)
	for rows.Next() {
		var raw []byte
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&raw, &createdAt, &updatedAt); err != nil {
			return Page[T]{}, fmt.Errorf("postgres.list: scan failed: %w", err)
		}
		var entity T
		if err := json.Unmarshal(raw, &entity); err != nil {
			return Page[T]{}, fmt.Errorf("postgres.list: decode failed: %w", err)
		}
		entity = stampEntity(entity, Timestamps{CreatedAt: createdAt, UpdatedAt: updatedAt})
		items = append(items, entity)
	}

	return Page[T]{Items: items, Total: total}, rows.Err()
}
