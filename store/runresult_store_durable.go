package store

import (
	"context"
	"database/sql"
	"fmt"

	"apiflow/engine"
)

// PostgresRunResults is a standalone Postgres backend for RunResults (it
// does not wrap Postgres[T]): its own run_results table carries the extra
// configId/success columns spec.md §4.3 calls out for runs specifically,
// rather than forcing every entity kind through the generic JSONB table.
type PostgresRunResults struct {
	db *sql.DB
}

func NewPostgresRunResults(db *sql.DB) (*PostgresRunResults, error) {
	ddl := `CREATE TABLE IF NOT EXISTS run_results (
		id TEXT NOT NULL,
		tenant TEXT NOT NULL DEFAULT '',
		config_id TEXT NOT NULL DEFAULT '',
		success BOOLEAN NOT NULL,
		payload JSONB NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (id, tenant)
	)`
	if _, err := db.Exec(ddl); err != nil {
		return nil, fmt.Errorf("postgres: failed to initialize run_results: %w", err)
	}
	return &PostgresRunResults{db: db}, nil
}

func (p *PostgresRunResults) Get(ctx context.Context, id, tenant string) (*engine.RunResult, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT payload FROM run_results WHERE id = $1 AND ($2 = '' OR tenant = $2)`, DecodeID(id), tenant)
	return scanRunResult(row)
}

func (p *PostgresRunResults) Upsert(ctx context.Context, id string, entity engine.RunResult, tenant string) (*engine.RunResult, error) {
	id = DecodeID(id)
	raw, err := marshalRunResult(entity)
	if err != nil {
		return nil, err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO run_results (id, tenant, config_id, success, payload, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id, tenant) DO UPDATE
		SET config_id = $3, success = $4, payload = $5, started_at = $6, completed_at = $7`,
		id, tenant, entity.ConfigID, entity.Success, raw, entity.StartedAt, entity.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("postgres.upsert: %w", err)
	}
	result := entity
	return &result, nil
}

func (p *PostgresRunResults) Delete(ctx context.Context, id, tenant string) (bool, error) {
	result, err := p.db.ExecContext(ctx,
		`DELETE FROM run_results WHERE id = $1 AND ($2 = '' OR tenant = $2)`, DecodeID(id), tenant)
	if err != nil {
		return false, fmt.Errorf("postgres.delete: %w", err)
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}

func (p *PostgresRunResults) List(ctx context.Context, limit, offset int, tenant string) (Page[engine.RunResult], error) {
	return p.query(ctx, "", limit, offset, tenant)
}

func (p *PostgresRunResults) ListByConfig(ctx context.Context, configID string, limit, offset int, tenant string) (Page[engine.RunResult], error) {
	return p.query(ctx, configID, limit, offset, tenant)
}

func (p *PostgresRunResults) query(ctx context.Context, configID string, limit, offset int, tenant string) (Page[engine.RunResult], error) {
	var total int
	if err := p.db.QueryRowContext(ctx,
		`SELECT count(*) FROM run_results WHERE ($1 = '' OR tenant = $1) AND ($2 = '' OR config_id = $2)`,
		tenant, configID).Scan(&total); err != nil {
		return Page[engine.RunResult]{}, fmt.Errorf("postgres.list: count failed: %w", err)
	}

	query := `SELECT payload FROM run_results WHERE ($1 = '' OR tenant = $1) AND ($2 = '' OR config_id = $2) ORDER BY id ASC`
	args := []any{tenant, configID}
	if limit > 0 {
		query += " LIMIT $3 OFFSET $4"
		args = append(args, limit, offset)
	} else if offset > 0 {
		query += " OFFSET $3"
		args = append(args, offset)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Page[engine.RunResult]{}, fmt.Errorf("postgres.list: %w", err)
	}
	defer rows.Close()

	items := make([]engine.RunResult, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return Page[engine.RunResult]{}, fmt.Errorf("postgres.list: scan failed: %w", err)
		}
		entity, err := unmarshalRunResult(raw)
		if err != nil {
			return Page[engine.RunResult]{}, err
		}
		items = append(items, entity)
	}
	return Page[engine.RunResult]{Items: items, Total: total}, rows.Err()
}

func (p *PostgresRunResults) DeleteAll(ctx context.Context, tenant string) (int, error) {
	result, err := p.db.ExecContext(ctx, `DELETE FROM run_results WHERE ($1 = '' OR tenant = $1)`, tenant)
	if err != nil {
		return 0, fmt.Errorf("postgres.deleteAll: %w", err)
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}
