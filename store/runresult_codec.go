package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"apiflow/engine"
)

func marshalRunResult(r engine.RunResult) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("runresult: encode failed: %w", err)
	}
	return raw, nil
}

func unmarshalRunResult(raw []byte) (engine.RunResult, error) {
	var r engine.RunResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return engine.RunResult{}, fmt.Errorf("runresult: decode failed: %w", err)
	}
	return r, nil
}

func scanRunResult(row *sql.Row) (*engine.RunResult, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("runresult: scan failed: %w", err)
	}
	entity, err := unmarshalRunResult(raw)
	if err != nil {
		return nil, err
	}
	return &entity, nil
}
