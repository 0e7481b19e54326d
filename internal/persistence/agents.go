package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ReplaceAgents swaps the cached listing of one source for recs in a single
// transaction, so readers never see a half-written listing.
func (s *SQLiteStore) ReplaceAgents(ctx context.Context, source string, recs []AgentRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM agents WHERE source = ?`, source); err != nil {
		return fmt.Errorf("failed to clear %s agents: %w", source, err)
	}

	now := time.Now().UnixMilli()
	for _, rec := range recs {
		id := rec.ID
		if id == "" {
			id = rec.Name
		}
		caps, err := json.Marshal(rec.Capabilities)
		if err != nil {
			return fmt.Errorf("failed to encode capabilities of %q: %w", rec.Name, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO agents (source, id, name, description, type, status, category, icon, capabilities, request_count, rating, downloads, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(source, id) DO UPDATE SET
				name = excluded.name,
				description = excluded.description,
				type = excluded.type,
				status = excluded.status,
				category = excluded.category,
				icon = excluded.icon,
				capabilities = excluded.capabilities,
				request_count = excluded.request_count,
				rating = excluded.rating,
				downloads = excluded.downloads,
				updated_at = excluded.updated_at
		`, source, id, rec.Name, rec.Description, rec.Type, rec.Status, rec.Category, rec.Icon, string(caps), rec.RequestCount, rec.Rating, rec.Downloads, now)
		if err != nil {
			return fmt.Errorf("failed to insert agent %q: %w", rec.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const agentColumns = `source, id, name, description, type, status, category, icon, capabilities, request_count, rating, downloads, updated_at`

// ListAgents returns the cached agents of one source ordered by name.
func (s *SQLiteStore) ListAgents(ctx context.Context, source string) ([]AgentRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE source = ? ORDER BY name`, source)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()

	var recs []AgentRecord
	for rows.Next() {
		rec, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agents: %w", err)
	}
	return recs, nil
}

// LastRefresh returns when a source was last written, or the zero time.
func (s *SQLiteStore) LastRefresh(ctx context.Context, source string) (time.Time, error) {
	var ms sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(updated_at) FROM agents WHERE source = ?`, source).Scan(&ms)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query last refresh: %w", err)
	}
	if !ms.Valid {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms.Int64), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAgent(row scanner) (AgentRecord, error) {
	var (
		rec                                                 AgentRecord
		description, typ, status, category, icon, capsJSON sql.NullString
		updated                                             int64
	)
	err := row.Scan(&rec.Source, &rec.ID, &rec.Name, &description, &typ, &status, &category, &icon, &capsJSON, &rec.RequestCount, &rec.Rating, &rec.Downloads, &updated)
	if err != nil {
		return AgentRecord{}, fmt.Errorf("failed to scan agent: %w", err)
	}
	rec.Description = description.String
	rec.Type = typ.String
	rec.Status = status.String
	rec.Category = category.String
	rec.Icon = icon.String
	rec.UpdatedAt = time.UnixMilli(updated)
	if capsJSON.Valid && capsJSON.String != "" {
		if err := json.Unmarshal([]byte(capsJSON.String), &rec.Capabilities); err != nil {
			return AgentRecord{}, fmt.Errorf("failed to decode capabilities of %q: %w", rec.Name, err)
		}
	}
	return rec, nil
}
