package persistence

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/go-go-golems/answerstream/pkg/conversation"
)

// SQLiteTurnLog persists turn snapshots to a local SQLite database.
type SQLiteTurnLog struct {
	db *sql.DB
}

var _ TurnLog = &SQLiteTurnLog{}

func NewSQLiteTurnLog(dsn string) (*SQLiteTurnLog, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite turn log: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite turn log: open")
	}
	l := &SQLiteTurnLog{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *SQLiteTurnLog) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *SQLiteTurnLog) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS turns (
			conv_id TEXT NOT NULL,
			turn_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			status TEXT NOT NULL,
			text TEXT NOT NULL,
			session_json TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL,
			PRIMARY KEY (conv_id, turn_id, created_at_ms)
		);`,
		`CREATE INDEX IF NOT EXISTS turns_by_conv ON turns(conv_id, created_at_ms);`,
	}
	for _, st := range stmts {
		if _, err := l.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite turn log: migrate")
		}
	}
	return nil
}

func (l *SQLiteTurnLog) Save(ctx context.Context, convID string, turn conversation.Turn) error {
	if l == nil || l.db == nil {
		return errors.New("sqlite turn log: db is nil")
	}
	if strings.TrimSpace(convID) == "" {
		return errors.New("sqlite turn log: convID is empty")
	}
	rec, err := recordFromTurn(convID, turn)
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO turns (conv_id, turn_id, role, status, text, session_json, created_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ConvID, rec.TurnID, rec.Role, rec.Status, rec.Text, rec.SessionJSON, rec.CreatedAtMs,
	)
	return errors.Wrap(err, "sqlite turn log: save")
}

func (l *SQLiteTurnLog) List(ctx context.Context, convID string, limit int) ([]TurnRecord, error) {
	if l == nil || l.db == nil {
		return nil, errors.New("sqlite turn log: db is nil")
	}
	query := `SELECT conv_id, turn_id, role, status, text, session_json, created_at_ms FROM turns`
	args := []any{}
	if convID != "" {
		query += ` WHERE conv_id = ?`
		args = append(args, convID)
	}
	query += ` ORDER BY created_at_ms ASC, turn_id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite turn log: list")
	}
	defer func() { _ = rows.Close() }()

	var out []TurnRecord
	for rows.Next() {
		var rec TurnRecord
		if err := rows.Scan(&rec.ConvID, &rec.TurnID, &rec.Role, &rec.Status, &rec.Text, &rec.SessionJSON, &rec.CreatedAtMs); err != nil {
			return nil, errors.Wrap(err, "sqlite turn log: scan")
		}
		out = append(out, rec)
	}
	return out, errors.Wrap(rows.Err(), "sqlite turn log: rows")
}
