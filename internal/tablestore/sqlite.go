package tablestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const defaultDBName = "orderline.db"

// SQLiteStore keeps all tables in one generic records relation, for local
// single-node deployments and offline development. Filtering and sorting run
// in-process; the data volumes here are blueprint-sized.
type SQLiteStore struct {
	DB *sql.DB
}

// EnsureWorkspace creates the .orderline directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	if workspace == "" {
		workspace = "."
	}
	path := filepath.Join(workspace, ".orderline")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// OpenSQLite opens (and bootstraps) the workspace database.
func OpenSQLite(workspace string) (*SQLiteStore, error) {
	dir, err := EnsureWorkspace(workspace)
	if err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared", filepath.Join(dir, defaultDBName))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS records (
		id TEXT NOT NULL,
		tbl TEXT NOT NULL,
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		fields_json TEXT NOT NULL,
		UNIQUE(tbl, id)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap records table: %w", err)
	}
	return &SQLiteStore{DB: db}, nil
}

func (s *SQLiteStore) Close() error { return s.DB.Close() }

func (s *SQLiteStore) Find(ctx context.Context, table, id string) (Record, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT fields_json FROM records WHERE tbl=? AND id=?`, table, id)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return Record{}, err
	}
	return Record{ID: id, Fields: fields}, nil
}

func (s *SQLiteStore) List(ctx context.Context, table string, q Query) ([]Record, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, fields_json FROM records WHERE tbl=? ORDER BY seq`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, err
		}
		rec := Record{ID: id, Fields: fields}
		if q.Filter.Matches(rec) {
			out = append(out, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortRecords(out, q.Sort)
	return out, nil
}

func (s *SQLiteStore) Create(ctx context.Context, table string, fields []Fields) ([]Record, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	var out []Record
	for _, f := range fields {
		id := "rec" + strings.ReplaceAll(uuid.New().String(), "-", "")[:14]
		raw, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO records(id, tbl, fields_json) VALUES (?,?,?)`, id, table, string(raw)); err != nil {
			return nil, err
		}
		out = append(out, Record{ID: id, Fields: cloneFields(f)})
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) Update(ctx context.Context, table string, ups []Update) ([]Record, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	var out []Record
	for _, up := range ups {
		rec, err := mergeTx(ctx, tx, table, up.ID, up.Fields)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateIfEqual checks the guard and writes inside one transaction.
func (s *SQLiteStore) UpdateIfEqual(ctx context.Context, table, id, guardField string, guardValue any, fields Fields) (Record, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, err
	}
	defer tx.Rollback()
	current, err := findTx(ctx, tx, table, id)
	if err != nil {
		return Record{}, err
	}
	if !fieldEquals(current.Fields[guardField], guardValue) {
		return Record{}, ErrConflict
	}
	rec, err := mergeTx(ctx, tx, table, id, fields)
	if err != nil {
		return Record{}, err
	}
	if err := tx.Commit(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func findTx(ctx context.Context, tx *sql.Tx, table, id string) (Record, error) {
	var raw string
	err := tx.QueryRowContext(ctx, `SELECT fields_json FROM records WHERE tbl=? AND id=?`, table, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return Record{}, err
	}
	return Record{ID: id, Fields: fields}, nil
}

func mergeTx(ctx context.Context, tx *sql.Tx, table, id string, fields Fields) (Record, error) {
	current, err := findTx(ctx, tx, table, id)
	if err != nil {
		return Record{}, err
	}
	for k, v := range fields {
		current.Fields[k] = v
	}
	raw, err := json.Marshal(current.Fields)
	if err != nil {
		return Record{}, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE records SET fields_json=? WHERE tbl=? AND id=?`, string(raw), table, id); err != nil {
		return Record{}, err
	}
	return current, nil
}

func decodeFields(raw string) (Fields, error) {
	var fields Fields
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("decode record fields: %w", err)
	}
	if fields == nil {
		fields = Fields{}
	}
	return fields, nil
}
