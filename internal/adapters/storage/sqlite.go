package storage

// Almacén clave-valor sobre SQLite.
//
// Una sola tabla `kv`. El ledger guarda tres claves fijas (balance, inventory,
// history) y siempre las escribe juntas en una transacción, así que un corte a
// mitad de escritura nunca deja un estado mezclado.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at DATETIME NOT NULL
);
`

const upsertKV = `
INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
    value      = excluded.value,
    updated_at = excluded.updated_at
`

// SQLiteKV implementa ports.KVStore usando SQLite (pure Go, sin CGo).
type SQLiteKV struct {
	db *sql.DB
}

// NewSQLiteKV abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteKV(path string) (*SQLiteKV, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteKV: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer; además ":memory:" es por conexión
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteKV: apply schema: %w", err)
	}
	return &SQLiteKV{db: db}, nil
}

// Get devuelve el valor de key. ok=false si no existe.
func (s *SQLiteKV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage.Get %q: %w", key, err)
	}
	return value, true, nil
}

// Set escribe una clave.
func (s *SQLiteKV) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, upsertKV, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("storage.Set %q: %w", key, err)
	}
	return nil
}

// SetMany escribe todas las claves en una transacción.
func (s *SQLiteKV) SetMany(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SetMany: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertKV)
	if err != nil {
		return fmt.Errorf("storage.SetMany: prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for k, v := range values {
		if _, err := stmt.ExecContext(ctx, k, v, now); err != nil {
			return fmt.Errorf("storage.SetMany: upsert %q: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SetMany: commit: %w", err)
	}
	return nil
}

// Clear borra todas las claves.
func (s *SQLiteKV) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv`); err != nil {
		return fmt.Errorf("storage.Clear: %w", err)
	}
	return nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteKV) Close() error {
	return s.db.Close()
}
