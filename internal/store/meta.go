package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Keys written by RecordSync.
const (
	MetaLastSyncSuccess = "last_sync_success"
	MetaLastSyncTime    = "last_sync_time"
	MetaLastSyncMessage = "last_sync_message"
	MetaLastSuccessTime = "last_success_time"
)

// SyncRecord is the outcome of the most recent sync run.
type SyncRecord struct {
	Success bool
	At      time.Time
	Message string
	// LastSuccess is the time of the most recent successful run, zero if none.
	LastSuccess time.Time
}

// SetMeta stores a key/value pair.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO sync_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store: set meta %s: %w", key, err)
	}
	return nil
}

// Meta returns the value for key, or ErrNotFound.
func (s *Store) Meta(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM sync_meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: meta %s: %w", key, err)
	}
	return v, nil
}

// RecordSync persists the outcome of a sync run in one transaction.
func (s *Store) RecordSync(ctx context.Context, rec SyncRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: record sync: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	set := func(k, v string) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO sync_meta (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, k, v, now)
		return err
	}
	at := strconv.FormatInt(rec.At.Unix(), 10)
	if err := set(MetaLastSyncSuccess, strconv.FormatBool(rec.Success)); err != nil {
		return fmt.Errorf("store: record sync: %w", err)
	}
	if err := set(MetaLastSyncTime, at); err != nil {
		return fmt.Errorf("store: record sync: %w", err)
	}
	if err := set(MetaLastSyncMessage, rec.Message); err != nil {
		return fmt.Errorf("store: record sync: %w", err)
	}
	if rec.Success {
		if err := set(MetaLastSuccessTime, at); err != nil {
			return fmt.Errorf("store: record sync: %w", err)
		}
	}
	return tx.Commit()
}

// LastSync returns the most recent recorded run, or ErrNotFound if none.
func (s *Store) LastSync(ctx context.Context) (SyncRecord, error) {
	var rec SyncRecord
	ok, err := s.Meta(ctx, MetaLastSyncSuccess)
	if err != nil {
		return rec, err
	}
	rec.Success, _ = strconv.ParseBool(ok)
	if v, err := s.Meta(ctx, MetaLastSyncTime); err == nil {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			rec.At = time.Unix(n, 0).UTC()
		}
	}
	if v, err := s.Meta(ctx, MetaLastSyncMessage); err == nil {
		rec.Message = v
	}
	if v, err := s.Meta(ctx, MetaLastSuccessTime); err == nil {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			rec.LastSuccess = time.Unix(n, 0).UTC()
		}
	}
	return rec, nil
}
