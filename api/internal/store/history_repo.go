package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"mathsnap/api/internal/problem"
)

// HistoryKey is the slot holding an owner's serialized history list.
const HistoryKey = "mitphoto_history"

var (
	ErrNotFound    = errors.New("store: record not found")
	ErrDuplicateID = errors.New("store: record id already exists")
)

// envelope is the stored layout. Unversioned bare arrays are read as
// version 0 and rewritten on the next save.
type envelope struct {
	Version int               `json:"version"`
	Records []json.RawMessage `json:"records"`
}

// HistoryRepo stores one ordered record list per owner, newest first.
type HistoryRepo struct {
	DB  *sql.DB
	Log *slog.Logger
	// Postgres row-locks the slot during read-modify-write, so processes
	// sharing one database do not lose each other's writes.
	Postgres bool

	now func() time.Time
	mu  sync.Mutex // serializes read-modify-write within the process
}

func NewHistoryRepo(db *sql.DB, log *slog.Logger) *HistoryRepo {
	if log == nil {
		log = slog.Default()
	}
	r := &HistoryRepo{DB: db, Log: log, now: time.Now}
	if db != nil {
		_, r.Postgres = db.Driver().(*stdlib.Driver)
	}
	return r
}

// SlotKey returns the storage slot for owner.
func SlotKey(owner string) string {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return HistoryKey
	}
	return HistoryKey + ":" + owner
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func slotQuery(lock bool) string {
	if lock {
		return `select value from kv_slots where slot = $1 for update`
	}
	return `select value from kv_slots where slot = $1`
}

func (r *HistoryRepo) load(ctx context.Context, q querier, owner string) ([]problem.Record, error) {
	return r.loadSlot(ctx, q, owner, false)
}

func (r *HistoryRepo) loadSlot(ctx context.Context, q querier, owner string, lock bool) ([]problem.Record, error) {
	var raw string
	if err := q.QueryRowContext(ctx, slotQuery(lock), SlotKey(owner)).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []problem.Record{}, nil
		}
		return nil, fmt.Errorf("load history: %w", err)
	}
	recs, dropped, err := decodeHistory([]byte(raw))
	if err != nil {
		// unreadable history behaves as empty; the next save overwrites it
		r.Log.Warn("history slot is corrupt, treating as empty", "slot", SlotKey(owner), "error", err)
		return []problem.Record{}, nil
	}
	if dropped > 0 {
		r.Log.Warn("dropped malformed history records", "slot", SlotKey(owner), "count", dropped)
	}
	return recs, nil
}

// decodeHistory accepts the versioned envelope or a legacy bare array.
func decodeHistory(raw []byte) ([]problem.Record, int, error) {
	var items []json.RawMessage
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case strings.HasPrefix(trimmed, "["):
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, 0, err
		}
	case strings.HasPrefix(trimmed, "{"):
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, 0, err
		}
		if env.Version > problem.SchemaVersion {
			return nil, 0, fmt.Errorf("unsupported history version %d", env.Version)
		}
		items = env.Records
	default:
		return nil, 0, fmt.Errorf("unrecognized history layout")
	}

	out := make([]problem.Record, 0, len(items))
	seen := make(map[string]bool, len(items))
	dropped := 0
	for _, it := range items {
		var rec problem.Record
		if err := json.Unmarshal(it, &rec); err != nil || rec.Validate() != nil || seen[rec.ID] {
			dropped++
			continue
		}
		if rec.Steps == nil {
			rec.Steps = []string{}
		}
		seen[rec.ID] = true
		out = append(out, rec)
	}
	return out, dropped, nil
}

func encodeHistory(recs []problem.Record) ([]byte, error) {
	env := envelope{Version: problem.SchemaVersion, Records: make([]json.RawMessage, 0, len(recs))}
	for _, rec := range recs {
		b, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		env.Records = append(env.Records, b)
	}
	return json.Marshal(env)
}

func (r *HistoryRepo) write(ctx context.Context, tx *sql.Tx, owner string, recs []problem.Record) error {
	js, err := encodeHistory(recs)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	const q = `
insert into kv_slots(slot, value, updated_at)
values ($1, $2, $3)
on conflict (slot)
do update set value = excluded.value, updated_at = excluded.updated_at`
	if _, err := tx.ExecContext(ctx, q, SlotKey(owner), string(js), r.now().UnixMilli()); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

func (r *HistoryRepo) seed(ctx context.Context, tx *sql.Tx, owner string) error {
	empty, err := encodeHistory(nil)
	if err != nil {
		return err
	}
	const q = `
insert into kv_slots(slot, value, updated_at)
values ($1, $2, $3)
on conflict (slot) do nothing`
	if _, err := tx.ExecContext(ctx, q, SlotKey(owner), string(empty), r.now().UnixMilli()); err != nil {
		return fmt.Errorf("seed history slot: %w", err)
	}
	return nil
}

// update runs fn over the owner's list inside a transaction and persists the
// result when fn reports a change.
func (r *HistoryRepo) update(ctx context.Context, owner string, fn func([]problem.Record) ([]problem.Record, bool, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if r.Postgres {
		// a row must exist for "for update" to lock it
		if err := r.seed(ctx, tx, owner); err != nil {
			return err
		}
	}
	recs, err := r.loadSlot(ctx, tx, owner, r.Postgres)
	if err != nil {
		return err
	}
	next, changed, err := fn(recs)
	if err != nil || !changed {
		return err
	}
	if err := r.write(ctx, tx, owner, next); err != nil {
		return err
	}
	return tx.Commit()
}

// List returns the owner's history, newest first. A missing or corrupt slot
// yields an empty list.
func (r *HistoryRepo) List(ctx context.Context, owner string) ([]problem.Record, error) {
	return r.load(ctx, r.DB, owner)
}

// Get returns one record by id.
func (r *HistoryRepo) Get(ctx context.Context, owner, id string) (problem.Record, error) {
	recs, err := r.List(ctx, owner)
	if err != nil {
		return problem.Record{}, err
	}
	for _, rec := range recs {
		if rec.ID == id {
			return rec, nil
		}
	}
	return problem.Record{}, ErrNotFound
}

// Save prepends rec to the owner's history.
func (r *HistoryRepo) Save(ctx context.Context, owner string, rec problem.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	rec = rec.Clone()
	if rec.Steps == nil {
		rec.Steps = []string{}
	}
	return r.update(ctx, owner, func(recs []problem.Record) ([]problem.Record, bool, error) {
		for _, old := range recs {
			if old.ID == rec.ID {
				return nil, false, fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
			}
		}
		return append([]problem.Record{rec}, recs...), true, nil
	})
}

// Delete removes the record with id, keeping the order of the rest. It
// reports whether anything was removed; an unknown id is not an error.
func (r *HistoryRepo) Delete(ctx context.Context, owner, id string) (bool, error) {
	removed := false
	err := r.update(ctx, owner, func(recs []problem.Record) ([]problem.Record, bool, error) {
		out := recs[:0:0]
		for _, rec := range recs {
			if rec.ID == id {
				removed = true
				continue
			}
			out = append(out, rec)
		}
		return out, removed, nil
	})
	return removed, err
}

// Clear empties the owner's history.
func (r *HistoryRepo) Clear(ctx context.Context, owner string) error {
	const q = `delete from kv_slots where slot = $1`
	if _, err := r.DB.ExecContext(ctx, q, SlotKey(owner)); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (r *HistoryRepo) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}
