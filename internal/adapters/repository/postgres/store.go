package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/okian/baculator/internal/adapters/repository"
	"github.com/okian/baculator/internal/domain/model"
	"github.com/okian/baculator/pkg/metrics"
)

const backend = "postgres"

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements repository.Store using PostgreSQL.
type Store struct {
	db   *DB
	opts repository.Options
}

var _ repository.Store = (*Store)(nil)

// NewStore constructs a PostgreSQL store.
func NewStore(db *DB, opts ...repository.Option) *Store {
	return &Store{db: db, opts: repository.ApplyOptions(opts...)}
}

func observe(op string, start time.Time) {
	metrics.RecordRepositoryLatency(backend, op, float64(time.Since(start).Microseconds())/1000)
}

const sessionColumns = `id, user_id, name, started_at, finished_at, last_drink_at`

func scanSession(row pgx.Row) (model.Session, error) {
	var s model.Session
	err := row.Scan(&s.ID, &s.UserID, &s.Name, &s.StartedAt, &s.FinishedAt, &s.LastDrinkAt)
	return s, err
}

// inTx runs fn in a transaction, committing on success.
func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()
	return fn(tx)
}

// lastActivity is the later of the start and the last drink, matching
// model.Session.LastActivity.
const lastActivity = `GREATEST(started_at, COALESCE(last_drink_at, started_at))`

// closeIdleFor finishes the user's open session if it went idle before now.
func (s *Store) closeIdleFor(ctx context.Context, q querier, userID string, now time.Time) error {
	const upd = `
UPDATE sessions
SET finished_at = ` + lastActivity + ` + make_interval(secs => $3)
WHERE user_id = $1 AND finished_at IS NULL AND ` + lastActivity + ` < $2`
	_, err := q.Exec(ctx, upd, userID, now.Add(-s.opts.IdleTimeout), s.opts.IdleTimeout.Seconds())
	return err
}

// SaveProfile implements repository.Store.
func (s *Store) SaveProfile(ctx context.Context, p model.UserProfile) error {
	defer observe("save_profile", time.Now())

	const q = `
INSERT INTO profiles (user_id, weight_kg, sex, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE
SET weight_kg = EXCLUDED.weight_kg, sex = EXCLUDED.sex, updated_at = EXCLUDED.updated_at`
	_, err := s.db.Pool.Exec(ctx, q, p.UserID, p.WeightKg, p.Sex, p.UpdatedAt)
	return err
}

// GetProfile implements repository.Store.
func (s *Store) GetProfile(ctx context.Context, userID string) (model.UserProfile, error) {
	defer observe("get_profile", time.Now())

	const q = `
SELECT user_id, weight_kg, sex, updated_at
FROM profiles WHERE user_id=$1`
	var p model.UserProfile
	if err := s.db.Pool.QueryRow(ctx, q, userID).Scan(&p.UserID, &p.WeightKg, &p.Sex, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.UserProfile{}, fmt.Errorf("profile %s: %w", userID, repository.ErrNotFound)
		}
		return model.UserProfile{}, err
	}
	return p, nil
}

// OpenSession implements repository.Store.
func (s *Store) OpenSession(ctx context.Context, userID, name string, now time.Time) (sess model.Session, created bool, err error) {
	defer observe("open_session", time.Now())

	const sel = `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id=$1 AND finished_at IS NULL FOR UPDATE`
	const ins = `INSERT INTO sessions (id, user_id, name, started_at) VALUES ($1, $2, $3, $4)`

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.closeIdleFor(ctx, tx, userID, now); err != nil {
			return err
		}
		open, err := scanSession(tx.QueryRow(ctx, sel, userID))
		switch {
		case err == nil:
			sess = open
			return nil
		case !errors.Is(err, pgx.ErrNoRows):
			return err
		}
		sess = model.Session{ID: uuid.New(), UserID: userID, Name: name, StartedAt: now}
		if _, err := tx.Exec(ctx, ins, sess.ID, sess.UserID, sess.Name, sess.StartedAt); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("open session for %s: %w", userID, repository.ErrConflict)
			}
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return model.Session{}, false, err
	}
	return sess, created, nil
}

// CloseSession implements repository.Store.
func (s *Store) CloseSession(ctx context.Context, userID string, now time.Time) (model.Session, error) {
	defer observe("close_session", time.Now())

	if err := s.closeIdleFor(ctx, s.db.Pool, userID, now); err != nil {
		return model.Session{}, err
	}
	const upd = `
UPDATE sessions SET finished_at = $2
WHERE user_id = $1 AND finished_at IS NULL
RETURNING ` + sessionColumns
	sess, err := scanSession(s.db.Pool.QueryRow(ctx, upd, userID, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Session{}, repository.ErrNoOpenSession
		}
		return model.Session{}, err
	}
	return sess, nil
}

// CurrentSession implements repository.Store.
func (s *Store) CurrentSession(ctx context.Context, userID string, now time.Time) (model.Session, error) {
	defer observe("current_session", time.Now())

	if err := s.closeIdleFor(ctx, s.db.Pool, userID, now); err != nil {
		return model.Session{}, err
	}
	const sel = `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id=$1 AND finished_at IS NULL`
	sess, err := scanSession(s.db.Pool.QueryRow(ctx, sel, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Session{}, repository.ErrNoOpenSession
		}
		return model.Session{}, err
	}
	return sess, nil
}

// ListSessions implements repository.Store.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]model.Session, error) {
	defer observe("list_sessions", time.Now())

	const q = `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id=$1 ORDER BY started_at DESC`
	return s.querySessions(ctx, q, userID)
}

func (s *Store) querySessions(ctx context.Context, q string, args ...any) ([]model.Session, error) {
	rows, err := s.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// AddDrink implements repository.Store.
func (s *Store) AddDrink(ctx context.Context, userID string, entry model.DrinkEntry, now time.Time) (model.DrinkEntry, error) {
	defer observe("add_drink", time.Now())

	const ins = `
INSERT INTO drinks (id, session_id, standards, finished_at, created_at)
VALUES ($1, $2, $3, $4, $5)`
	const upd = `
UPDATE sessions SET last_drink_at = GREATEST(COALESCE(last_drink_at, $2), $2)
WHERE id = $1`

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = now

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		sessionID, err := s.openSessionID(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		entry.SessionID = sessionID
		if _, err := tx.Exec(ctx, ins, entry.ID, entry.SessionID, entry.Standards, entry.FinishedAt, entry.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("drink %s: %w", entry.ID, repository.ErrConflict)
			}
			return err
		}
		_, err = tx.Exec(ctx, upd, entry.SessionID, entry.FinishedAt)
		return err
	})
	if err != nil {
		return model.DrinkEntry{}, err
	}
	return entry, nil
}

// openSessionID locks the user's open session after applying the idle rule.
func (s *Store) openSessionID(ctx context.Context, tx pgx.Tx, userID string, now time.Time) (uuid.UUID, error) {
	const sel = `SELECT id FROM sessions WHERE user_id=$1 AND finished_at IS NULL FOR UPDATE`
	if err := s.closeIdleFor(ctx, tx, userID, now); err != nil {
		return uuid.Nil, err
	}
	var id uuid.UUID
	if err := tx.QueryRow(ctx, sel, userID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, repository.ErrNoOpenSession
		}
		return uuid.Nil, err
	}
	return id, nil
}

// recomputeLastDrink resets last_drink_at after a drink was edited or removed.
func recomputeLastDrink(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID) error {
	const upd = `
UPDATE sessions SET last_drink_at = (SELECT MAX(finished_at) FROM drinks WHERE session_id = $1)
WHERE id = $1`
	_, err := tx.Exec(ctx, upd, sessionID)
	return err
}

// UpdateDrink implements repository.Store.
func (s *Store) UpdateDrink(ctx context.Context, userID string, entry model.DrinkEntry, now time.Time) (model.DrinkEntry, error) {
	defer observe("update_drink", time.Now())

	const upd = `
UPDATE drinks SET standards = $3, finished_at = $4
WHERE id = $1 AND session_id = $2
RETURNING id, session_id, standards, finished_at, created_at`

	var out model.DrinkEntry
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		sessionID, err := s.openSessionID(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, upd, entry.ID, sessionID, entry.Standards, entry.FinishedAt).
			Scan(&out.ID, &out.SessionID, &out.Standards, &out.FinishedAt, &out.CreatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("drink %s: %w", entry.ID, repository.ErrNotFound)
			}
			return err
		}
		return recomputeLastDrink(ctx, tx, sessionID)
	})
	if err != nil {
		return model.DrinkEntry{}, err
	}
	return out, nil
}

// DeleteDrink implements repository.Store.
func (s *Store) DeleteDrink(ctx context.Context, userID string, drinkID uuid.UUID, now time.Time) error {
	defer observe("delete_drink", time.Now())

	const del = `DELETE FROM drinks WHERE id = $1 AND session_id = $2`

	return s.inTx(ctx, func(tx pgx.Tx) error {
		sessionID, err := s.openSessionID(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, del, drinkID, sessionID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("drink %s: %w", drinkID, repository.ErrNotFound)
		}
		return recomputeLastDrink(ctx, tx, sessionID)
	})
}

// ListDrinks implements repository.Store.
func (s *Store) ListDrinks(ctx context.Context, sessionID uuid.UUID) ([]model.DrinkEntry, error) {
	defer observe("list_drinks", time.Now())

	const q = `
SELECT id, session_id, standards, finished_at, created_at
FROM drinks
WHERE session_id=$1
ORDER BY finished_at ASC, created_at ASC`
	rows, err := s.db.Pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.DrinkEntry{}
	for rows.Next() {
		var d model.DrinkEntry
		if err = rows.Scan(&d.ID, &d.SessionID, &d.Standards, &d.FinishedAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ActiveSessions implements repository.Store.
func (s *Store) ActiveSessions(ctx context.Context, now time.Time) ([]model.Session, error) {
	defer observe("active_sessions", time.Now())

	const q = `
SELECT ` + sessionColumns + `
FROM sessions
WHERE finished_at IS NULL AND ` + lastActivity + ` >= $1
ORDER BY started_at ASC`
	return s.querySessions(ctx, q, now.Add(-s.opts.IdleTimeout))
}

// CloseIdleSessions implements repository.Store.
func (s *Store) CloseIdleSessions(ctx context.Context, now time.Time) (int, error) {
	defer observe("close_idle", time.Now())

	const upd = `
UPDATE sessions
SET finished_at = ` + lastActivity + ` + make_interval(secs => $2)
WHERE finished_at IS NULL AND ` + lastActivity + ` < $1`
	tag, err := s.db.Pool.Exec(ctx, upd, now.Add(-s.opts.IdleTimeout), s.opts.IdleTimeout.Seconds())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Count implements repository.Store.
func (s *Store) Count(ctx context.Context) (int, error) {
	const q = `SELECT count(*) FROM sessions WHERE finished_at IS NULL`
	var n int
	if err := s.db.Pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
