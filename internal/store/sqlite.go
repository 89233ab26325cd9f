// ABOUTME: SQLite store using modernc.org/sqlite behind the connection pool.
// ABOUTME: Owns schema creation and acquire/run/release statement helpers.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/vic767343/foodbot-gateway/internal/pool"
)

// Store is the SQLite-backed persistence layer. All statements run on
// connections checked out of the pool, so concurrent slow-path work is
// serialized and rate-limited by the pool bound.
type Store struct {
	db     *sql.DB
	pool   *pool.Pool
	logger *slog.Logger
}

// Open opens (or creates) the database at path and warms the connection
// pool. Parent directories are created if needed.
func Open(path string, poolCfg pool.Config) (*Store, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	max := poolCfg.MaxConnections
	if max <= 0 {
		max = pool.DefaultMaxConnections
	}
	// database/sql must allow at least as many driver connections as the
	// pool may check out, plus one for schema/maintenance statements.
	db.SetMaxOpenConns(max + 1)
	db.SetConnMaxIdleTime(0)

	s := &Store{db: db, logger: logger}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	s.pool = pool.New(s.connFactory, poolCfg)

	logger.Info("sqlite store initialized", "path", path)
	return s, nil
}

// connFactory hands the pool dedicated driver connections.
func (s *Store) connFactory(ctx context.Context) (pool.Conn, error) {
	return s.db.Conn(ctx)
}

// Pool exposes the connection pool for stats aggregation and for slow-path
// code that needs a raw connection.
func (s *Store) Pool() *pool.Pool {
	return s.pool
}

// createSchema creates the tables if they don't exist
func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS food_records (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			food_name TEXT NOT NULL,
			calories REAL NOT NULL DEFAULT 0,
			recorded_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_food_records_user_recorded
			ON food_records(user_id, recorded_at);

		CREATE TABLE IF NOT EXISTS phys_info (
			user_id TEXT PRIMARY KEY,
			gender TEXT NOT NULL DEFAULT '',
			age INTEGER NOT NULL DEFAULT 0,
			height_cm REAL NOT NULL DEFAULT 0,
			weight_kg REAL NOT NULL DEFAULT 0,
			allergies TEXT NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// withConn checks a connection out of the pool, runs fn, releases the
// connection, and records the statement latency. Pool exhaustion surfaces as
// the pool's sentinel error for the caller to degrade on.
func (s *Store) withConn(ctx context.Context, fn func(conn pool.Conn) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}

	start := time.Now()
	err = fn(conn)
	s.pool.RecordQuery(time.Since(start))
	s.pool.Release(conn)
	return err
}

// SaveFoodRecord inserts a food record, assigning an ID when absent.
func (s *Store) SaveFoodRecord(ctx context.Context, rec *FoodRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}

	return s.withConn(ctx, func(conn pool.Conn) error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO food_records (id, user_id, food_name, calories, recorded_at)
			 VALUES (?, ?, ?, ?, ?)`,
			rec.ID, rec.UserID, rec.FoodName, rec.Calories, rec.RecordedAt)
		if err != nil {
			return fmt.Errorf("inserting food record: %w", err)
		}
		return nil
	})
}

// CaloriesSince sums the calories a user logged at or after since.
func (s *Store) CaloriesSince(ctx context.Context, userID string, since time.Time) (float64, error) {
	var total float64
	err := s.withConn(ctx, func(conn pool.Conn) error {
		row, err := conn.QueryContext(ctx,
			`SELECT COALESCE(SUM(calories), 0) FROM food_records
			 WHERE user_id = ? AND recorded_at >= ?`,
			userID, since)
		if err != nil {
			return fmt.Errorf("querying calories: %w", err)
		}
		defer row.Close()

		if !row.Next() {
			return row.Err()
		}
		return row.Scan(&total)
	})
	return total, err
}

// RecentFoodRecords returns up to limit records for a user, newest first.
func (s *Store) RecentFoodRecords(ctx context.Context, userID string, limit int) ([]FoodRecord, error) {
	var records []FoodRecord
	err := s.withConn(ctx, func(conn pool.Conn) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT id, user_id, food_name, calories, recorded_at
			 FROM food_records WHERE user_id = ?
			 ORDER BY recorded_at DESC LIMIT ?`,
			userID, limit)
		if err != nil {
			return fmt.Errorf("querying food records: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var rec FoodRecord
			if err := rows.Scan(&rec.ID, &rec.UserID, &rec.FoodName, &rec.Calories, &rec.RecordedAt); err != nil {
				return fmt.Errorf("scanning food record: %w", err)
			}
			records = append(records, rec)
		}
		return rows.Err()
	})
	return records, err
}

// UpsertPhysInfo stores or replaces a user's body profile.
func (s *Store) UpsertPhysInfo(ctx context.Context, info *PhysInfo) error {
	info.UpdatedAt = time.Now()

	return s.withConn(ctx, func(conn pool.Conn) error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO phys_info (user_id, gender, age, height_cm, weight_kg, allergies, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(user_id) DO UPDATE SET
				gender = excluded.gender,
				age = excluded.age,
				height_cm = excluded.height_cm,
				weight_kg = excluded.weight_kg,
				allergies = excluded.allergies,
				updated_at = excluded.updated_at`,
			info.UserID, info.Gender, info.Age, info.HeightCM, info.WeightKG, info.Allergies, info.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upserting phys info: %w", err)
		}
		return nil
	})
}

// GetPhysInfo returns a user's body profile or ErrNotFound.
func (s *Store) GetPhysInfo(ctx context.Context, userID string) (*PhysInfo, error) {
	var info PhysInfo
	err := s.withConn(ctx, func(conn pool.Conn) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT user_id, gender, age, height_cm, weight_kg, allergies, updated_at
			 FROM phys_info WHERE user_id = ?`, userID)
		if err != nil {
			return fmt.Errorf("querying phys info: %w", err)
		}
		defer rows.Close()

		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return err
			}
			return ErrNotFound
		}
		return rows.Scan(&info.UserID, &info.Gender, &info.Age, &info.HeightCM, &info.WeightKG, &info.Allergies, &info.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// Prewarm exercises a pooled connection with a trivial round trip so the
// first real request does not pay connection setup cost.
func (s *Store) Prewarm(ctx context.Context) error {
	return s.withConn(ctx, func(conn pool.Conn) error {
		rows, err := conn.QueryContext(ctx, "SELECT 1")
		if err != nil {
			return fmt.Errorf("prewarm probe: %w", err)
		}
		return rows.Close()
	})
}

// Close shuts down the pool and the database.
func (s *Store) Close() error {
	s.pool.Close()
	return s.db.Close()
}
