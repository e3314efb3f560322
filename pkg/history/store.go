// Package history persists accepted obstacle readings to SQLite and
// computes summary statistics over the recent window. Persistence is
// best-effort: the engine never blocks on it.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"
	_ "modernc.org/sqlite"

	"github.com/pathsense/go-pathsense/pkg/navigation"
)

// Store is a SQLite-backed reading log.
type Store struct {
	db *sql.DB
}

// Entry is a stored reading as returned by the history API.
type Entry struct {
	ID         int64     `json:"id"`
	At         time.Time `json:"at"`
	Mode       string    `json:"mode"`
	DistanceCM float64   `json:"distance"`
	Direction  string    `json:"direction"`
	Obstacle   bool      `json:"obstacle_detected"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source,omitempty"`
}

// Summary holds distance statistics over the recent window.
type Summary struct {
	Count         int     `json:"count"`
	MeanCM        float64 `json:"mean_cm"`
	StdDevCM      float64 `json:"stddev_cm"`
	MinCM         float64 `json:"min_cm"`
	MaxCM         float64 `json:"max_cm"`
	ObstacleRatio float64 `json:"obstacle_ratio"`
}

// Open creates or opens the reading log at path.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS readings (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			at          TIMESTAMP NOT NULL,
			mode        TEXT NOT NULL,
			distance_cm DOUBLE NOT NULL,
			direction   TEXT NOT NULL,
			obstacle    INTEGER NOT NULL,
			confidence  DOUBLE NOT NULL,
			source      TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_readings_at ON readings(at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one accepted reading with the mode it was produced in.
func (s *Store) Record(r navigation.Reading, mode string, obstacle bool) error {
	_, err := s.db.Exec(
		`INSERT INTO readings (at, mode, distance_cm, direction, obstacle, confidence, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.At.UTC(), mode, r.DistanceCM, string(r.Direction), boolToInt(obstacle), r.Confidence, r.Source,
	)
	if err != nil {
		return fmt.Errorf("history: record reading: %w", err)
	}
	return nil
}

// Recent returns up to limit readings, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := s.db.Query(
		`SELECT id, at, mode, distance_cm, direction, obstacle, confidence, source
		 FROM readings ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var obstacle int
		var source sql.NullString
		if err := rows.Scan(&e.ID, &e.At, &e.Mode, &e.DistanceCM, &e.Direction, &obstacle, &e.Confidence, &source); err != nil {
			return nil, fmt.Errorf("history: scan reading: %w", err)
		}
		e.Obstacle = obstacle != 0
		e.Source = source.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Summarize computes distance statistics over the most recent window readings.
func (s *Store) Summarize(window int) (Summary, error) {
	entries, err := s.Recent(window)
	if err != nil {
		return Summary{}, err
	}
	if len(entries) == 0 {
		return Summary{}, nil
	}

	distances := make([]float64, len(entries))
	obstacles := 0
	min, max := entries[0].DistanceCM, entries[0].DistanceCM
	for i, e := range entries {
		distances[i] = e.DistanceCM
		if e.Obstacle {
			obstacles++
		}
		if e.DistanceCM < min {
			min = e.DistanceCM
		}
		if e.DistanceCM > max {
			max = e.DistanceCM
		}
	}

	sum := Summary{
		Count:         len(entries),
		MeanCM:        stat.Mean(distances, nil),
		MinCM:         min,
		MaxCM:         max,
		ObstacleRatio: float64(obstacles) / float64(len(entries)),
	}
	if len(distances) > 1 {
		sum.StdDevCM = stat.StdDev(distances, nil)
	}
	return sum, nil
}

// Count returns the total number of stored readings.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM readings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("history: count readings: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
