// Package postgres stores playback history in a playback_events table.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/satindergrewal/loopdj/internal/playback"
)

// EventRow is one stored playback event.
type EventRow struct {
	EventID     int64     `json:"event_id"`
	Timestamp   time.Time `json:"ts"`
	Event       string    `json:"event"`
	Playthrough string    `json:"playthrough"`
	Song        string    `json:"song"`
	Segment     *string   `json:"segment,omitempty"`
	Repeats     *int      `json:"repeats,omitempty"`
	Plan        []string  `json:"plan,omitempty"`
}

// Client manages the Postgres connection for playback history.
type Client struct {
	db *sql.DB
}

// ConnString builds a lib/pq connection string. Values in a key=value dsn
// win over the PG* environment variables, which win over the defaults. URL
// DSNs are passed to lib/pq unchanged.
func ConnString(dsn string) string {
	if isURL(dsn) {
		return dsn
	}
	params := map[string]string{
		"host":    getEnv("PGHOST", "127.0.0.1"),
		"port":    getEnv("PGPORT", "5432"),
		"user":    getEnv("PGUSER", "loopdj"),
		"dbname":  getEnv("PGDATABASE", "loopdj"),
		"sslmode": getEnv("PGSSLMODE", "disable"),
	}
	if pw := os.Getenv("PGPASSWORD"); pw != "" {
		params["password"] = pw
	}
	for _, kv := range strings.Fields(dsn) {
		if k, v, ok := strings.Cut(kv, "="); ok {
			params[k] = v
		}
	}

	keys := []string{"host", "port", "user", "password", "dbname", "sslmode"}
	var parts []string
	for _, k := range keys {
		if v, ok := params[k]; ok {
			parts = append(parts, k+"="+v)
			delete(params, k)
		}
	}
	for k, v := range params {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, " ")
}

func isURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// New connects to Postgres and creates the history table if needed.
func New(ctx context.Context, dsn string) (*Client, error) {
	db, err := sql.Open("postgres", ConnString(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	c := &Client{db: db}
	if err := c.createTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create playback_events table: %w", err)
	}
	return c, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func (c *Client) createTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS playback_events (
			event_id    BIGSERIAL PRIMARY KEY,
			ts          TIMESTAMPTZ NOT NULL,
			event       TEXT NOT NULL,
			playthrough UUID NOT NULL,
			song        TEXT NOT NULL,
			segment     TEXT,
			repeats     INTEGER,
			plan        JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_playback_events_ts ON playback_events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_playback_events_song ON playback_events(song);
	`
	_, err := c.db.ExecContext(ctx, query)
	return err
}

// Append inserts an event into the database.
func (c *Client) Append(ctx context.Context, ev playback.Event) error {
	var planJSON []byte
	if len(ev.Plan) > 0 {
		var err error
		if planJSON, err = json.Marshal(ev.Plan); err != nil {
			return fmt.Errorf("failed to marshal plan: %w", err)
		}
	}

	var segment *string
	if ev.Segment != "" {
		segment = &ev.Segment
	}
	var repeats *int
	if ev.Repeats > 0 {
		repeats = &ev.Repeats
	}

	query := `
		INSERT INTO playback_events (ts, event, playthrough, song, segment, repeats, plan)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := c.db.ExecContext(ctx, query, ev.Time, ev.Type, ev.Playthrough, ev.Song, segment, repeats, planJSON)
	return err
}

// Notify stores ev. It lets the client act as a scheduler notifier.
func (c *Client) Notify(ctx context.Context, ev playback.Event) error {
	return c.Append(ctx, ev)
}

// Query returns the last N events, newest first. An empty song matches all songs.
func (c *Client) Query(ctx context.Context, song string, limit int) ([]EventRow, error) {
	query := `
		SELECT event_id, ts, event, playthrough, song, segment, repeats, plan
		FROM playback_events
		WHERE ($1 = '' OR song = $1)
		ORDER BY ts DESC
		LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, query, song, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		var segment sql.NullString
		var repeats sql.NullInt64
		var planJSON []byte

		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Event, &e.Playthrough, &e.Song, &segment, &repeats, &planJSON); err != nil {
			return nil, err
		}
		if segment.Valid {
			e.Segment = &segment.String
		}
		if repeats.Valid {
			n := int(repeats.Int64)
			e.Repeats = &n
		}
		if len(planJSON) > 0 {
			if err := json.Unmarshal(planJSON, &e.Plan); err != nil {
				return nil, fmt.Errorf("failed to unmarshal plan: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	return min(limit, 10000)
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
