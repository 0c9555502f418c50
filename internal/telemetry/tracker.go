package telemetry

import (
	"database/sql"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/sap-samples/ai-core-gateway/internal/config"
)

// Tracker logs each request's usage event to stdout (via zerolog) and,
// when enabled, persists it to a durable SQLite ledger so usage survives
// restarts and can be queried by CLI introspection commands.
type Tracker struct {
	enabled bool
	db      *sql.DB
	mu      sync.Mutex
}

// New opens (and migrates, if needed) the usage ledger described by cfg.
// When telemetry is disabled, New returns a Tracker that still logs to
// stdout but performs no database I/O.
func New(cfg *config.Config) (*Tracker, error) {
	t := &Tracker{enabled: cfg.TelemetryEnabled}
	if !t.enabled {
		return t, nil
	}

	db, err := sql.Open("sqlite", cfg.TelemetryDBPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		_ = db.Close()
		return nil, err
	}
	t.db = db
	return t, nil
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS usage_events (
	request_id       TEXT PRIMARY KEY,
	timestamp        TEXT NOT NULL,
	model            TEXT NOT NULL,
	family           TEXT NOT NULL,
	input_tokens     INTEGER NOT NULL,
	output_tokens    INTEGER NOT NULL,
	duration_ms      INTEGER NOT NULL,
	tokens_present   INTEGER NOT NULL,
	estimated_input  INTEGER NOT NULL,
	estimated_output INTEGER NOT NULL,
	status_code      INTEGER NOT NULL
)`

// RecordUsage logs ev exactly once: a structured line at Info level, and
// (when enabled) one row in the usage ledger. Failures to persist are
// logged but never surfaced to the request path. When the upstream never
// reported usage, the tiktoken-derived estimate on ev is logged in its
// place so the line is never silently empty.
func (t *Tracker) RecordUsage(ev UsageEvent) {
	logEvent := log.Info().
		Str("request_id", ev.RequestID).
		Str("model", ev.Model).
		Str("family", ev.Family).
		Int64("duration_ms", ev.DurationMs).
		Bool("tokens_present", ev.TokensPresent)
	switch {
	case ev.TokensPresent:
		logEvent = logEvent.Int("input_tokens", ev.InputTokens).Int("output_tokens", ev.OutputTokens)
	case ev.EstimatedIn != 0 || ev.EstimatedOut != 0:
		logEvent = logEvent.Int("estimated_input_tokens", ev.EstimatedIn).Int("estimated_output_tokens", ev.EstimatedOut)
	}
	logEvent.Msg("usage")

	if !t.enabled || t.db == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.db.Exec(
		`INSERT OR REPLACE INTO usage_events (request_id, timestamp, model, family, input_tokens, output_tokens, duration_ms, tokens_present, estimated_input, estimated_output, status_code)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.RequestID, ev.Timestamp.Format(time.RFC3339), ev.Model, ev.Family,
		ev.InputTokens, ev.OutputTokens, ev.DurationMs, boolToInt(ev.TokensPresent),
		ev.EstimatedIn, ev.EstimatedOut, ev.StatusCode,
	)
	if err != nil {
		log.Error().Err(err).Msg("telemetry: failed to persist usage event")
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Close releases the underlying database handle, if any.
func (t *Tracker) Close() error {
	if t.db == nil {
		return nil
	}
	return t.db.Close()
}
