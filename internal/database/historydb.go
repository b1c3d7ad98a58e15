package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/appscout/internal/knowledge"
	"github.com/nao1215/appscout/internal/model"
)

// DBFileName is the name of the database file inside the database directory.
const DBFileName = "appscout.db"

// ErrSnapshotNotFound is returned when a snapshot id does not exist.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// HistoryDB provides SQLite-based storage for run history and knowledge
// snapshots.
//
// Design decision: One database file holds every application. History
// queries always filter by app name, and a single file is easier to back up
// than one per application.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run explore first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

func (hdb *HistoryDB) createTables() error {
	schema := `
	-- One row per explore or update run
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		app_name TEXT NOT NULL,
		base_url TEXT NOT NULL,
		mode TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		version TEXT,
		pages INTEGER DEFAULT 0,
		forms INTEGER DEFAULT 0,
		flows INTEGER DEFAULT 0,
		scenarios INTEGER DEFAULT 0,
		visited INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		warnings TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_app ON runs(app_name);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Visit outcomes of each run, in visit order
	CREATE TABLE IF NOT EXISTS visits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		url TEXT NOT NULL,
		depth INTEGER NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		duration_ms INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_visits_run ON visits(run_id);

	-- Knowledge produced by a run, stored as JSON
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		app_name TEXT NOT NULL,
		version TEXT NOT NULL,
		created_at TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		knowledge_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_app ON snapshots(app_name);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord is a stored run.
type RunRecord struct {
	ID         string        `json:"id"`
	AppName    string        `json:"appName"`
	BaseURL    string        `json:"baseUrl"`
	Mode       model.RunMode `json:"mode"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Version    string        `json:"version,omitempty"`
	Pages      int           `json:"pages"`
	Forms      int           `json:"forms"`
	Flows      int           `json:"flows"`
	Scenarios  int           `json:"scenarios"`
	Visited    int           `json:"visited"`
	Failed     int           `json:"failed"`
	Skipped    bool          `json:"skipped,omitempty"`
	Warnings   []string      `json:"warnings,omitempty"`
}

// SnapshotMeta describes a stored snapshot without its content.
type SnapshotMeta struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"runId"`
	AppName     string    `json:"appName"`
	Version     string    `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	ContentHash string    `json:"contentHash"`
}

// RecordRun stores a finished run with its visits and, when the run
// produced knowledge, a snapshot of it. Everything is written in one
// transaction.
func (hdb *HistoryDB) RecordRun(ctx context.Context, run *model.Run) (err error) {
	rec := runRecordOf(run)
	warnings, err := json.Marshal(rec.Warnings)
	if err != nil {
		return fmt.Errorf("failed to serialize warnings: %w", err)
	}

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, app_name, base_url, mode, started_at, finished_at, version,
		pages, forms, flows, scenarios, visited, failed, skipped, warnings)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.AppName, rec.BaseURL, string(rec.Mode),
		formatTimestamp(rec.StartedAt), formatTimestamp(rec.FinishedAt), rec.Version,
		rec.Pages, rec.Forms, rec.Flows, rec.Scenarios, rec.Visited, rec.Failed,
		boolToInt(rec.Skipped), string(warnings),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if run.Exploration != nil {
		for _, v := range run.Exploration.Visits {
			_, err = tx.ExecContext(ctx, `
			INSERT INTO visits (run_id, url, depth, status, error, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?)
			`, rec.ID, v.URL, v.Depth, string(v.Status), v.Error, v.Duration.Milliseconds())
			if err != nil {
				return fmt.Errorf("failed to insert visit: %w", err)
			}
		}
	}

	if run.Knowledge != nil && !run.Skipped {
		if err = insertSnapshot(ctx, tx, rec.ID, run.Knowledge); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

func insertSnapshot(ctx context.Context, tx *sql.Tx, runID string, k *model.AppKnowledge) error {
	data, err := json.Marshal(k)
	if err != nil {
		return fmt.Errorf("failed to serialize knowledge: %w", err)
	}
	sum := sha256.Sum256(data)

	_, err = tx.ExecContext(ctx, `
	INSERT INTO snapshots (run_id, app_name, version, created_at, content_hash, knowledge_json)
	VALUES (?, ?, ?, ?, ?, ?)
	`, runID, k.AppName, k.Version, formatTimestamp(k.UpdatedAt), hex.EncodeToString(sum[:]), string(data))
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// ListRuns returns the runs of an application, newest first. A limit of
// zero or less returns every run.
func (hdb *HistoryDB) ListRuns(ctx context.Context, appName string, limit int) ([]RunRecord, error) {
	query := `
	SELECT id, app_name, base_url, mode, started_at, finished_at, version,
		pages, forms, flows, scenarios, visited, failed, skipped, warnings
	FROM runs
	WHERE app_name = ?
	ORDER BY started_at DESC, rowid DESC
	`
	args := []any{appName}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	results := make([]RunRecord, 0)
	for rows.Next() {
		var rec RunRecord
		var mode, startedAt, finishedAt string
		var version, warnings sql.NullString
		var skipped int

		err := rows.Scan(
			&rec.ID, &rec.AppName, &rec.BaseURL, &mode, &startedAt, &finishedAt, &version,
			&rec.Pages, &rec.Forms, &rec.Flows, &rec.Scenarios, &rec.Visited, &rec.Failed,
			&skipped, &warnings,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		rec.Mode = model.RunMode(mode)
		rec.StartedAt = parseTimestamp(startedAt)
		rec.FinishedAt = parseTimestamp(finishedAt)
		rec.Version = version.String
		rec.Skipped = skipped != 0
		if warnings.Valid && warnings.String != "" {
			if err := json.Unmarshal([]byte(warnings.String), &rec.Warnings); err != nil {
				rec.Warnings = nil
			}
		}
		results = append(results, rec)
	}

	return results, rows.Err()
}

// Visits returns the visit outcomes of a run in visit order.
func (hdb *HistoryDB) Visits(ctx context.Context, runID string) ([]model.Visit, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT url, depth, status, error, duration_ms
	FROM visits
	WHERE run_id = ?
	ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get visits: %w", err)
	}
	defer rows.Close()

	visits := make([]model.Visit, 0)
	for rows.Next() {
		var v model.Visit
		var status string
		var errText sql.NullString
		var durationMS int64

		if err := rows.Scan(&v.URL, &v.Depth, &status, &errText, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		v.Status = model.VisitStatus(status)
		v.Error = errText.String
		v.Duration = time.Duration(durationMS) * time.Millisecond
		visits = append(visits, v)
	}

	return visits, rows.Err()
}

// Snapshots returns snapshot metadata of an application, newest first.
// A limit of zero or less returns every snapshot.
func (hdb *HistoryDB) Snapshots(ctx context.Context, appName string, limit int) ([]SnapshotMeta, error) {
	query := `
	SELECT id, run_id, app_name, version, created_at, content_hash
	FROM snapshots
	WHERE app_name = ?
	ORDER BY id DESC
	`
	args := []any{appName}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	results := make([]SnapshotMeta, 0)
	for rows.Next() {
		var meta SnapshotMeta
		var createdAt string

		if err := rows.Scan(&meta.ID, &meta.RunID, &meta.AppName, &meta.Version, &createdAt, &meta.ContentHash); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		meta.CreatedAt = parseTimestamp(createdAt)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// Snapshot loads the knowledge stored in a snapshot. Older schema versions
// are migrated on read.
func (hdb *HistoryDB) Snapshot(ctx context.Context, id int64) (*model.AppKnowledge, error) {
	var raw string
	err := hdb.db.QueryRowContext(ctx, `SELECT knowledge_json FROM snapshots WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrSnapshotNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	k, err := knowledge.Migrate([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("snapshot %d: %w", id, err)
	}
	return k, nil
}

// ListApps returns every application with at least one recorded run.
func (hdb *HistoryDB) ListApps(ctx context.Context) ([]string, error) {
	rows, err := hdb.db.QueryContext(ctx, `SELECT DISTINCT app_name FROM runs ORDER BY app_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}
	defer rows.Close()

	apps := make([]string, 0)
	for rows.Next() {
		var app string
		if err := rows.Scan(&app); err != nil {
			return nil, fmt.Errorf("failed to scan app: %w", err)
		}
		apps = append(apps, app)
	}

	return apps, rows.Err()
}

func runRecordOf(run *model.Run) RunRecord {
	rec := RunRecord{
		ID:         run.ID,
		AppName:    run.AppName,
		BaseURL:    run.BaseURL,
		Mode:       run.Mode,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Skipped:    run.Skipped,
		Warnings:   run.Warnings,
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}
	if run.Knowledge != nil {
		rec.Version = run.Knowledge.Version
		rec.Pages = run.Knowledge.Statistics.TotalPages
		rec.Forms = run.Knowledge.Statistics.TotalForms
		rec.Flows = run.Knowledge.Statistics.TotalFlows
		rec.Scenarios = run.Knowledge.Statistics.TotalScenarios
	}
	if run.Exploration != nil {
		rec.Visited = len(run.Exploration.Visits)
		rec.Failed = run.Exploration.FailedVisits()
	}
	return rec
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// storedTimeLayout has a fixed width so stored timestamps sort as text.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
