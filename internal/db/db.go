package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3" // Import for side-effects only

	"mspro-labs/tender-pricer/internal/models"
)

var logger = log.New(os.Stdout, "DB: ", log.LstdFlags|log.Lshortfile)

// Run statuses.
const (
	RunRunning  = "running"
	RunFinished = "finished"
	RunStopped  = "stopped"
)

// Connect opens a connection to the SQLite database and ensures the schema exists.
// It automatically applies recommended settings for concurrency (WAL mode).
func Connect(dbPath string) (*sql.DB, error) {
	// Use robust connection settings to prevent "database locked" errors
	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err = createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return db, nil
}

// createSchema is private as it's only called by Connect.
func createSchema(db *sql.DB) error {
	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
	  id TEXT PRIMARY KEY,
	  input_path TEXT NOT NULL,
	  output_path TEXT,
	  sheet TEXT,
	  business_auth INTEGER DEFAULT 0,
	  status TEXT NOT NULL,
	  total INTEGER DEFAULT 0,
	  success INTEGER DEFAULT 0,
	  errors INTEGER DEFAULT 0,
	  not_found INTEGER DEFAULT 0,
	  saves INTEGER DEFAULT 0,
	  started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	  finished_at TIMESTAMP
	);
	`
	if _, err := db.Exec(runsTable); err != nil {
		return err
	}

	// One row per product of a run, keyed by its ordinal in the source sheet
	itemsTable := `
	CREATE TABLE IF NOT EXISTS items (
	  run_id TEXT NOT NULL,
	  idx INTEGER NOT NULL,
	  name TEXT NOT NULL,
	  raw TEXT,
	  status TEXT NOT NULL,
	  regular_kind TEXT,
	  regular_text TEXT,
	  business_kind TEXT,
	  business_text TEXT,
	  link TEXT,
	  error TEXT,
	  updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	  PRIMARY KEY (run_id, idx),
	  FOREIGN KEY (run_id) REFERENCES runs (id)
	);
	CREATE INDEX IF NOT EXISTS idx_items_run ON items(run_id);
	`
	if _, err := db.Exec(itemsTable); err != nil {
		return err
	}

	// Marketplace answers per cleaned name, so re-runs skip priced products
	lookupTable := `
	CREATE TABLE IF NOT EXISTS lookup_cache (
	  query_text TEXT PRIMARY KEY,
	  regular_text TEXT,
	  business_text TEXT,
	  link TEXT,
	  created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(lookupTable); err != nil {
		return err
	}

	// Embedding vectors for ranking queries and snippet titles
	embeddingTable := `
	CREATE TABLE IF NOT EXISTS embedding_cache (
	  text TEXT PRIMARY KEY,
	  embedding BLOB,
	  created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(embeddingTable); err != nil {
		return err
	}

	return nil
}

// --- Runs ---

// Run is one pricing pass over an input workbook.
type Run struct {
	ID           string
	InputPath    string
	OutputPath   string
	Sheet        string
	BusinessAuth bool
	Status       string
	Total        int
	Success      int
	Errors       int
	NotFound     int
	Saves        int
	StartedAt    time.Time
	FinishedAt   sql.NullTime
}

// CreateRun registers a new run and its pending items in one transaction.
func CreateRun(db *sql.DB, run Run, items []models.ItemResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, input_path, output_path, sheet, business_auth, status, total)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.InputPath, run.OutputPath, run.Sheet, run.BusinessAuth, RunRunning, len(items))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	if err := upsertItems(ctx, tx, run.ID, items); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// SaveItem performs an UPSERT of one item of a run.
func SaveItem(db *sql.DB, runID string, item models.ItemResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := upsertItems(ctx, tx, runID, []models.ItemResult{item}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func upsertItems(ctx context.Context, tx *sql.Tx, runID string, items []models.ItemResult) error {
	upsertSQL := `
	INSERT INTO items (
	  run_id, idx, name, raw, status, regular_kind, regular_text, business_kind, business_text, link, error,
	  updated_at
	) VALUES (
	  ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
	  CURRENT_TIMESTAMP
	) ON CONFLICT(run_id, idx) DO UPDATE SET
	  name = excluded.name,
	  raw = excluded.raw,
	  status = excluded.status,
	  regular_kind = excluded.regular_kind,
	  regular_text = excluded.regular_text,
	  business_kind = excluded.business_kind,
	  business_text = excluded.business_text,
	  link = excluded.link,
	  error = excluded.error,
	  updated_at = CURRENT_TIMESTAMP;
	`
	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, it := range items {
		r := it.Result
		_, err := stmt.ExecContext(ctx,
			runID,
			it.Index,
			it.Name,
			sql.NullString{String: it.Raw, Valid: it.Raw != ""},
			string(it.Status),
			r.Regular.Kind.String(),
			sql.NullString{String: priceText(r.Regular), Valid: priceText(r.Regular) != ""},
			r.Business.Kind.String(),
			sql.NullString{String: priceText(r.Business), Valid: priceText(r.Business) != ""},
			sql.NullString{String: r.Link, Valid: r.Link != ""},
			sql.NullString{String: it.Error, Valid: it.Error != ""},
		)
		if err != nil {
			return fmt.Errorf("failed to upsert item %d of run %s: %w", it.Index, runID, err)
		}
	}
	return nil
}

// priceText is the stored text: the price when found, the reason on error.
func priceText(p models.Price) string {
	if p.Kind == models.PriceError {
		return p.Reason
	}
	return p.Text
}

func priceFrom(kind string, text sql.NullString) models.Price {
	switch models.ParsePriceKind(kind) {
	case models.PriceFound:
		return models.Found(text.String)
	case models.PriceError:
		return models.Failed(text.String)
	default:
		return models.NotFound()
	}
}

// FinishRun stores the final counts and status of a run.
func FinishRun(db *sql.DB, run Run) error {
	_, err := db.Exec(`
		UPDATE runs SET status = ?, total = ?, success = ?, errors = ?, not_found = ?, saves = ?,
		  finished_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		run.Status, run.Total, run.Success, run.Errors, run.NotFound, run.Saves, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}
	return nil
}

const runColumns = `id, input_path, output_path, sheet, business_auth, status, total, success, errors, not_found, saves,
	started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	var output, sheet sql.NullString
	err := s.Scan(&r.ID, &r.InputPath, &output, &sheet, &r.BusinessAuth, &r.Status, &r.Total, &r.Success,
		&r.Errors, &r.NotFound, &r.Saves, &r.StartedAt, &r.FinishedAt)
	r.OutputPath = output.String
	r.Sheet = sheet.String
	return r, err
}

// ListRuns returns all runs, newest first.
func ListRuns(db *sql.DB) ([]Run, error) {
	rows, err := db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		if r, err := scanRun(rows); err == nil {
			runs = append(runs, r)
		}
	}
	return runs, rows.Err()
}

// GetRun returns one run. It returns sql.ErrNoRows for unknown IDs.
func GetRun(db *sql.DB, id string) (*Run, error) {
	r, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRunItems returns the items of a run in source order.
func GetRunItems(db *sql.DB, runID string) ([]models.ItemResult, error) {
	rows, err := db.Query(`
		SELECT idx, name, raw, status, regular_kind, regular_text, business_kind, business_text, link, error
		FROM items WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.ItemResult
	for rows.Next() {
		var it models.ItemResult
		var status, regKind, busKind string
		var raw, regText, busText, link, errText sql.NullString
		if err := rows.Scan(&it.Index, &it.Name, &raw, &status, &regKind, &regText, &busKind, &busText, &link, &errText); err != nil {
			logger.Printf("Skipping unreadable item of run %s: %v", runID, err)
			continue
		}
		it.Raw = raw.String
		it.Status = models.ItemStatus(status)
		it.Error = errText.String
		it.Result = models.PriceResult{
			Regular:  priceFrom(regKind, regText),
			Business: priceFrom(busKind, busText),
			Link:     link.String,
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ClearRun removes a run and its items.
func ClearRun(db *sql.DB, id string) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec("DELETE FROM items WHERE run_id = ?", id); err != nil {
		tx.Rollback()
		return 0, err
	}
	res, err := tx.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearAllRuns wipes the whole run history.
func ClearAllRuns(db *sql.DB) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec("DELETE FROM items"); err != nil {
		tx.Rollback()
		return 0, err
	}
	res, err := tx.Exec("DELETE FROM runs")
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Lookup cache ---

// GetCachedLookup returns a cached marketplace answer younger than ttl.
// A zero ttl never expires.
func GetCachedLookup(db *sql.DB, query string, ttl time.Duration) (models.PriceResult, bool, error) {
	var regular, business, link sql.NullString
	var created time.Time
	err := db.QueryRow(`SELECT regular_text, business_text, link, created_at FROM lookup_cache WHERE query_text = ?`, query).
		Scan(&regular, &business, &link, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PriceResult{}, false, nil
	}
	if err != nil {
		return models.PriceResult{}, false, err
	}
	if ttl > 0 && time.Since(created) > ttl {
		return models.PriceResult{}, false, nil
	}
	return models.PriceResult{
		Regular:  models.Found(regular.String),
		Business: models.Found(business.String),
		Link:     link.String,
	}, true, nil
}

// SaveCachedLookup stores a marketplace answer. Failed lookups are not cached.
func SaveCachedLookup(db *sql.DB, query string, r models.PriceResult) error {
	if r.Regular.Kind == models.PriceError || r.Business.Kind == models.PriceError {
		return nil
	}
	_, err := db.Exec(`
		INSERT INTO lookup_cache (query_text, regular_text, business_text, link, created_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(query_text) DO UPDATE SET
		  regular_text = excluded.regular_text,
		  business_text = excluded.business_text,
		  link = excluded.link,
		  created_at = CURRENT_TIMESTAMP`,
		query, r.Regular.Text, r.Business.Text, r.Link)
	return err
}

// ClearLookupCache wipes cached marketplace answers.
func ClearLookupCache(db *sql.DB) (int64, error) {
	res, err := db.Exec("DELETE FROM lookup_cache")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Embedding cache ---

// GetCachedEmbedding tries to find a previously embedded text.
func GetCachedEmbedding(db *sql.DB, text string) ([]byte, error) {
	var blob []byte
	err := db.QueryRow("SELECT embedding FROM embedding_cache WHERE text = ?", text).Scan(&blob)
	return blob, err
}

// SaveCachedEmbedding saves a text and its vector.
func SaveCachedEmbedding(db *sql.DB, text string, blob []byte) error {
	_, err := db.Exec("INSERT OR IGNORE INTO embedding_cache (text, embedding) VALUES (?, ?)", text, blob)
	return err
}
