package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/fakenews-detector/backend/internal/storage/models"
	"github.com/fakenews-detector/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS training_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		winner TEXT,
		accuracy REAL,
		params TEXT,
		stage TEXT,
		error TEXT,
		train_rows INTEGER DEFAULT 0,
		test_rows INTEGER DEFAULT 0,
		vocabulary INTEGER DEFAULT 0,
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON training_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON training_runs(status);

	CREATE TABLE IF NOT EXISTS candidate_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		name TEXT NOT NULL,
		params TEXT,
		cv_score REAL,
		accuracy REAL,
		error TEXT,
		duration_ms INTEGER,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES training_runs(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_candidates_run ON candidate_results(run_id);

	CREATE TABLE IF NOT EXISTS predictions (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		label INTEGER NOT NULL,
		category TEXT NOT NULL,
		cached INTEGER DEFAULT 0,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_predictions_created ON predictions(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) StartRun(run *models.TrainingRun) error {
	query := `INSERT INTO training_runs (id, status, started_at) VALUES (?, ?, ?)`

	_, err := c.db.Exec(query, run.ID, run.Status, run.StartedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert training run: %w", err)
	}

	logger.Debug("Training run recorded", zap.String("run_id", run.ID))
	return nil
}

func (c *Client) RecordCandidate(candidate *models.CandidateResult) error {
	query := `
		INSERT INTO candidate_results (run_id, name, params, cv_score, accuracy, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		candidate.RunID,
		candidate.Name,
		candidate.Params,
		candidate.CVScore,
		candidate.Accuracy,
		candidate.Error,
		candidate.DurationMS,
		candidate.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert candidate result: %w", err)
	}

	return nil
}

// FinishRun stores the final state of a run. A run that was never started
// is inserted.
func (c *Client) FinishRun(run *models.TrainingRun) error {
	query := `
		INSERT INTO training_runs (id, status, winner, accuracy, params, stage, error,
			train_rows, test_rows, vocabulary, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			winner = excluded.winner,
			accuracy = excluded.accuracy,
			params = excluded.params,
			stage = excluded.stage,
			error = excluded.error,
			train_rows = excluded.train_rows,
			test_rows = excluded.test_rows,
			vocabulary = excluded.vocabulary,
			finished_at = excluded.finished_at
	`

	var finishedAt *int64
	if run.FinishedAt != nil {
		ts := run.FinishedAt.Unix()
		finishedAt = &ts
	}

	_, err := c.db.Exec(
		query,
		run.ID,
		run.Status,
		run.Winner,
		run.Accuracy,
		run.Params,
		run.Stage,
		run.Error,
		run.TrainRows,
		run.TestRows,
		run.Vocabulary,
		run.StartedAt.Unix(),
		finishedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to finish training run: %w", err)
	}

	logger.Info("Training run finished",
		zap.String("run_id", run.ID),
		zap.String("status", run.Status),
		zap.String("winner", run.Winner),
	)

	return nil
}

const runColumns = `id, status, winner, accuracy, params, stage, error, train_rows, test_rows, vocabulary, started_at, finished_at`

// ListRuns returns the most recent runs first.
func (c *Client) ListRuns(limit int) ([]models.TrainingRun, error) {
	query := `SELECT ` + runColumns + ` FROM training_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list training runs: %w", err)
	}
	defer rows.Close()

	var runs []models.TrainingRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

func (c *Client) GetRun(id string) (*models.TrainingRun, error) {
	query := `SELECT ` + runColumns + ` FROM training_runs WHERE id = ?`

	run, err := scanRun(c.db.QueryRow(query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get training run: %w", err)
	}
	return run, nil
}

func (c *Client) GetCandidates(runID string) ([]models.CandidateResult, error) {
	query := `
		SELECT id, run_id, name, params, cv_score, accuracy, error, duration_ms, created_at
		FROM candidate_results
		WHERE run_id = ?
		ORDER BY id
	`

	rows, err := c.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate results: %w", err)
	}
	defer rows.Close()

	var results []models.CandidateResult
	for rows.Next() {
		var r models.CandidateResult
		var params, errText sql.NullString
		var createdAt int64

		err := rows.Scan(&r.ID, &r.RunID, &r.Name, &params, &r.CVScore, &r.Accuracy, &errText, &r.DurationMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.Params = params.String
		r.Error = errText.String
		r.CreatedAt = time.Unix(createdAt, 0)
		results = append(results, r)
	}

	return results, rows.Err()
}

func (c *Client) InsertPrediction(p *models.PredictionRecord) error {
	query := `
		INSERT INTO predictions (id, text, label, category, cached, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	cached := 0
	if p.Cached {
		cached = 1
	}

	_, err := c.db.Exec(query, p.ID, p.Text, p.Label, p.Category, cached, p.LatencyMS, p.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}

	return nil
}

func (c *Client) GetRecentPredictions(limit int) ([]models.PredictionRecord, error) {
	query := `
		SELECT id, text, label, category, cached, latency_ms, created_at
		FROM predictions
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get predictions: %w", err)
	}
	defer rows.Close()

	var records []models.PredictionRecord
	for rows.Next() {
		var p models.PredictionRecord
		var cached int
		var createdAt int64

		err := rows.Scan(&p.ID, &p.Text, &p.Label, &p.Category, &cached, &p.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		p.Cached = cached == 1
		p.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, p)
	}

	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.TrainingRun, error) {
	var run models.TrainingRun
	var winner, params, stage, errText sql.NullString
	var accuracy sql.NullFloat64
	var startedAt int64
	var finishedAt sql.NullInt64

	err := s.Scan(
		&run.ID,
		&run.Status,
		&winner,
		&accuracy,
		&params,
		&stage,
		&errText,
		&run.TrainRows,
		&run.TestRows,
		&run.Vocabulary,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	run.Winner = winner.String
	run.Accuracy = accuracy.Float64
	run.Params = params.String
	run.Stage = stage.String
	run.Error = errText.String
	run.StartedAt = time.Unix(startedAt, 0)
	if finishedAt.Valid {
		t := time.Unix(finishedAt.Int64, 0)
		run.FinishedAt = &t
	}

	return &run, nil
}
