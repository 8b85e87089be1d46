package models

import "time"

const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

type TrainingRun struct {
	ID         string
	Status     string
	Winner     string
	Accuracy   float64
	Params     string
	Stage      string
	Error      string
	TrainRows  int
	TestRows   int
	Vocabulary int
	StartedAt  time.Time
	FinishedAt *time.Time
}

type CandidateResult struct {
	ID         int
	RunID      string
	Name       string
	Params     string
	CVScore    float64
	Accuracy   float64
	Error      string
	DurationMS int64
	CreatedAt  time.Time
}

type PredictionRecord struct {
	ID        string
	Text      string
	Label     int
	Category  string
	Cached    bool
	LatencyMS int64
	CreatedAt time.Time
}
