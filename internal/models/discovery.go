package models

import (
	"time"

	"github.com/google/uuid"
)

// DiscoveryRunStatus tracks a discovery sweep's lifecycle
type DiscoveryRunStatus string

const (
	DiscoveryRunRunning     DiscoveryRunStatus = "running"
	DiscoveryRunCompleted   DiscoveryRunStatus = "completed"
	DiscoveryRunInterrupted DiscoveryRunStatus = "interrupted"
	DiscoveryRunFailed      DiscoveryRunStatus = "failed"
)

// DiscoveryRun is the log header for one sweep over the hypothesis space
type DiscoveryRun struct {
	RunID           uuid.UUID          `db:"run_id" json:"run_id"`
	StartedAt       time.Time          `db:"started_at" json:"started_at"`
	CompletedAt     *time.Time         `db:"completed_at" json:"completed_at"`
	Status          DiscoveryRunStatus `db:"status" json:"status"`
	TemplatesTotal  int                `db:"templates_total" json:"templates_total"`
	TemplatesDone   int                `db:"templates_done" json:"templates_done"`
	CandidatesFound int                `db:"candidates_found" json:"candidates_found"`
	EdgesRegistered int                `db:"edges_registered" json:"edges_registered"`
}

// TemplateProgress persists per-template completion so an interrupted run
// resumes where it stopped.
type TemplateProgress struct {
	RunID           uuid.UUID  `db:"run_id" json:"run_id"`
	TemplateName    string     `db:"template_name" json:"template_name"`
	Completed       bool       `db:"completed" json:"completed"`
	CandidatesFound int        `db:"candidates_found" json:"candidates_found"`
	Error           *string    `db:"error" json:"error"`
	FinishedAt      *time.Time `db:"finished_at" json:"finished_at"`
}
