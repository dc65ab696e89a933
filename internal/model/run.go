package model

import "time"

// RunStatus represents the state of a preparation run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// PreparationRun is the persisted digest of one normalization run.
type PreparationRun struct {
	ID             string         `json:"id"`
	SourcePath     string         `json:"source_path"`
	Status         RunStatus      `json:"status"`
	InboundCount   int            `json:"inbound_count"`
	OutboundCount  int            `json:"outbound_count"`
	CombinedCount  int            `json:"combined_count"`
	ConfigCounts   map[string]int `json:"config_counts,omitempty"`
	SkippedConfigs []string       `json:"skipped_configs,omitempty"`
	Warnings       []string       `json:"warnings,omitempty"`
	IssueCounts    map[string]int `json:"issue_counts,omitempty"`
	Error          string         `json:"error,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
}
