package scans

import (
	"time"
)

// ID tipe untuk Scan
type ScanID string

// Status enum, internal lifecycle states
type Status string

const (
	StatusPending   Status = "pending"
	StatusAnalyzing Status = "analyzing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var statusRank = map[Status]int{
	StatusPending:   0,
	StatusAnalyzing: 1,
	StatusCompleted: 2,
	StatusFailed:    2,
}

// CanAdvance reports whether the transition s -> to is legal.
// Transitions are monotonic: pending -> analyzing -> {completed, failed}.
func (s Status) CanAdvance(to Status) bool {
	if s.Terminal() {
		return false
	}
	return statusRank[to] == statusRank[s]+1
}

// externalLabels maps stored status values to the labels surfaced to
// callers. Kept as one table so the rename can't drift per call site:
// "analyzing" is presented as "scanning".
var externalLabels = map[Status]string{
	StatusPending:   "pending",
	StatusAnalyzing: "scanning",
	StatusCompleted: "completed",
	StatusFailed:    "failed",
}

// ExternalLabel returns the caller-facing label for the status.
func (s Status) ExternalLabel() string {
	if l, ok := externalLabels[s]; ok {
		return l
	}
	return string(s)
}

// ThreatLevel enum
type ThreatLevel string

const (
	ThreatClean    ThreatLevel = "clean"
	ThreatLow      ThreatLevel = "low"
	ThreatMedium   ThreatLevel = "medium"
	ThreatHigh     ThreatLevel = "high"
	ThreatCritical ThreatLevel = "critical"
)

// Aggregate Root: Scan
type Scan struct {
	ID              ScanID           `json:"id"`
	OwnerID         string           `json:"owner_id"`
	FileName        string           `json:"file_name"`
	FileSize        int64            `json:"file_size"`
	FileHash        string           `json:"file_hash"`
	Status          Status           `json:"status"`
	ThreatLevel     ThreatLevel      `json:"threat_level"`
	MalwareFamily   string           `json:"malware_family,omitempty"`
	Confidence      *float64         `json:"confidence,omitempty"`
	StaticAnalysis  *StaticAnalysis  `json:"static_analysis,omitempty"`
	DynamicAnalysis *DynamicAnalysis `json:"dynamic_analysis,omitempty"`
	Classification  *Classification  `json:"classification,omitempty"`
	FailureReason   string           `json:"failure_reason,omitempty"`
	ArtifactURL     string           `json:"artifact_url,omitempty"`
	ScanDurationMS  int64            `json:"scan_duration_ms"`
	CreatedAt       time.Time        `json:"created_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
}

// ArtifactKey is the object-store key the submitted binary lives under.
func (s *Scan) ArtifactKey() string {
	return s.OwnerID + "/" + string(s.ID) + "/" + s.FileName
}
