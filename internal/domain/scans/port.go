package scans

import (
	"context"
	"io"
)

// Repository port (interface untuk persistence)
type Repository interface {
	Create(ctx context.Context, s *Scan) error
	Update(ctx context.Context, s *Scan) error
	Get(ctx context.Context, id ScanID) (*Scan, error)
	ListByOwner(ctx context.Context, owner string) ([]*Scan, error)
	Delete(ctx context.Context, id ScanID) error
	Summary(ctx context.Context, owner string, sinceDays int) (map[ThreatLevel]int, error)
}

// ArtifactRef locates a stored artifact for the analyzer collaborators.
type ArtifactRef struct {
	Key string
	URL string
}

// ArtifactStore port (interface untuk penyimpanan binary yang disubmit)
type ArtifactStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) (url string, err error)
	Remove(ctx context.Context, key string) error
}

// StaticAnalyzer port. Implementations are pure functions of the artifact
// from the engine's point of view.
type StaticAnalyzer interface {
	StaticAnalyze(ctx context.Context, ref ArtifactRef) (*StaticAnalysis, error)
}

// DynamicAnalyzer port
type DynamicAnalyzer interface {
	DynamicAnalyze(ctx context.Context, ref ArtifactRef) (*DynamicAnalysis, error)
}

// Classifier port. Consumes both phase outputs plus the derived signal
// summary and returns the family verdict.
type Classifier interface {
	Classify(ctx context.Context, sa *StaticAnalysis, da *DynamicAnalysis, sig SignalSummary) (*Classification, error)
}
