package scans

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	domain "github.com/haliard/binsight/internal/domain/scans"
)

// Service implements use-cases untuk Scan: submission, the analysis state
// machine, and owner-scoped reads. Safe for concurrent use; each scan runs
// as its own unit of work and holds an exclusive in-flight slot while it
// mutates the record.
type Service struct {
	Repo       domain.Repository
	Static     domain.StaticAnalyzer
	Dynamic    domain.DynamicAnalyzer
	Classifier domain.Classifier
	Artifacts  domain.ArtifactStore
	Clock      Clock

	// Bands defaults to DefaultBandPolicy when zero.
	Bands domain.BandPolicy
	// PhaseTimeout bounds each collaborator invocation; zero means no bound.
	PhaseTimeout time.Duration

	mu       sync.Mutex
	inflight map[domain.ScanID]*run
}

// Clock abstraction supaya gampang ditest
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// run is one in-flight execution. Joiners wait on done and read scan/err.
type run struct {
	done   chan struct{}
	cancel context.CancelFunc
	scan   *domain.Scan
	err    error
}

func (s *Service) bands() domain.BandPolicy {
	if s.Bands == (domain.BandPolicy{}) {
		return domain.DefaultBandPolicy()
	}
	return s.Bands
}

//
// ==== USE CASES ====
//

// Submit validates the submission, stores the artifact while hashing it,
// and persists a pending Scan. No analysis happens here; the caller (or
// an async trigger) drives the scan with Run.
func (s *Service) Submit(ctx context.Context, ownerID, fileName string, fileSize int64, content io.Reader) (*domain.Scan, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, domain.ErrAuthenticationRequired
	}
	if strings.TrimSpace(fileName) == "" {
		return nil, &domain.ValidationError{Field: "file_name", Reason: "must not be empty"}
	}
	if fileSize <= 0 {
		return nil, &domain.ValidationError{Field: "file_size", Reason: "must be greater than zero"}
	}
	if content == nil {
		return nil, &domain.ValidationError{Field: "file", Reason: "content is required"}
	}

	scan := &domain.Scan{
		ID:          domain.ScanID(uuid.New().String()),
		OwnerID:     ownerID,
		FileName:    fileName,
		FileSize:    fileSize,
		Status:      domain.StatusPending,
		ThreatLevel: domain.ThreatClean, // placeholder until completed
		CreatedAt:   s.Clock.Now(),
	}

	// hash while streaming to the artifact store, single pass over content
	h := sha256.New()
	url, err := s.Artifacts.Put(ctx, scan.ArtifactKey(), io.TeeReader(content, h), fileSize)
	if err != nil {
		return nil, err
	}
	scan.FileHash = hex.EncodeToString(h.Sum(nil))
	scan.ArtifactURL = url

	if err := s.Repo.Create(ctx, scan); err != nil {
		return nil, err
	}
	return scan, nil
}

// Run drives a pending scan through analyzing to a terminal state.
// Idempotent per scan: a terminal scan is returned as stored without
// re-execution. A concurrent Run for the same ID joins the in-flight
// execution and receives the identical result, so at most one execution
// ever writes terminal state.
func (s *Service) Run(ctx context.Context, id domain.ScanID) (*domain.Scan, error) {
	s.mu.Lock()
	if r, ok := s.inflight[id]; ok {
		s.mu.Unlock()
		select {
		case <-r.done:
			return r.scan, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	scan, err := s.Repo.Get(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if scan == nil {
		s.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	if scan.Status.Terminal() {
		s.mu.Unlock()
		return scan, nil
	}
	if scan.Status != domain.StatusPending {
		// analyzing in the store but not in-flight here: a previous
		// process died mid-run. Surface the collision instead of
		// double-writing terminal state.
		s.mu.Unlock()
		return nil, domain.ErrAlreadyInProgress
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{done: make(chan struct{}), cancel: cancel}
	if s.inflight == nil {
		s.inflight = make(map[domain.ScanID]*run)
	}
	s.inflight[id] = r
	s.mu.Unlock()

	r.scan, r.err = s.execute(runCtx, scan)
	cancel()

	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
	close(r.done)

	return r.scan, r.err
}

// RunUntilDone jalanin scan dengan context.Background(); cocok dipanggil
// dari goroutine di router supaya gak kena context canceled.
func (s *Service) RunUntilDone(id domain.ScanID) (*domain.Scan, error) {
	return s.Run(context.Background(), id)
}

// execute performs one full analysis run and always leaves the scan in a
// terminal state (or returns a persistence error).
func (s *Service) execute(ctx context.Context, scan *domain.Scan) (*domain.Scan, error) {
	if !scan.Status.CanAdvance(domain.StatusAnalyzing) {
		return nil, domain.ErrAlreadyInProgress
	}
	scan.Status = domain.StatusAnalyzing
	if err := s.Repo.Update(ctx, scan); err != nil {
		return nil, err
	}
	start := s.Clock.Now()

	ref := domain.ArtifactRef{Key: scan.ArtifactKey(), URL: scan.ArtifactURL}

	// fan-out: static and dynamic run concurrently and independently;
	// classification waits for both.
	var sa *domain.StaticAnalysis
	var da *domain.DynamicAnalysis
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := s.invokeStatic(gctx, ref)
		if err != nil {
			return &domain.PhaseError{Phase: domain.PhaseStatic, Err: err}
		}
		sa = res
		return nil
	})
	g.Go(func() error {
		res, err := s.invokeDynamic(gctx, ref)
		if err != nil {
			return &domain.PhaseError{Phase: domain.PhaseDynamic, Err: err}
		}
		da = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return s.fail(scan, start, err)
	}

	if err := sa.Validate(); err != nil {
		return s.fail(scan, start, &domain.PhaseError{Phase: domain.PhaseStatic, Err: err})
	}

	cls, err := s.invokeClassify(ctx, sa, da)
	if err != nil {
		return s.fail(scan, start, &domain.PhaseError{Phase: domain.PhaseClassify, Err: err})
	}

	level, err := s.bands().ThreatLevel(cls.Family, cls.Confidence)
	if err != nil {
		return s.fail(scan, start, &domain.PhaseError{Phase: domain.PhaseClassify, Err: err})
	}

	// an accepted cancellation must never be followed by a completed write
	if err := ctx.Err(); err != nil {
		return s.fail(scan, start, domain.ErrCancelled)
	}

	scan.StaticAnalysis = sa
	scan.DynamicAnalysis = da
	scan.Classification = cls
	scan.ThreatLevel = level
	if level != domain.ThreatClean {
		scan.MalwareFamily = cls.Family
		c := cls.Confidence
		scan.Confidence = &c
	}
	now := s.Clock.Now()
	scan.ScanDurationMS = now.Sub(start).Milliseconds()
	scan.CompletedAt = &now
	scan.Status = domain.StatusCompleted

	if err := s.Repo.Update(context.WithoutCancel(ctx), scan); err != nil {
		return nil, err
	}
	return scan, nil
}

// fail transitions to the failed terminal state, preserving the reason and
// discarding any partial phase output.
func (s *Service) fail(scan *domain.Scan, start time.Time, cause error) (*domain.Scan, error) {
	if errors.Is(cause, context.Canceled) {
		cause = domain.ErrCancelled
	}
	scan.StaticAnalysis = nil
	scan.DynamicAnalysis = nil
	scan.Classification = nil
	scan.MalwareFamily = ""
	scan.Confidence = nil
	scan.ThreatLevel = domain.ThreatClean
	scan.FailureReason = cause.Error()
	now := s.Clock.Now()
	scan.ScanDurationMS = now.Sub(start).Milliseconds()
	scan.CompletedAt = &now
	scan.Status = domain.StatusFailed

	if err := s.Repo.Update(context.Background(), scan); err != nil {
		return nil, err
	}
	return scan, nil
}

func (s *Service) invokeStatic(ctx context.Context, ref domain.ArtifactRef) (*domain.StaticAnalysis, error) {
	ctx, cancel := s.phaseContext(ctx)
	defer cancel()
	return s.Static.StaticAnalyze(ctx, ref)
}

func (s *Service) invokeDynamic(ctx context.Context, ref domain.ArtifactRef) (*domain.DynamicAnalysis, error) {
	ctx, cancel := s.phaseContext(ctx)
	defer cancel()
	return s.Dynamic.DynamicAnalyze(ctx, ref)
}

func (s *Service) invokeClassify(ctx context.Context, sa *domain.StaticAnalysis, da *domain.DynamicAnalysis) (*domain.Classification, error) {
	ctx, cancel := s.phaseContext(ctx)
	defer cancel()
	return s.Classifier.Classify(ctx, sa, da, domain.Summarize(sa, da))
}

func (s *Service) phaseContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.PhaseTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.PhaseTimeout)
}

// Get ambil 1 scan by id, owner-scoped. Cross-owner access is masked as
// not found.
func (s *Service) Get(ctx context.Context, requester string, id domain.ScanID) (*domain.Scan, error) {
	if strings.TrimSpace(requester) == "" {
		return nil, domain.ErrAuthenticationRequired
	}
	scan, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if scan == nil || scan.OwnerID != requester {
		return nil, domain.ErrNotFound
	}
	return scan, nil
}

// List ambil semua scan milik requester, newest first.
func (s *Service) List(ctx context.Context, requester string) ([]*domain.Scan, error) {
	if strings.TrimSpace(requester) == "" {
		return nil, domain.ErrAuthenticationRequired
	}
	return s.Repo.ListByOwner(ctx, requester)
}

// Delete removes an owner's scan and its stored artifact. An in-flight run
// is cancelled first and allowed to settle, so no completed write can land
// after the delete is accepted.
func (s *Service) Delete(ctx context.Context, requester string, id domain.ScanID) error {
	scan, err := s.Get(ctx, requester, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	r := s.inflight[id]
	s.mu.Unlock()
	if r != nil {
		r.cancel()
		select {
		case <-r.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := s.Artifacts.Remove(ctx, scan.ArtifactKey()); err != nil {
		return err
	}
	return s.Repo.Delete(ctx, id)
}

// Summary rekap jumlah scan per threat level N hari terakhir.
func (s *Service) Summary(ctx context.Context, requester string, sinceDays int) (map[string]int, error) {
	if strings.TrimSpace(requester) == "" {
		return nil, domain.ErrAuthenticationRequired
	}
	counts, err := s.Repo.Summary(ctx, requester, sinceDays)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(counts))
	for level, n := range counts {
		out[string(level)] = n
	}
	return out, nil
}
