package mysql

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	domain "github.com/haliard/binsight/internal/domain/scans"
)

type ScanRepository struct {
	db *sql.DB
}

func NewScanRepository(db *sql.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

const scanColumns = `
id, owner_id, file_name, file_size, file_hash, status, threat_level,
malware_family, confidence, static_analysis, dynamic_analysis, classification,
failure_reason, artifact_url, scan_duration_ms, created_at, completed_at`

// Create inserts the pending row for a freshly submitted scan.
func (r *ScanRepository) Create(ctx context.Context, s *domain.Scan) error {
	const q = `
INSERT INTO scans
(id, owner_id, file_name, file_size, file_hash, status, threat_level,
 malware_family, confidence, static_analysis, dynamic_analysis, classification,
 failure_reason, artifact_url, scan_duration_ms, created_at, completed_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?);
`
	args, err := scanArgs(s)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	return err
}

// Update rewrites the mutable columns. Immutable submission metadata is
// deliberately not touched.
func (r *ScanRepository) Update(ctx context.Context, s *domain.Scan) error {
	const q = `
UPDATE scans
SET status = ?, threat_level = ?, malware_family = ?, confidence = ?,
    static_analysis = ?, dynamic_analysis = ?, classification = ?,
    failure_reason = ?, scan_duration_ms = ?, completed_at = ?
WHERE id = ?;
`
	staticJSON, dynamicJSON, clsJSON, err := analysisJSON(s)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q,
		s.Status, s.ThreatLevel, nullString(s.MalwareFamily), confidenceColumn(s.Confidence),
		staticJSON, dynamicJSON, clsJSON,
		nullString(s.FailureReason), s.ScanDurationMS, nullTime(s.CompletedAt),
		s.ID,
	)
	return err
}

// Get by ID; returns (nil, nil) when the scan does not exist so the
// service can mask ownership.
func (r *ScanRepository) Get(ctx context.Context, id domain.ScanID) (*domain.Scan, error) {
	const q = `SELECT ` + scanColumns + ` FROM scans WHERE id = ? LIMIT 1;`
	s, err := scanRow(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// ListByOwner returns the owner's scans newest first.
func (r *ScanRepository) ListByOwner(ctx context.Context, owner string) ([]*domain.Scan, error) {
	const q = `SELECT ` + scanColumns + ` FROM scans WHERE owner_id = ? ORDER BY created_at DESC;`
	rows, err := r.db.QueryContext(ctx, q, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Scan
	for rows.Next() {
		s, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Delete removes the scan row.
func (r *ScanRepository) Delete(ctx context.Context, id domain.ScanID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM scans WHERE id = ?;`, id)
	return err
}

// Summary counts completed scans per threat level since N days.
func (r *ScanRepository) Summary(ctx context.Context, owner string, sinceDays int) (map[domain.ThreatLevel]int, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	cut := time.Now().AddDate(0, 0, -sinceDays)

	const q = `
SELECT threat_level, COUNT(*)
FROM scans
WHERE owner_id = ? AND status = ? AND created_at >= ?
GROUP BY threat_level;
`
	rows, err := r.db.QueryContext(ctx, q, owner, domain.StatusCompleted, cut)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.ThreatLevel]int)
	for rows.Next() {
		var level domain.ThreatLevel
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, err
		}
		out[level] = n
	}
	return out, rows.Err()
}

// scanArgs builds the full insert argument list.
func scanArgs(s *domain.Scan) ([]any, error) {
	staticJSON, dynamicJSON, clsJSON, err := analysisJSON(s)
	if err != nil {
		return nil, err
	}
	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return []any{
		s.ID, s.OwnerID, s.FileName, s.FileSize, s.FileHash, s.Status, s.ThreatLevel,
		nullString(s.MalwareFamily), confidenceColumn(s.Confidence),
		staticJSON, dynamicJSON, clsJSON,
		nullString(s.FailureReason), s.ArtifactURL, s.ScanDurationMS, created, nullTime(s.CompletedAt),
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(row rowScanner) (*domain.Scan, error) {
	var s domain.Scan
	var family, reason sql.NullString
	var confidence sql.NullInt64
	var staticJSON, dynamicJSON, clsJSON sql.NullString
	var completed sql.NullTime

	if err := row.Scan(
		&s.ID, &s.OwnerID, &s.FileName, &s.FileSize, &s.FileHash, &s.Status, &s.ThreatLevel,
		&family, &confidence, &staticJSON, &dynamicJSON, &clsJSON,
		&reason, &s.ArtifactURL, &s.ScanDurationMS, &s.CreatedAt, &completed,
	); err != nil {
		return nil, err
	}

	s.MalwareFamily = family.String
	s.FailureReason = reason.String
	if confidence.Valid {
		// stored as 0-100 integer, exposed as 0-1 float
		c := float64(confidence.Int64) / 100
		s.Confidence = &c
	}
	if completed.Valid {
		t := completed.Time
		s.CompletedAt = &t
	}
	if err := decodeJSON(staticJSON, &s.StaticAnalysis); err != nil {
		return nil, err
	}
	if err := decodeJSON(dynamicJSON, &s.DynamicAnalysis); err != nil {
		return nil, err
	}
	if err := decodeJSON(clsJSON, &s.Classification); err != nil {
		return nil, err
	}
	return &s, nil
}

func analysisJSON(s *domain.Scan) (staticJSON, dynamicJSON, clsJSON any, err error) {
	if staticJSON, err = encodeJSON(s.StaticAnalysis); err != nil {
		return nil, nil, nil, err
	}
	if dynamicJSON, err = encodeJSON(s.DynamicAnalysis); err != nil {
		return nil, nil, nil, err
	}
	if clsJSON, err = encodeJSON(s.Classification); err != nil {
		return nil, nil, nil, err
	}
	return staticJSON, dynamicJSON, clsJSON, nil
}

// confidenceColumn converts the 0-1 float to the persisted 0-100 integer.
func confidenceColumn(c *float64) any {
	if c == nil {
		return nil
	}
	return int64(math.Round(*c * 100))
}
