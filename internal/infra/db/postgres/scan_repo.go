package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"time"

	_ "github.com/lib/pq"

	domain "github.com/haliard/binsight/internal/domain/scans"
)

type ScanRepository struct {
	db *sql.DB
}

func NewScanRepository(db *sql.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		return nil, err
	}
	return db, nil
}

const scanColumns = `
id, owner_id, file_name, file_size, file_hash, status, threat_level,
malware_family, confidence, static_analysis, dynamic_analysis, classification,
failure_reason, artifact_url, scan_duration_ms, created_at, completed_at`

func (r *ScanRepository) Create(ctx context.Context, s *domain.Scan) error {
	const q = `
INSERT INTO scans
(id, owner_id, file_name, file_size, file_hash, status, threat_level,
 malware_family, confidence, static_analysis, dynamic_analysis, classification,
 failure_reason, artifact_url, scan_duration_ms, created_at, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17);
`
	staticJSON, err := encodeJSON(s.StaticAnalysis)
	if err != nil {
		return err
	}
	dynamicJSON, err := encodeJSON(s.DynamicAnalysis)
	if err != nil {
		return err
	}
	clsJSON, err := encodeJSON(s.Classification)
	if err != nil {
		return err
	}
	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = r.db.ExecContext(ctx, q,
		s.ID, s.OwnerID, s.FileName, s.FileSize, s.FileHash, s.Status, s.ThreatLevel,
		nullString(s.MalwareFamily), confidenceColumn(s.Confidence),
		staticJSON, dynamicJSON, clsJSON,
		nullString(s.FailureReason), s.ArtifactURL, s.ScanDurationMS, created, nullTime(s.CompletedAt),
	)
	return err
}

func (r *ScanRepository) Update(ctx context.Context, s *domain.Scan) error {
	const q = `
UPDATE scans
SET status = $1, threat_level = $2, malware_family = $3, confidence = $4,
    static_analysis = $5, dynamic_analysis = $6, classification = $7,
    failure_reason = $8, scan_duration_ms = $9, completed_at = $10
WHERE id = $11;
`
	staticJSON, err := encodeJSON(s.StaticAnalysis)
	if err != nil {
		return err
	}
	dynamicJSON, err := encodeJSON(s.DynamicAnalysis)
	if err != nil {
		return err
	}
	clsJSON, err := encodeJSON(s.Classification)
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

func (r *ScanRepository) Get(ctx context.Context, id domain.ScanID) (*domain.Scan, error) {
	const q = `SELECT ` + scanColumns + ` FROM scans WHERE id = $1 LIMIT 1;`
	s, err := scanRow(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *ScanRepository) ListByOwner(ctx context.Context, owner string) ([]*domain.Scan, error) {
	const q = `SELECT ` + scanColumns + ` FROM scans WHERE owner_id = $1 ORDER BY created_at DESC;`
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

func (r *ScanRepository) Delete(ctx context.Context, id domain.ScanID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM scans WHERE id = $1;`, id)
	return err
}

func (r *ScanRepository) Summary(ctx context.Context, owner string, sinceDays int) (map[domain.ThreatLevel]int, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	cut := time.Now().AddDate(0, 0, -sinceDays)

	const q = `
SELECT threat_level, COUNT(*)
FROM scans
WHERE owner_id = $1 AND status = $2 AND created_at >= $3
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

func encodeJSON[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeJSON[T any](col sql.NullString, dst **T) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	out := new(T)
	if err := json.Unmarshal([]byte(col.String), out); err != nil {
		return err
	}
	*dst = out
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func confidenceColumn(c *float64) any {
	if c == nil {
		return nil
	}
	return int64(math.Round(*c * 100))
}
