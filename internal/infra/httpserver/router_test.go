package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	appscans "github.com/haliard/binsight/internal/application/scans"
	domain "github.com/haliard/binsight/internal/domain/scans"
	"github.com/haliard/binsight/internal/middleware"
)

type memRepo struct {
	mu    sync.Mutex
	scans map[domain.ScanID]*domain.Scan
}

func (r *memRepo) Create(_ context.Context, s *domain.Scan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.scans[s.ID] = &cp
	return nil
}

func (r *memRepo) Update(_ context.Context, s *domain.Scan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.scans[s.ID] = &cp
	return nil
}

func (r *memRepo) Get(_ context.Context, id domain.ScanID) (*domain.Scan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scans[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memRepo) ListByOwner(_ context.Context, owner string) ([]*domain.Scan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Scan
	for _, s := range r.scans {
		if s.OwnerID == owner {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memRepo) Delete(_ context.Context, id domain.ScanID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.scans, id)
	return nil
}

func (r *memRepo) Summary(_ context.Context, owner string, _ int) (map[domain.ThreatLevel]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[domain.ThreatLevel]int)
	for _, s := range r.scans {
		if s.OwnerID == owner && s.Status == domain.StatusCompleted {
			out[s.ThreatLevel]++
		}
	}
	return out, nil
}

type memStore struct{}

func (memStore) Put(_ context.Context, key string, r io.Reader, _ int64) (string, error) {
	_, err := io.Copy(io.Discard, r)
	return "http://store.local/" + key, err
}

func (memStore) Remove(context.Context, string) error { return nil }

type stubStatic struct{}

func (stubStatic) StaticAnalyze(context.Context, domain.ArtifactRef) (*domain.StaticAnalysis, error) {
	return &domain.StaticAnalysis{Entropy: domain.EntropyData{Overall: 6.5}}, nil
}

type stubDynamic struct{}

func (stubDynamic) DynamicAnalyze(context.Context, domain.ArtifactRef) (*domain.DynamicAnalysis, error) {
	return &domain.DynamicAnalysis{}, nil
}

type stubClassifier struct{}

func (stubClassifier) Classify(context.Context, *domain.StaticAnalysis, *domain.DynamicAnalysis, domain.SignalSummary) (*domain.Classification, error) {
	return &domain.Classification{Family: "Ransomware", Confidence: 0.94}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *memRepo, *appscans.Service) {
	t.Helper()
	repo := &memRepo{scans: make(map[domain.ScanID]*domain.Scan)}
	svc := &appscans.Service{
		Repo:       repo,
		Static:     stubStatic{},
		Dynamic:    stubDynamic{},
		Classifier: stubClassifier{},
		Artifacts:  memStore{},
		Clock:      appscans.SystemClock{},
	}

	mux := chi.NewRouter()
	mux.Use(middleware.APIKeyAuth(map[string]string{"owner1": "key-one"}))
	mux.Mount("/", NewRouter(svc, nil))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, repo, svc
}

func doRequest(t *testing.T, method, url string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer key-one")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func multipartFile(t *testing.T, fieldName, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(fieldName, fileName)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	w.Close()
	return &buf, w.FormDataContentType()
}

func TestSubmitEndpoint(t *testing.T) {
	srv, repo, _ := newTestServer(t)

	body, ct := multipartFile(t, "file", "a.exe", []byte("MZ\x90\x00payload"))
	resp := doRequest(t, http.MethodPost, srv.URL+"/v1/scans", body, ct)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var out struct {
		ScanID string `json:"scan_id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != "pending" {
		t.Errorf("status = %q, want pending", out.Status)
	}
	if out.ScanID == "" {
		t.Fatal("missing scan_id")
	}

	// background run settles to completed
	deadline := time.Now().Add(2 * time.Second)
	for {
		s, _ := repo.Get(context.Background(), domain.ScanID(out.ScanID))
		if s != nil && s.Status.Terminal() {
			if s.Status != domain.StatusCompleted {
				t.Fatalf("terminal status = %s, want completed", s.Status)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("scan never reached terminal state")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSubmitRequiresFile(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body, ct := multipartFile(t, "wrong_field", "a.exe", []byte("MZ"))
	resp := doRequest(t, http.MethodPost, srv.URL+"/v1/scans", body, ct)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSubmitRejectsMissingAuth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body, ct := multipartFile(t, "file", "a.exe", []byte("MZ"))
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/scans", body)
	req.Header.Set("Content-Type", ct)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestGetPresentsExternalStatusLabel(t *testing.T) {
	srv, repo, _ := newTestServer(t)

	// a scan mid-analysis is surfaced as "scanning"
	scan := &domain.Scan{
		ID:       "8f14e45f-ceea-4672-a3b4-9a1c5e1b2d3f",
		OwnerID:  "owner1",
		FileName: "a.exe",
		FileSize: 1024,
		Status:   domain.StatusAnalyzing,
	}
	repo.Create(context.Background(), scan)

	resp := doRequest(t, http.MethodGet, srv.URL+"/v1/scans/"+string(scan.ID), nil, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != "scanning" {
		t.Errorf("status label = %q, want scanning", out.Status)
	}
}

func TestGetUnknownScan(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/v1/scans/8f14e45f-ceea-4672-a3b4-9a1c5e1b2d3f", nil, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetRejectsMalformedID(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/v1/scans/not-a-uuid", nil, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDeleteEndpoint(t *testing.T) {
	srv, repo, _ := newTestServer(t)

	scan := &domain.Scan{
		ID:       "8f14e45f-ceea-4672-a3b4-9a1c5e1b2d3f",
		OwnerID:  "owner1",
		FileName: "a.exe",
		FileSize: 1024,
		Status:   domain.StatusCompleted,
	}
	repo.Create(context.Background(), scan)

	resp := doRequest(t, http.MethodDelete, srv.URL+"/v1/scans/"+string(scan.ID), nil, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	list := doRequest(t, http.MethodGet, srv.URL+"/v1/scans", nil, "")
	defer list.Body.Close()
	var scans []json.RawMessage
	if err := json.NewDecoder(list.Body).Decode(&scans); err != nil {
		t.Fatal(err)
	}
	if len(scans) != 0 {
		t.Errorf("list after delete has %d scans, want 0", len(scans))
	}
}
