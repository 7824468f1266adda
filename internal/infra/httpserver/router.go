package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appscans "github.com/haliard/binsight/internal/application/scans"
	domain "github.com/haliard/binsight/internal/domain/scans"
	"github.com/haliard/binsight/internal/middleware"
)

// maxUploadBytes caps multipart submissions.
const maxUploadBytes = 256 << 20

type Router struct {
	scansSvc *appscans.Service
}

func NewRouter(scansSvc *appscans.Service, health http.HandlerFunc) http.Handler {
	r := &Router{scansSvc: scansSvc}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	if health == nil {
		health = func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("ok"))
		}
	}
	mux.Get("/health", health)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/scans", r.wrap(r.handleSubmit))
		rt.Get("/scans", r.wrap(r.handleList))
		rt.Get("/scans/{id}", r.wrap(r.handleGet))
		rt.Delete("/scans/{id}", r.wrap(r.handleDelete))
		rt.Get("/summary", r.wrap(r.handleSummary))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var verr *domain.ValidationError
			switch {
			case errors.As(err, &verr):
				http.Error(w, verr.Error(), http.StatusBadRequest)
			case errors.Is(err, domain.ErrAuthenticationRequired):
				http.Error(w, "authentication required", http.StatusUnauthorized)
			case errors.Is(err, domain.ErrForbidden):
				http.Error(w, "forbidden", http.StatusForbidden)
			case errors.Is(err, domain.ErrNotFound), errors.Is(err, sql.ErrNoRows):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.Is(err, domain.ErrAlreadyInProgress):
				http.Error(w, "scan already in progress", http.StatusConflict)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

// scanResponse is the external representation of a Scan. Status uses the
// caller-facing label table and confidence stays a 0-1 float.
type scanResponse struct {
	ID              string                  `json:"id"`
	FileName        string                  `json:"file_name"`
	FileSize        int64                   `json:"file_size"`
	FileHash        string                  `json:"file_hash"`
	Status          string                  `json:"status"`
	ThreatLevel     string                  `json:"threat_level"`
	MalwareFamily   string                  `json:"malware_family,omitempty"`
	Confidence      *float64                `json:"confidence,omitempty"`
	StaticAnalysis  *domain.StaticAnalysis  `json:"static_analysis,omitempty"`
	DynamicAnalysis *domain.DynamicAnalysis `json:"dynamic_analysis,omitempty"`
	Classification  *domain.Classification  `json:"classification,omitempty"`
	FailureReason   string                  `json:"failure_reason,omitempty"`
	ScanDurationMS  int64                   `json:"scan_duration_ms"`
	CreatedAt       string                  `json:"created_at"`
	CompletedAt     string                  `json:"completed_at,omitempty"`
}

func present(s *domain.Scan) scanResponse {
	resp := scanResponse{
		ID:              string(s.ID),
		FileName:        s.FileName,
		FileSize:        s.FileSize,
		FileHash:        s.FileHash,
		Status:          s.Status.ExternalLabel(),
		ThreatLevel:     string(s.ThreatLevel),
		MalwareFamily:   s.MalwareFamily,
		Confidence:      s.Confidence,
		StaticAnalysis:  s.StaticAnalysis,
		DynamicAnalysis: s.DynamicAnalysis,
		Classification:  s.Classification,
		FailureReason:   s.FailureReason,
		ScanDurationMS:  s.ScanDurationMS,
		CreatedAt:       s.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if s.CompletedAt != nil {
		resp.CompletedAt = s.CompletedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

// POST /v1/scans — multipart upload, field "file"
func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	owner := middleware.GetOwnerFromContext(req.Context())

	req.Body = http.MaxBytesReader(w, req.Body, maxUploadBytes)
	file, header, err := req.FormFile("file")
	if err != nil {
		return &domain.ValidationError{Field: "file", Reason: "multipart field is required"}
	}
	defer file.Close()

	if err := middleware.ValidateFileName(header.Filename); err != nil {
		return &domain.ValidationError{Field: "file_name", Reason: err.Error()}
	}
	if err := middleware.ValidateFileSize(header.Size); err != nil {
		return &domain.ValidationError{Field: "file_size", Reason: err.Error()}
	}

	scan, err := r.scansSvc.Submit(req.Context(), owner, header.Filename, header.Size, file)
	if err != nil {
		return err
	}

	// 🚀 Jalankan analisis di background, biar jalan sampai selesai
	go func(id domain.ScanID) {
		if _, err := r.scansSvc.RunUntilDone(id); err != nil {
			log.Printf("background scan error: id=%s err=%v", id, err)
		}
	}(scan.ID)

	// 🔙 langsung balikin respons ke client
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	return json.NewEncoder(w).Encode(map[string]any{
		"scan_id": string(scan.ID),
		"status":  scan.Status.ExternalLabel(),
	})
}

// GET /v1/scans/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	owner := middleware.GetOwnerFromContext(req.Context())
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateScanID(id); err != nil {
		return domain.ErrNotFound
	}

	scan, err := r.scansSvc.Get(req.Context(), owner, domain.ScanID(id))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(present(scan))
}

// GET /v1/scans
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	owner := middleware.GetOwnerFromContext(req.Context())

	list, err := r.scansSvc.List(req.Context(), owner)
	if err != nil {
		return err
	}

	out := make([]scanResponse, 0, len(list))
	for _, s := range list {
		out = append(out, present(s))
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(out)
}

// DELETE /v1/scans/{id}
func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) error {
	owner := middleware.GetOwnerFromContext(req.Context())
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateScanID(id); err != nil {
		return domain.ErrNotFound
	}

	if err := r.scansSvc.Delete(req.Context(), owner, domain.ScanID(id)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GET /v1/summary?days=7
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	owner := middleware.GetOwnerFromContext(req.Context())
	d, _ := strconv.Atoi(req.URL.Query().Get("days"))
	days := middleware.ValidateDays(d)

	summary, err := r.scansSvc.Summary(req.Context(), owner, days)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(summary)
}
