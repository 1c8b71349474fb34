package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prepa3/turnstile/internal/turnstile/attendance"
	"github.com/prepa3/turnstile/internal/turnstile/service"
	"github.com/prepa3/turnstile/internal/turnstile/store"
	"github.com/prepa3/turnstile/internal/turnstile/types"
)

type Dependencies struct {
	Logger            *log.Logger
	Addr              string
	AttendanceService *service.AttendanceService
	ReportService     *service.ReportService
	RosterService     *service.RosterService

	// Events serves the websocket feed on GET /v1/events.  Nil disables it.
	Events http.Handler

	// APIKey, when set, is required on every request as X-API-Key (or the
	// api_key query parameter, for browsers opening the websocket).
	APIKey string
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	mux        *http.ServeMux
	attendance *service.AttendanceService
	reports    *service.ReportService
	roster     *service.RosterService
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:     d.Logger,
		mux:        mux,
		attendance: d.AttendanceService,
		reports:    d.ReportService,
		roster:     d.RosterService,
	}

	mux.HandleFunc("POST /v1/students", s.handleRegisterStudent)
	mux.HandleFunc("GET /v1/students", s.handleListStudents)
	mux.HandleFunc("GET /v1/students/inside", s.handleListInside)
	mux.HandleFunc("GET /v1/students/{id}", s.handleGetStudent)
	mux.HandleFunc("POST /v1/students/{id}/access", s.handleAccess)
	mux.HandleFunc("POST /v1/students/{id}/logs/clear", s.handleClearLogs)
	mux.HandleFunc("POST /v1/logs/clear", s.handleClearAllLogs)
	mux.HandleFunc("POST /v1/students/{id}/reports", s.handleAddReport)
	mux.HandleFunc("PATCH /v1/students/{id}/reports/{at}", s.handleEditReport)
	mux.HandleFunc("DELETE /v1/students/{id}/reports/{at}", s.handleRemoveReport)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	if d.Events != nil {
		mux.Handle("GET /v1/events", d.Events)
	}

	var handler http.Handler = mux
	handler = apiKeyMiddleware(d.APIKey, handler)
	handler = loggingMiddleware(d.Logger, handler)
	handler = requestIDMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// decodeJSON reads a size-capped JSON body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return false
	}
	return true
}

// pathAt parses the {at} report key.
func pathAt(w http.ResponseWriter, r *http.Request) (int64, bool) {
	at, err := strconv.ParseInt(r.PathValue("at"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_at", "report key must be an integer timestamp in ms")
		return 0, false
	}
	return at, true
}

// ── Students ─────────────────────────────────────────────────────────────────

func (s *Server) handleRegisterStudent(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterStudentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	st, err := s.roster.Register(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.StudentFilter{
		Name:     q.Get("name"),
		ID:       q.Get("id"),
		Group:    q.Get("group"),
		Semester: q.Get("semester"),
		Career:   q.Get("career"),
		Shift:    q.Get("shift"),
	}

	students, err := s.roster.Filter(r.Context(), f)
	if err != nil {
		s.writeServiceError(w, "list students", err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

func (s *Server) handleListInside(w http.ResponseWriter, r *http.Request) {
	students, err := s.attendance.ListCurrentlyInside(r.Context())
	if err != nil {
		s.writeServiceError(w, "list inside", err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	st, err := s.roster.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, "get student", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ── Access ───────────────────────────────────────────────────────────────────

// handleAccess accepts JSON or a protobuf google.protobuf.Struct body and
// answers in the same encoding.
func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	var (
		req types.AccessRequest
		pb  = isProtobuf(r)
	)
	if pb {
		msg, err := readStruct(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_protobuf", "invalid protobuf body")
			return
		}
		req = accessRequestFromStruct(msg)
	} else if !decodeJSON(w, r, &req) {
		return
	}
	req.StudentID = r.PathValue("id")

	resp, err := s.attendance.Access(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, "access", err)
		return
	}

	if pb {
		msg, err := accessResponseToStruct(resp)
		if err != nil {
			s.logger.Printf("access encode protobuf: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
		writeProto(w, http.StatusOK, msg)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ── Logs ─────────────────────────────────────────────────────────────────────

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	st, err := s.roster.ClearLogs(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, "clear logs", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleClearAllLogs(w http.ResponseWriter, r *http.Request) {
	n, err := s.roster.ClearAllLogs(r.Context())
	if err != nil {
		s.writeServiceError(w, "clear all logs", err)
		return
	}
	writeJSON(w, http.StatusOK, types.ClearAllLogsResponse{Cleaned: n})
}

// ── Reports ──────────────────────────────────────────────────────────────────

func (s *Server) handleAddReport(w http.ResponseWriter, r *http.Request) {
	var req types.AddReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	st, err := s.reports.AddReport(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeServiceError(w, "add report", err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleEditReport(w http.ResponseWriter, r *http.Request) {
	at, ok := pathAt(w, r)
	if !ok {
		return
	}
	var patch attendance.ReportPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	st, err := s.reports.EditReport(r.Context(), r.PathValue("id"), at, patch)
	if err != nil {
		s.writeServiceError(w, "edit report", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleRemoveReport(w http.ResponseWriter, r *http.Request) {
	at, ok := pathAt(w, r)
	if !ok {
		return
	}

	st, err := s.reports.RemoveReport(r.Context(), r.PathValue("id"), at)
	if err != nil {
		s.writeServiceError(w, "remove report", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ── Stats ────────────────────────────────────────────────────────────────────

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.attendance.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
