package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/volk7/alerting/logger"
)

const alarmsPrefix = "/alarms/"

func (s *Server) routes() {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.requestLogMiddleware(s.corsMiddleware(s.handleHealth)))
	mux.HandleFunc("/alarms", s.requestLogMiddleware(s.corsMiddleware(s.handleAlarmsCollection)))
	mux.HandleFunc(alarmsPrefix, s.requestLogMiddleware(s.corsMiddleware(s.handleAlarmsItem)))

	s.mux = mux
}

// requestLogMiddleware tags every request with a request ID (propagated
// via the request context so handlers can log with it) and, at -vv and
// above, logs the method/path and the call's duration.
func (s *Server) requestLogMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx := logger.WithRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)

		start := time.Now()
		next(w, r)

		if s.log != nil && logger.ShouldOutput(logger.Verbosity(), logger.OutputHTTPRequests) {
			logger.LoggerFromContext(ctx).Infow("handled request",
				logger.FieldMethod, r.Method,
				logger.FieldPath, r.URL.Path,
				logger.FieldDurationMS, time.Since(start).Milliseconds(),
			)
		}
	}
}

// handleAlarmsCollection dispatches POST /alarms and GET /alarms.
func (s *Server) handleAlarmsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateAlarm(w, r)
	case http.MethodGet:
		s.handleListAlarms(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleAlarmsItem dispatches GET/DELETE /alarms/{code_id}.
func (s *Server) handleAlarmsItem(w http.ResponseWriter, r *http.Request) {
	codeID := extractCodeID(r.URL.Path, alarmsPrefix)
	if codeID == "" || strings.Contains(codeID, "/") {
		writeError(w, http.StatusNotFound, "alarm not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetAlarm(w, r, codeID)
	case http.MethodDelete:
		s.handleDeleteAlarm(w, r, codeID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// corsMiddleware allows same-origin dashboards and simple cross-origin
// API clients; the alarm API carries no cookies, so credentials are
// never reflected.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}
