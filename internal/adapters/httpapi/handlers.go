package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mikey/mail-risk-analyzer/internal/core"
	"github.com/mikey/mail-risk-analyzer/internal/notifier"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code"`
}

type analyzeResponse struct {
	Results []core.MessageReport `json:"results"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	limit := s.opts.AnalyzeLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer", "invalid_request")
			return
		}
		limit = n
	}

	reports, err := s.service.Analyze(r.Context(), limit)
	if err != nil {
		s.serviceError(w, "analyze", err)
		return
	}
	if reports == nil {
		reports = []core.MessageReport{}
	}
	writeJSON(w, http.StatusOK, analyzeResponse{Results: reports})
}

func (s *Server) handleModifySubject(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	risk := r.URL.Query().Get("risk")
	if uid == "" || risk == "" {
		writeError(w, http.StatusBadRequest, "uid and risk are required", "invalid_request")
		return
	}

	change, err := s.service.ModifySubject(r.Context(), uid, risk)
	if err != nil {
		s.serviceError(w, "modify_subject", err)
		return
	}
	writeJSON(w, http.StatusOK, change)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Health(r.Context()))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Stats())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", "internal_error")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	emit := func(e notifier.Event) error {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := s.notifier.Run(r.Context(), emit); err != nil {
		s.logger.Debug("Event stream closed", zap.Error(err))
	}
}

// serviceError maps a service failure to a status code and error code
func (s *Server) serviceError(w http.ResponseWriter, op string, err error) {
	var validation *core.ValidationError
	if errors.As(err, &validation) {
		writeError(w, http.StatusBadRequest, validation.Error(), "validation_error")
		return
	}

	code := "internal_error"
	var transport *core.TransportError
	if errors.As(err, &transport) {
		code = "transport_error"
	}
	s.logger.Error("Request failed", zap.String("operation", op), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error", code)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail, code string) {
	writeJSON(w, status, ErrorResponse{Detail: detail, ErrorCode: code})
}
