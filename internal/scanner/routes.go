package scanner

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/cellwatch/internal/notifications"
	"github.com/ziadkadry99/cellwatch/internal/telemetry"
)

// RegisterRoutes mounts the manual scan and report endpoints.
func RegisterRoutes(r chi.Router, s *Scanner) {
	r.Post("/api/scan", handleScan(s))
	r.Post("/api/report", handleReport(s))
}

func handleScan(s *Scanner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := s.ScanNow(r.Context())
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func handleReport(s *Scanner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.SendReport(r.Context())
		if errors.Is(err, notifications.ErrDispatchFailed) {
			writeJSON(w, http.StatusBadGateway, res)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ErrNoData):
		return http.StatusPreconditionFailed
	case errors.Is(err, telemetry.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, telemetry.ErrPlatformUnsupported),
		errors.Is(err, telemetry.ErrTelemetryUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
