package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sydlexius/spinmatch/internal/api/middleware"
	"github.com/sydlexius/spinmatch/internal/release"
	"github.com/sydlexius/spinmatch/internal/version"
)

// queryBody is the JSON form of release.IdentifierQuery. The label image
// travels base64-encoded, which encoding/json does for []byte.
type queryBody struct {
	Barcode       string `json:"barcode"`
	CatalogNumber string `json:"catalog_number"`
	Artist        string `json:"artist"`
	Album         string `json:"album"`
	Year          int    `json:"year"`
	LabelImage    []byte `json:"label_image"`
}

func (b queryBody) query() release.IdentifierQuery {
	return release.IdentifierQuery{
		Barcode:       b.Barcode,
		CatalogNumber: b.CatalogNumber,
		Artist:        b.Artist,
		Album:         b.Album,
		Year:          b.Year,
		LabelImage:    b.LabelImage,
	}
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
		"commit":  version.Commit,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReconcile runs the fallback chain, or loads the release directly
// when the caller already picked one with release_id.
func (r *Router) handleReconcile(w http.ResponseWriter, req *http.Request) {
	var body struct {
		queryBody
		ReleaseID string `json:"release_id"`
	}
	if !decodeBody(w, req, &body) {
		return
	}
	var (
		result *release.Result
		err    error
	)
	if body.ReleaseID != "" {
		result, err = r.reconciler.Select(req.Context(), body.ReleaseID)
	} else {
		result, err = r.reconciler.Reconcile(req.Context(), body.query())
	}
	if err != nil {
		r.writeLookupError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (r *Router) handlePrice(w http.ResponseWriter, req *http.Request) {
	var body struct {
		queryBody
		ReleaseID string `json:"release_id"`
	}
	if !decodeBody(w, req, &body) {
		return
	}
	summary, err := r.pricer.PriceRelease(req.Context(), body.query(), body.ReleaseID)
	if err != nil {
		r.writeLookupError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// statusForKind maps an error kind onto the HTTP status callers see.
func statusForKind(kind release.ErrorKind) int {
	switch kind {
	case release.KindInvalidQuery:
		return http.StatusBadRequest
	case release.KindNotAvailable:
		return http.StatusNotFound
	case release.KindAuthFailure:
		return http.StatusBadGateway
	case release.KindQuotaExhausted:
		return http.StatusPaymentRequired
	case release.KindUnavailable:
		return http.StatusServiceUnavailable
	case release.KindTimeout:
		return http.StatusGatewayTimeout
	case release.KindCanceled:
		// nginx's "client closed request"; nobody is listening anyway.
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func (r *Router) writeLookupError(w http.ResponseWriter, req *http.Request, err error) {
	kind := release.Kind(err)
	status := statusForKind(kind)
	attrs := []any{
		slog.String("request_id", middleware.RequestIDFromContext(req.Context())),
		slog.String("kind", string(kind)),
		slog.String("error", err.Error()),
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		r.logger.Error("lookup failed", attrs...)
		message = "internal error"
	} else {
		r.logger.Info("lookup failed", attrs...)
	}
	writeJSON(w, status, map[string]string{"error": message, "kind": string(kind)})
}

func decodeBody(w http.ResponseWriter, req *http.Request, v any) bool {
	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, "invalid request body")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
	}
}
