// Package handlers implements the HTTP surfaces of the gateway: the
// content-list API, the chat-message API, the smart agent and the
// management endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/airewrite/antigravity-gateway/internal/auth/token"
	"github.com/airewrite/antigravity-gateway/internal/db/models"
	"github.com/airewrite/antigravity-gateway/internal/monitor"
	"github.com/airewrite/antigravity-gateway/internal/router"
	"github.com/airewrite/antigravity-gateway/internal/translate"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("❌ Failed to encode response: %v", err)
	}
}

// writeOpenAIError emits the chat-message API error envelope.
func writeOpenAIError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    "invalid_request_error",
		},
	})
}

// writeGenAIError emits the content-list API error envelope.
func writeGenAIError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    status,
			"status":  http.StatusText(status),
		},
	})
}

// SetSSEHeaders sets standard headers for Server-Sent Events streaming.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// statusForRouteError maps routing failures onto client-facing status
// codes. A drained pool reports the last upstream status when one exists.
func statusForRouteError(err error) int {
	var protoErr *translate.ProtocolError
	if errors.As(err, &protoErr) {
		return http.StatusBadRequest
	}
	var credErr *token.CredentialError
	if errors.As(err, &credErr) {
		return http.StatusUnauthorized
	}
	var exhausted *router.ExhaustedPoolError
	if errors.As(err, &exhausted) {
		var upErr *router.UpstreamError
		if errors.As(exhausted.Last, &upErr) && upErr.Status >= 400 {
			return upErr.Status
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// routeErrorMessage picks the client-facing message for a routing
// failure. When the pool drained, the last upstream error body passes
// through verbatim so callers see the real backend response.
func routeErrorMessage(err error) string {
	var exhausted *router.ExhaustedPoolError
	if errors.As(err, &exhausted) && exhausted.Last != nil && exhausted.Last.Body != "" {
		return exhausted.Last.Body
	}
	return err.Error()
}

// record logs one handled request to the usage monitor.
func record(mon *monitor.Monitor, protocol, model string, kind translate.Kind, email string, status int, start time.Time, err error) {
	if mon == nil {
		return
	}
	entry := models.RequestLog{
		Protocol:     protocol,
		Model:        model,
		Kind:         kind.String(),
		AccountEmail: email,
		Status:       status,
		Duration:     time.Since(start).Milliseconds(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	mon.Record(entry)
}
