package translate

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// StreamDone is the terminal sentinel event.
const StreamDone = "[DONE]"

// WriteEventStream renders one payload as a single server-sent data event
// followed by the terminal sentinel. True incremental streaming is
// intentionally not implemented: callers always receive exactly two events,
// the full response and then the completion marker.
func WriteEventStream(w io.Writer, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal stream payload: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", raw); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", StreamDone); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
