package stream

import (
	"encoding/json"
	"fmt"
	"net/http"

	"icruise-backend/internal/models"
)

// Encoder writes the chat endpoint's server-sent events. Every event is one
// JSON object under a "data:" line, flushed as soon as it is written so
// deltas reach the client in provider order.
type Encoder struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func NewEncoder(w http.ResponseWriter) *Encoder {
	flusher, _ := w.(http.Flusher)
	return &Encoder{w: w, flusher: flusher}
}

// Recommendations emits the search-result event. An empty slice is a valid
// payload: it tells the client a search ran and found nothing.
func (e *Encoder) Recommendations(cruises []models.CruiseSummary) error {
	if cruises == nil {
		cruises = []models.CruiseSummary{}
	}
	return e.write(map[string]interface{}{"recommendations": cruises})
}

// ContentDelta emits one fragment of assistant text.
func (e *Encoder) ContentDelta(text string) error {
	return e.write(map[string]string{"content": text})
}

func (e *Encoder) write(event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", payload); err != nil {
		return err
	}

	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}
