package instance

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/certvine/certflow"
)

// Payload keys written by the standard stage handlers. The resume input
// is the one key not produced by a handler; the orchestrator records it
// when a suspended instance is resumed.
const (
	KeyAssessment     = "assessment"
	KeyFormDeployment = "form_deployment"
	KeyResumeInput    = "resume_input"
	KeyResponses      = "responses"
	KeyGapAnalysis    = "gap_analysis"
	KeyPlan           = "remediation_plan"
	KeyContent        = "content"
	KeySummary        = "summary"
)

// PayloadEntry is one stage's stored output.
type PayloadEntry struct {
	Key        string          `json:"key"`
	Data       json.RawMessage `json:"data"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Payload is the append-only, insertion-ordered record of stage outputs.
// Each stage writes exactly one entry and entries are never overwritten;
// this is the core auditability invariant of the workflow record.
type Payload []PayloadEntry

// Get returns the data recorded under key.
func (p Payload) Get(key string) (json.RawMessage, bool) {
	for _, e := range p {
		if e.Key == key {
			return e.Data, true
		}
	}
	return nil, false
}

// Has reports whether an entry exists for key.
func (p Payload) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Append records data under key. Appending to an existing key fails with
// ErrPayloadExists: stages never overwrite another stage's entry.
func (p *Payload) Append(key string, data json.RawMessage, at time.Time) error {
	if p.Has(key) {
		return fmt.Errorf("payload %q: %w", key, certflow.ErrPayloadExists)
	}
	*p = append(*p, PayloadEntry{Key: key, Data: data, RecordedAt: at})
	return nil
}

// Keys returns entry keys in insertion order.
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p))
	for _, e := range p {
		keys = append(keys, e.Key)
	}
	return keys
}

// Decode unmarshals the entry recorded under key into v.
func (p Payload) Decode(key string, v any) error {
	data, ok := p.Get(key)
	if !ok {
		return fmt.Errorf("payload %q: no entry recorded", key)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("payload %q: decode: %w", key, err)
	}
	return nil
}
