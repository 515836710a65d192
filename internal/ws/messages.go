package ws

import (
	"encoding/json"

	"pvsimulator/internal/simulation"
)

// Envelope wraps all WebSocket messages with a type discriminator.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants, server -> client.
const (
	TypeSimProgress = "sim:progress"
	TypeSimComplete = "sim:complete"
	TypeSimError    = "sim:error"
)

// SimProgressPayload reports how far a run has advanced.
type SimProgressPayload struct {
	RunID    string  `json:"run_id"`
	Fraction float64 `json:"fraction"`
}

// SimCompletePayload carries a finished run's statistics.
type SimCompletePayload struct {
	RunID      string                      `json:"run_id"`
	Statistics simulation.AnnualStatistics `json:"statistics"`
}

// SimErrorPayload reports a failed run.
type SimErrorPayload struct {
	RunID string `json:"run_id"`
	Error string `json:"error"`
}

func NewEnvelope(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}
