package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SweepRequestMessage asks a worker to run one inbox sweep. It carries no
// payload beyond its origin: the worker reads the cursor from the database.
type SweepRequestMessage struct {
	ID          string    `json:"id"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewSweepRequestMessage creates a request with a fresh id.
func NewSweepRequestMessage(reason string) *SweepRequestMessage {
	return &SweepRequestMessage{
		ID:          uuid.NewString(),
		Reason:      reason,
		RequestedAt: time.Now().UTC(),
	}
}

func (m *SweepRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SweepRequestMessageFromJSON(data []byte) (*SweepRequestMessage, error) {
	var msg SweepRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
