package amqp

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RefreshMessage asks consumers to drop cached data for a source and
// recompute its KPIs.
type RefreshMessage struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	SubRange    string    `json:"sub_range"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewRefreshMessage creates a message stamped with a fresh id and the
// current time.
func NewRefreshMessage(sourceID, subRange string) *RefreshMessage {
	return &RefreshMessage{
		ID:          uuid.NewString(),
		SourceID:    sourceID,
		SubRange:    subRange,
		RequestedAt: time.Now().UTC(),
	}
}

// ToJSON encodes the message.
func (m *RefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RefreshMessageFromJSON decodes and validates a message.
func RefreshMessageFromJSON(data []byte) (*RefreshMessage, error) {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(msg.SourceID) == "" {
		return nil, errors.New("refresh message without source_id")
	}
	return &msg, nil
}
