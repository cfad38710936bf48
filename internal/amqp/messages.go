package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BackupMessage carries one exported bundle to the archiving worker.
type BackupMessage struct {
	MessageID string          `json:"message_id"`
	Filename  string          `json:"filename"`
	CreatedAt time.Time       `json:"created_at"`
	Bundle    json.RawMessage `json:"bundle"`
}

// NewBackupMessage wraps an encoded bundle. The bundle must be valid JSON.
func NewBackupMessage(filename string, bundle []byte) (*BackupMessage, error) {
	if !json.Valid(bundle) {
		return nil, errors.New("bundle is not valid JSON")
	}
	return &BackupMessage{
		MessageID: uuid.NewString(),
		Filename:  filename,
		CreatedAt: time.Now().UTC(),
		Bundle:    bundle,
	}, nil
}

func (m *BackupMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BackupMessageFromJSON decodes a delivery body and rejects messages
// without a filename or bundle.
func BackupMessageFromJSON(data []byte) (*BackupMessage, error) {
	var msg BackupMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Filename == "" {
		return nil, fmt.Errorf("message %s: missing filename", msg.MessageID)
	}
	if len(msg.Bundle) == 0 || string(msg.Bundle) == "null" {
		return nil, fmt.Errorf("message %s: missing bundle", msg.MessageID)
	}
	return &msg, nil
}
