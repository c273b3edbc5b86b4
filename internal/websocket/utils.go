// internal/websocket/utils.go
package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"

	wstypes "mileage-service/internal/domain/websocket"
)

// DecodeData converts the loosely typed payload of msg into target. Fields
// target does not declare are rejected so typos in requests surface early.
func DecodeData(msg *wstypes.WSMessage, target interface{}) error {
	if msg.Data == nil {
		return ErrEmptyPayload
	}
	raw, err := json.Marshal(msg.Data)
	if err != nil {
		return fmt.Errorf("re-encode %s payload: %w", msg.Type, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.Type, err)
	}
	return nil
}
