// internal/websocket/handler/audit_history.go
package handlers

import (
	"context"
	"fmt"

	"mileage-service/internal/domain/audit"
	wstypes "mileage-service/internal/domain/websocket"
	ws "mileage-service/internal/websocket"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// AuditHistoryHandler answers audit:history requests with the audit trail
// of one trip of the client's tenant.
type AuditHistoryHandler struct {
	reader audit.Reader
}

func NewAuditHistoryHandler(reader audit.Reader) *AuditHistoryHandler {
	return &AuditHistoryHandler{reader: reader}
}

func (h *AuditHistoryHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{wstypes.EventTypeAuditHistory}
}

func (h *AuditHistoryHandler) HandleMessage(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	if msg.Type != wstypes.EventTypeAuditHistory {
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}

	var req wstypes.AuditHistoryRequest
	if err := ws.DecodeData(msg, &req); err != nil {
		client.SendError("invalid_request", "Invalid audit history request", err.Error())
		return nil
	}
	if req.TripID <= 0 {
		client.SendError("invalid_request", "trip_id is required", "")
		return nil
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	entries, err := h.reader.ListByTrip(ctx, client.GetTenantID(), req.TripID, limit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []audit.Entry{}
	}

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeAuditHistory, map[string]interface{}{
		"trip_id": req.TripID,
		"entries": entries,
	}))
	return nil
}
