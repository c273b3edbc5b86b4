// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	"mileage-service/internal/domain/audit"
	wstypes "mileage-service/internal/domain/websocket"
	"mileage-service/internal/pkg/jwt"

	"go.uber.org/zap"
)

// TokenVerifier is satisfied by *jwt.Verifier.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*jwt.Claims, error)
}

// Hub fans audit entries out to the connected clients of their tenant. It is
// also an audit.Sink.
type Hub struct {
	// Registered clients by tenant ID
	clients map[int64]map[*Client]bool
	mu      sync.RWMutex

	Register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}
	stopOnce   sync.Once

	handlerRegistry *HandlerRegistry

	verifier TokenVerifier
	logger   *zap.Logger
}

type BroadcastMessage struct {
	TenantID int64
	Channel  wstypes.ChannelType
	Message  *wstypes.WSMessage
}

func NewHub(verifier TokenVerifier, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:         make(map[int64]map[*Client]bool),
		Register:        make(chan *Client),
		unregister:      make(chan *Client),
		broadcast:       make(chan *BroadcastMessage, 256),
		done:            make(chan struct{}),
		handlerRegistry: NewHandlerRegistry(),
		verifier:        verifier,
		logger:          logger,
	}
}

// AuthenticateClient validates the access token of a connecting client
func (h *Hub) AuthenticateClient(token string) (*ClientAuth, error) {
	if h.verifier == nil {
		return nil, ErrUnauthorized
	}
	claims, err := h.verifier.VerifyAccessToken(token)
	if err != nil {
		return nil, err
	}

	return &ClientAuth{
		IdentityID: claims.IdentityID,
		TenantID:   claims.TenantID,
		SessionID:  claims.ID,
		Roles:      claims.Roles,
	}, nil
}

func (h *Hub) RegisterHandler(handler MessageHandler) error {
	return h.handlerRegistry.Register(handler)
}

// HandleClientMessage delegates a client request to its registered handler.
// It reports whether a handler took the message.
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) (bool, error) {
	handler, exists := h.handlerRegistry.GetHandler(msg.Type)
	if !exists {
		return false, nil
	}
	return true, handler.HandleMessage(ctx, client, msg)
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.BroadcastMessage(msg)
		}
	}
}

// Record implements audit.Sink. Every entry goes to the audit channel and
// flagged entries also raise a chain alert. It never blocks: a full queue
// drops the entry and reports ErrHubBusy.
func (h *Hub) Record(ctx context.Context, e *audit.Entry) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	if h.TenantClients(e.TenantID) == 0 {
		return nil
	}

	msgs := []*BroadcastMessage{{
		TenantID: e.TenantID,
		Channel:  wstypes.ChannelAudit,
		Message:  wstypes.NewMessage(wstypes.EventTypeAuditEntry, e),
	}}
	if e.Flagged {
		msgs = append(msgs, &BroadcastMessage{
			TenantID: e.TenantID,
			Channel:  wstypes.ChannelAlerts,
			Message: wstypes.NewMessage(wstypes.EventTypeChainAlert, wstypes.ChainAlertData{
				AuditID:        e.ID,
				Operation:      string(e.Operation),
				TripID:         e.TripID,
				VehicleID:      e.VehicleID,
				Classification: e.Classification,
				Message:        e.Message,
				Warnings:       e.Warnings,
			}),
		})
	}

	for _, m := range msgs {
		select {
		case h.broadcast <- m:
		default:
			return ErrHubBusy
		}
	}
	return nil
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.tenantID] == nil {
		h.clients[client.tenantID] = make(map[*Client]bool)
	}
	h.clients[client.tenantID][client] = true

	h.logger.Info("websocket client connected",
		zap.Int64("tenant_id", client.tenantID),
		zap.Int64("identity_id", client.identityID),
		zap.String("session_id", client.sessionID),
		zap.Int("total", h.totalClients()),
	)

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"identity_id":   client.identityID,
		"tenant_id":     client.tenantID,
		"roles":         client.roles,
		"subscriptions": client.Subscriptions(),
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.tenantID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}

	delete(clients, client)
	client.Close()
	if len(clients) == 0 {
		delete(h.clients, client.tenantID)
	}

	h.logger.Info("websocket client disconnected",
		zap.Int64("tenant_id", client.tenantID),
		zap.Int64("identity_id", client.identityID),
		zap.Int("total", h.totalClients()),
	)
}

// remove queues client for unregistration without blocking a stopped hub.
func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) BroadcastMessage(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[msg.TenantID] {
		if client.IsSubscribed(msg.Channel) {
			client.SendMessage(msg.Message)
		}
	}
}

func (h *Hub) TenantClients(tenantID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[tenantID])
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.stopOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	defer h.mu.Unlock()

	for tenantID, clients := range h.clients {
		for client := range clients {
			client.SendMessage(wstypes.NewMessage(wstypes.EventTypeDisconnected, map[string]interface{}{
				"reason": "server shutting down",
			}))
			client.Close()
		}
		delete(h.clients, tenantID)
	}
}
