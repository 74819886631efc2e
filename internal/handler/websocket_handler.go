// internal/handler/websocket_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pos-printer/internal/service"
	"pos-printer/internal/utils"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// WebSocketHandler streams printer session events to browsers
type WebSocketHandler struct {
	upgrader       websocket.Upgrader
	connections    *ConnectionManager
	printerService *service.PrinterService
	allowedOrigins []string
	logger         *utils.ServiceLogger
	security       *utils.SecurityLogger
}

// NewWebSocketHandler creates a new WebSocket handler and starts forwarding
// events from bus. An empty allowedOrigins list or "*" accepts any origin.
func NewWebSocketHandler(
	printerService *service.PrinterService,
	bus *EventBus,
	allowedOrigins []string,
	logger *zap.Logger,
) *WebSocketHandler {
	handler := &WebSocketHandler{
		connections:    NewConnectionManager(),
		printerService: printerService,
		allowedOrigins: allowedOrigins,
		logger:         utils.NewServiceLogger(logger, "websocket-handler"),
		security:       utils.NewSecurityLogger(logger),
	}
	handler.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     handler.checkOrigin,
	}

	go handler.forward(bus.Subscribe())

	return handler
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/sessions/:id", h.HandleSessionConnection)
	router.GET("/events", h.HandleEventConnection)
	router.GET("/stats", h.Stats)
}

// HandleSessionConnection streams the events of one printer session
func (h *WebSocketHandler) HandleSessionConnection(c *gin.Context) {
	sessionID := c.Param("id")
	info, err := h.printerService.GetSession(sessionID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Printer session not found", err)
		return
	}

	client := h.accept(c, ClientTypeSession, sessionID)
	if client == nil {
		return
	}

	h.sendMessage(client, &WebSocketMessage{
		Type:      "session_status",
		Data:      info,
		Timestamp: time.Now(),
	})
}

// HandleEventConnection streams the events of every session
func (h *WebSocketHandler) HandleEventConnection(c *gin.Context) {
	h.accept(c, ClientTypeEvents, "")
}

// accept upgrades the request and starts the client pumps
func (h *WebSocketHandler) accept(c *gin.Context, clientType, sessionID string) *Client {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade WebSocket connection", zap.Error(err))
		return nil
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 256),
		Type:        clientType,
		SessionID:   sessionID,
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	h.connections.Register(client)
	h.logger.Info("WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("type", clientType),
		zap.String("session_id", sessionID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
	return client
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients) and origins on the allow-list
func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	h.security.LogRejectedOrigin(origin, r.RemoteAddr)
	return false
}

// handleClientRead handles reading messages from WebSocket client
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
		h.logger.Debug("WebSocket client disconnected", zap.String("client_id", client.ID))
	}()

	client.Connection.SetReadDeadline(time.Now().Add(pongWait))
	client.Connection.SetPongHandler(func(string) error {
		return client.Connection.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			return
		}

		var message WebSocketMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.sendError(client, "invalid message")
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

// handleClientWrite handles writing messages to WebSocket client
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Warn("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage handles incoming client messages
func (h *WebSocketHandler) handleClientMessage(client *Client, message *WebSocketMessage) {
	switch message.Type {
	case "ping":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "pong",
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	case "status":
		if client.SessionID == "" {
			h.sendMessage(client, &WebSocketMessage{
				Type:      "sessions",
				Data:      h.printerService.ListSessions(),
				Timestamp: time.Now(),
				RequestID: message.RequestID,
			})
			return
		}
		info, err := h.printerService.GetSession(client.SessionID)
		if errors.Is(err, service.ErrSessionNotFound) {
			h.sendError(client, "session closed")
			return
		}
		h.sendMessage(client, &WebSocketMessage{
			Type:      "session_status",
			Data:      info,
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	default:
		h.sendError(client, "unknown message type: "+message.Type)
	}
}

// forward relays bus events to interested clients until the bus stops
func (h *WebSocketHandler) forward(events <-chan service.SessionEvent) {
	for event := range events {
		h.BroadcastSessionEvent(event)
	}
}

// BroadcastSessionEvent sends event to the session's clients and to every
// events client
func (h *WebSocketHandler) BroadcastSessionEvent(event service.SessionEvent) {
	message := &WebSocketMessage{
		Type:      event.Type,
		Data:      event,
		Timestamp: event.Timestamp,
	}

	clients := append(h.connections.GetSessionClients(event.SessionID), h.connections.GetEventClients()...)
	h.broadcastToClients(clients, message)
}

// sendMessage sends a message to a client
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	if !h.connections.Deliver(client, messageBytes) {
		h.logger.Warn("Client gone or send channel full, dropping message",
			zap.String("client_id", client.ID),
		)
	}
}

// sendError sends an error message to a client
func (h *WebSocketHandler) sendError(client *Client, errorMsg string) {
	h.sendMessage(client, &WebSocketMessage{
		Type: "error",
		Data: map[string]interface{}{
			"error": errorMsg,
		},
		Timestamp: time.Now(),
	})
}

// broadcastToClients broadcasts message to specified clients
func (h *WebSocketHandler) broadcastToClients(clients []*Client, message *WebSocketMessage) {
	if len(clients) == 0 {
		return
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	for _, client := range clients {
		if !h.connections.Deliver(client, messageBytes) {
			h.logger.Warn("Client send channel full during broadcast",
				zap.String("client_id", client.ID),
			)
		}
	}
}

// GetConnectionStats returns connection statistics
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}

// Stats reports connected websocket clients by type
func (h *WebSocketHandler) Stats(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "WebSocket statistics retrieved successfully", h.GetConnectionStats())
}
