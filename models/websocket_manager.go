package models

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jupark12/go-content-queue/logger"
)

const broadcastBuffer = 64

// JobUpdate is the message pushed to websocket clients after a job mutates.
type JobUpdate struct {
	Type      string       `json:"type"`
	JobID     string       `json:"job_id"`
	Kind      JobKind      `json:"kind"`
	Status    JobStatus    `json:"status"`
	Progress  Progress     `json:"progress"`
	Results   []ItemResult `json:"results"`
	Error     string       `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// WebSocketManager handles WebSocket connections and broadcasts
type WebSocketManager struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.Mutex
	log        logger.Logger
}

// NewWebSocketManager creates a new WebSocket manager
func NewWebSocketManager(log logger.Logger) *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Start runs the hub loop until ctx is cancelled, then closes every client.
func (wsm *WebSocketManager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				close(wsm.done)
				wsm.closeAll()
				return
			case client := <-wsm.register:
				wsm.mu.Lock()
				wsm.clients[client] = true
				n := len(wsm.clients)
				wsm.mu.Unlock()
				wsm.log.Debug("WebSocket client connected", logger.Int("clients", n))
			case client := <-wsm.unregister:
				wsm.mu.Lock()
				if _, ok := wsm.clients[client]; ok {
					delete(wsm.clients, client)
					_ = client.Close()
				}
				n := len(wsm.clients)
				wsm.mu.Unlock()
				wsm.log.Debug("WebSocket client disconnected", logger.Int("clients", n))
			case message := <-wsm.broadcast:
				wsm.send(message)
			}
		}
	}()
}

func (wsm *WebSocketManager) send(message []byte) {
	wsm.mu.Lock()
	defer wsm.mu.Unlock()

	for client := range wsm.clients {
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			wsm.log.Warn("Error sending message to client", logger.Error(err))
			_ = client.Close()
			delete(wsm.clients, client)
		}
	}
}

func (wsm *WebSocketManager) closeAll() {
	wsm.mu.Lock()
	defer wsm.mu.Unlock()

	for client := range wsm.clients {
		_ = client.Close()
		delete(wsm.clients, client)
	}
}

// ClientCount returns the number of connected clients.
func (wsm *WebSocketManager) ClientCount() int {
	wsm.mu.Lock()
	defer wsm.mu.Unlock()
	return len(wsm.clients)
}

// BroadcastJobUpdate queues a job_update message for every connected client.
// The update is dropped if the hub is saturated.
func (wsm *WebSocketManager) BroadcastJobUpdate(job *Job) {
	update := JobUpdate{
		Type:      "job_update",
		JobID:     job.ID,
		Kind:      job.Kind,
		Status:    job.Status,
		Progress:  job.Progress,
		Results:   job.Results,
		Timestamp: job.UpdatedAt,
	}
	if job.Status == StatusFailed {
		update.Error = job.Error
	}

	data, err := json.Marshal(update)
	if err != nil {
		wsm.log.Error("Failed to marshal job update", logger.String("job_id", job.ID), logger.Error(err))
		return
	}

	select {
	case wsm.broadcast <- data:
	default:
		wsm.log.Warn("Dropping job update, broadcast buffer full", logger.String("job_id", job.ID))
	}
}

// RegisterClient registers a new WebSocket client
func (wsm *WebSocketManager) RegisterClient(conn *websocket.Conn) {
	select {
	case wsm.register <- conn:
	case <-wsm.done:
		_ = conn.Close()
	}
}

// UnregisterClient unregisters a WebSocket client
func (wsm *WebSocketManager) UnregisterClient(conn *websocket.Conn) {
	select {
	case wsm.unregister <- conn:
	case <-wsm.done:
	}
}
