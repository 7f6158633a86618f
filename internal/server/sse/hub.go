package sse

import (
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Client is a single connected SSE client.
type Client chan []byte

// Hub manages the set of active clients and broadcasts attendance events to
// them. Operator dashboards subscribe here to see marks as they land.
type Hub struct {
	// Registered clients
	clients map[Client]bool

	// Incoming messages from the application
	broadcast chan []byte

	// Registration requests from clients
	register chan Client

	// Unregistration requests from clients
	unregister chan Client

	// Guards concurrent access to the clients map
	mu sync.Mutex
}

// AttendanceEventData is the structure sent to SSE clients for every
// processed face, accepted or rejected.
type AttendanceEventData struct {
	PersonID    uint    `json:"person_id,omitempty"`
	PersonName  string  `json:"person_name,omitempty"`
	SessionName string  `json:"session_name"`
	Subject     string  `json:"subject"`
	Date        string  `json:"date,omitempty"`
	Time        string  `json:"time,omitempty"`
	Status      string  `json:"status,omitempty"`
	Distance    float64 `json:"distance,omitempty"`
	Outcome     string  `json:"outcome"` // "accepted" or the rejection reason
}

// NewHub creates a new hub instance.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 100),
		register:   make(chan Client),
		unregister: make(chan Client),
		clients:    make(map[Client]bool),
	}
}

// Run starts the hub's processing loop. Run it in its own goroutine.
func (h *Hub) Run() {
	log.Info("SSE hub started and running")

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()
			log.Infof("SSE client registered. Total clients: %d", clientCount)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client)
				log.Infof("SSE client unregistered. Total clients: %d", len(h.clients))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			log.Debugf("Broadcasting message to %d SSE clients", len(h.clients))

			for client := range h.clients {
				select {
				case client <- message:
				default:
					// Client channel full or closed
					log.Warn("SSE client channel full or closed, removing client")
					delete(h.clients, client)
					close(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register registers a new client with the hub.
func (h *Hub) Register(client Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client Client) {
	h.unregister <- client
}

// Broadcast queues a message for all registered clients. Drops the message
// rather than blocking when the queue is full.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		log.Warn("SSE broadcast channel full, message dropped")
	}
}

// BroadcastAttendanceEvent serializes and broadcasts one attendance outcome.
func (h *Hub) BroadcastAttendanceEvent(data AttendanceEventData) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Errorf("Failed to marshal attendance event for SSE: %v", err)
		return
	}
	h.Broadcast(jsonData)
}
