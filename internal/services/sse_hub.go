package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PublishOptions scopes a realtime message. With no user or group ids the
// message goes to every subscriber of the channel.
type PublishOptions struct {
	UserIDs  []uint64 `json:"user_ids,omitempty"`
	GroupIDs []uint64 `json:"group_ids,omitempty"`
}

// RealtimePublisher delivers realtime messages to connected clients
type RealtimePublisher interface {
	Publish(channel string, payload interface{}, opts PublishOptions) error
}

// RealtimeMessage is the data frame written to SSE clients
type RealtimeMessage struct {
	Channel string      `json:"channel"`
	Data    interface{} `json:"data"`
}

// SSEHub manages Server-Sent Events connections for realtime assignment updates
type SSEHub struct {
	// Map of subscription keys to channels
	// Key format: "user:<id>", "group:<id>" or "channel:<name>"
	clients map[string]map[chan []byte]bool
	mu      sync.RWMutex
	metrics *AssignMetrics
}

// NewSSEHub creates a new SSE hub
func NewSSEHub(metrics *AssignMetrics) *SSEHub {
	return &SSEHub{
		clients: make(map[string]map[chan []byte]bool),
		metrics: metrics,
	}
}

// UserKey is the subscription key of a user
func UserKey(userID uint64) string {
	return fmt.Sprintf("user:%d", userID)
}

// GroupKey is the subscription key of a group
func GroupKey(groupID uint64) string {
	return fmt.Sprintf("group:%d", groupID)
}

// ChannelKey is the subscription key of an unscoped channel
func ChannelKey(channel string) string {
	return "channel:" + channel
}

// RegisterClient registers a new SSE client under every given key
func (h *SSEHub) RegisterClient(keys ...string) chan []byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	clientChan := make(chan []byte, 10) // Buffer size 10

	for _, key := range keys {
		if h.clients[key] == nil {
			h.clients[key] = make(map[chan []byte]bool)
		}
		h.clients[key][clientChan] = true
	}

	logrus.Infof("SSE client registered for %v", keys)
	return clientChan
}

// UnregisterClient unregisters an SSE client from its keys and closes it
func (h *SSEHub) UnregisterClient(clientChan chan []byte, keys ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, key := range keys {
		if h.clients[key] == nil {
			continue
		}
		delete(h.clients[key], clientChan)

		// Clean up empty maps
		if len(h.clients[key]) == 0 {
			delete(h.clients, key)
		}
	}
	close(clientChan)

	logrus.Infof("SSE client unregistered for %v", keys)
}

// Publish sends a message on a channel to the scoped users and groups.
// A client subscribed through several keys receives the message once.
func (h *SSEHub) Publish(channel string, payload interface{}, opts PublishOptions) error {
	data, err := json.Marshal(RealtimeMessage{Channel: channel, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal realtime message: %w", err)
	}

	// Format as SSE message with event type
	message := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", channel, data))

	var keys []string
	if len(opts.UserIDs) == 0 && len(opts.GroupIDs) == 0 {
		keys = append(keys, ChannelKey(channel))
	}
	for _, id := range opts.UserIDs {
		keys = append(keys, UserKey(id))
	}
	for _, id := range opts.GroupIDs {
		keys = append(keys, GroupKey(id))
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := make(map[chan []byte]bool)
	for _, key := range keys {
		for clientChan := range h.clients[key] {
			if sent[clientChan] {
				continue
			}
			sent[clientChan] = true

			// Send non-blocking
			select {
			case clientChan <- message:
			default:
				// Channel is full, skip this client
				logrus.Warnf("SSE client channel full, skipping: %s", key)
			}
		}
	}

	h.metrics.realtime(channel)
	return nil
}

// GetClientCount returns the number of clients for a key
func (h *SSEHub) GetClientCount(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[key])
}

// SendHeartbeat sends a heartbeat message to keep a client alive
func (h *SSEHub) SendHeartbeat(clientChan chan []byte) {
	heartbeat := fmt.Sprintf(": heartbeat %s\n\n", time.Now().Format(time.RFC3339))
	select {
	case clientChan <- []byte(heartbeat):
	default:
		// Skip if channel is full
	}
}
