package server

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/memoant/internal/queue"
)

const subscriberBuffer = 16

// Hub fans finished jobs out to websocket subscribers
type Hub struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
	log  *logrus.Logger
}

// NewHub creates an empty hub
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{subs: make(map[chan []byte]struct{}), log: log}
}

// Subscribe registers a receiver. The returned func unsubscribes.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish sends job to every subscriber. Slow subscribers miss events
// rather than block the workers.
func (h *Hub) Publish(job *queue.Job) {
	msg, err := json.Marshal(job)
	if err != nil {
		h.log.WithError(err).Error("failed to encode job event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
			h.log.Debug("dropping event for slow subscriber")
		}
	}
}

// Handle streams job events over a websocket until the client goes away
func (h *Hub) Handle(c *websocket.Conn) {
	defer c.Close()

	events, unsubscribe := h.Subscribe()
	defer unsubscribe()
	h.log.WithField("remote", c.RemoteAddr().String()).Debug("event subscriber connected")

	// Reads only detect the close; clients have nothing to send.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.WithError(err).Debug("websocket write failed")
				return
			}
		}
	}
}
