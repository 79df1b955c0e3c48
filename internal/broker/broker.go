// Package broker provides an in-memory pub/sub hub scoped by room name.
// Rooms are keyed by session id; each connected websocket is one Client.
package broker

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// DefaultQueueSize is the number of undelivered frames a client may buffer
// before further frames to it are dropped.
const DefaultQueueSize = 64

// Message is the wire frame delivered to clients.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Client is one subscriber connection. Frames published to any room the client
// has joined are queued on Send.
type Client struct {
	ID     string
	UserID string

	send  chan []byte
	rooms map[string]struct{}
}

// Send returns the client's outbound queue. It is closed by Unregister.
func (c *Client) Send() <-chan []byte {
	return c.send
}

// Broker is a room-scoped pub/sub hub. Delivery is best effort and at most once:
// a client whose queue is full misses the frame, and clients that join a room
// later never see earlier frames.
type Broker struct {
	mu        sync.RWMutex
	rooms     map[string]map[*Client]struct{}
	clients   map[*Client]struct{}
	queueSize int
}

// New creates a ready-to-use Broker.
func New() *Broker {
	return &Broker{
		rooms:     make(map[string]map[*Client]struct{}),
		clients:   make(map[*Client]struct{}),
		queueSize: DefaultQueueSize,
	}
}

// Register creates a client for an authenticated user. The client is not in any room yet.
func (b *Broker) Register(userID string) *Client {
	c := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		send:   make(chan []byte, b.queueSize),
		rooms:  make(map[string]struct{}),
	}
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()
	return c
}

// Unregister removes the client from every room and closes its queue.
// Calling it more than once is a no-op.
func (b *Broker) Unregister(c *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.clients[c]; !ok {
		return
	}
	for room := range c.rooms {
		b.leaveLocked(room, c)
	}
	delete(b.clients, c)
	close(c.send)
}

// Join subscribes the client to a room. Joining a room twice is a no-op.
// It reports whether the membership is new.
func (b *Broker) Join(room string, c *Client) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.clients[c]; !ok {
		return false
	}
	if _, ok := c.rooms[room]; ok {
		return false
	}
	if b.rooms[room] == nil {
		b.rooms[room] = make(map[*Client]struct{})
	}
	b.rooms[room][c] = struct{}{}
	c.rooms[room] = struct{}{}
	return true
}

// Leave unsubscribes the client from a room. Leaving a room never joined is a no-op.
// It reports whether a membership was removed.
func (b *Broker) Leave(room string, c *Client) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := c.rooms[room]; !ok {
		return false
	}
	b.leaveLocked(room, c)
	return true
}

func (b *Broker) leaveLocked(room string, c *Client) {
	delete(c.rooms, room)
	if members, ok := b.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(b.rooms, room)
		}
	}
}

// IsMember reports whether the client is currently subscribed to room.
func (b *Broker) IsMember(room string, c *Client) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.rooms[room][c]
	return ok
}

// RoomSize returns the number of clients subscribed to room.
func (b *Broker) RoomSize(room string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[room])
}

// Publish delivers an event to every client in the room.
func (b *Broker) Publish(room, event string, data any) {
	b.PublishExcept(room, event, data, nil)
}

// PublishExcept delivers an event to every client in the room other than except.
// Sends never block; a full client queue drops the frame for that client only.
func (b *Broker) PublishExcept(room, event string, data any, except *Client) {
	frame, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		slog.Error("failed to encode broadcast", slog.String("event", event), slog.String("room", room), slog.String("error", err.Error()))
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for c := range b.rooms[room] {
		if c == except {
			continue
		}
		select {
		case c.send <- frame:
			delivered++
		default:
			slog.Debug("dropping frame for slow client",
				slog.String("event", event),
				slog.String("room", room),
				slog.String("client_id", c.ID))
		}
	}
	slog.Debug("broadcast", slog.String("event", event), slog.String("room", room), slog.Int("delivered", delivered))
}

// SendTo queues an event for a single registered client, for example a reply
// to a malformed frame. It reports whether the frame was queued.
func (b *Broker) SendTo(c *Client, event string, data any) bool {
	frame, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		slog.Error("failed to encode direct message", slog.String("event", event), slog.String("error", err.Error()))
		return false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, ok := b.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}
