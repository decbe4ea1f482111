package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"post-or-nah/backend/internal/analyzer"
)

// VerdictEvent is the websocket payload for one finished review. It never
// carries the photo or the comment text.
type VerdictEvent struct {
	Type      string    `json:"type"`
	RequestID string    `json:"request_id"`
	Vibe      string    `json:"vibe"`
	Verdict   string    `json:"verdict"`
	Source    string    `json:"source"`
	Degraded  bool      `json:"degraded"`
	Timestamp time.Time `json:"timestamp"`
}

func newVerdictEvent(res analyzer.Result) VerdictEvent {
	return VerdictEvent{
		Type:      "verdict",
		RequestID: res.RequestID,
		Vibe:      string(res.Vibe),
		Verdict:   string(res.Verdict.Label),
		Source:    string(res.Verdict.Source),
		Degraded:  res.Verdict.Degraded(),
	}
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

const feedBuffer = 64

// VerdictNotifier keeps track of feed subscribers and broadcasts verdict
// events. Writes happen on a dispatch goroutine so a slow subscriber never
// holds up a review.
type VerdictNotifier struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	last    *VerdictEvent

	events    chan VerdictEvent
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewVerdictNotifier constructs a notifier and starts its dispatcher.
func NewVerdictNotifier() *VerdictNotifier {
	n := &VerdictNotifier{
		clients: make(map[*wsClient]struct{}),
		events:  make(chan VerdictEvent, feedBuffer),
		done:    make(chan struct{}),
	}
	n.wg.Add(1)
	go n.run()
	return n
}

// Register attaches a websocket connection and replays the latest verdict.
func (n *VerdictNotifier) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	last := n.last
	n.mu.Unlock()

	if last != nil {
		_ = client.writeJSON(*last)
	}
	return client
}

// Unregister removes the websocket client from the notifier and closes the socket.
func (n *VerdictNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Broadcast queues the event for every subscriber and returns at once. When
// the queue is full the event is dropped from the live feed but still
// becomes Last.
func (n *VerdictNotifier) Broadcast(event VerdictEvent) {
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	snapshot := event
	n.last = &snapshot
	n.mu.Unlock()

	select {
	case <-n.done:
		return
	default:
	}
	select {
	case n.events <- event:
	default:
		logrus.WithField("request_id", event.RequestID).Debug("verdict feed full; event dropped")
	}
}

// Close stops the dispatcher and disconnects every subscriber.
func (n *VerdictNotifier) Close() {
	n.closeOnce.Do(func() {
		close(n.done)
		n.wg.Wait()

		n.mu.Lock()
		clients := n.clients
		n.clients = make(map[*wsClient]struct{})
		n.mu.Unlock()
		for client := range clients {
			_ = client.conn.Close()
		}
	})
}

func (n *VerdictNotifier) run() {
	defer n.wg.Done()
	for {
		select {
		case <-n.done:
			return
		case event := <-n.events:
			n.deliver(event)
		}
	}
}

// deliver writes outside the registry lock and drops clients that fail.
func (n *VerdictNotifier) deliver(event VerdictEvent) {
	n.mu.Lock()
	clients := make([]*wsClient, 0, len(n.clients))
	for client := range n.clients {
		clients = append(clients, client)
	}
	n.mu.Unlock()

	for _, client := range clients {
		if err := client.writeJSON(event); err != nil {
			n.Unregister(client)
		}
	}
}

// Subscribers reports the number of connected feed clients.
func (n *VerdictNotifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.clients)
}

// Last returns a copy of the most recent event, or nil.
func (n *VerdictNotifier) Last() *VerdictEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.last == nil {
		return nil
	}
	copy := *n.last
	return &copy
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}
