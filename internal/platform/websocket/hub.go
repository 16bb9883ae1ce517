// Package websocket pushes live ward updates to connected dashboards. Clients
// subscribe to topics (a single patient, the ward dashboard, the staff team
// channel) and receive every payload published on them.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/vitalguard/careboard/internal/platform/auth"
)

const (
	TypeEvent      = "event"
	TypeSubscribed = "subscribed"
	TypeRejected   = "rejected"
)

const sendBuffer = 64

// Message is the envelope written to clients.
type Message struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ClientMessage is what clients send to change their subscriptions.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// TopicAuthorizer decides whether the principal on ctx may follow topic.
type TopicAuthorizer func(ctx context.Context, topic string) bool

// KnownTopic accepts the topic shapes the server publishes on.
func KnownTopic(_ context.Context, topic string) bool {
	switch {
	case topic == "dashboard", topic == "team":
		return true
	case strings.HasPrefix(topic, "patient/"):
		return len(topic) > len("patient/")
	}
	return false
}

// Conn is the part of a websocket connection the hub writes through.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one live connection.
type Client struct {
	ID     string
	ctx    context.Context
	send   chan []byte
	topics map[string]struct{}
	conn   Conn
}

// NewClient wraps conn; ctx carries the principal used for topic checks.
func NewClient(ctx context.Context, conn Conn) *Client {
	return &Client{
		ID:     uuid.New().String(),
		ctx:    ctx,
		send:   make(chan []byte, sendBuffer),
		topics: make(map[string]struct{}),
		conn:   conn,
	}
}

// Send exposes queued frames for the write pump and tests.
func (c *Client) Send() <-chan []byte { return c.send }

type Hub struct {
	mu        sync.RWMutex
	subs      map[string]map[*Client]struct{}
	clients   map[*Client]struct{}
	authorize TopicAuthorizer
	logger    zerolog.Logger
	now       func() time.Time
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subs:      make(map[string]map[*Client]struct{}),
		clients:   make(map[*Client]struct{}),
		authorize: KnownTopic,
		logger:    logger.With().Str("component", "live").Logger(),
		now:       time.Now,
	}
}

// WithAuthorizer replaces the topic check. Unknown topic shapes are always refused.
func (h *Hub) WithAuthorizer(fn TopicAuthorizer) *Hub {
	h.authorize = func(ctx context.Context, topic string) bool {
		return KnownTopic(ctx, topic) && fn(ctx, topic)
	}
	return h
}

func (h *Hub) WithClock(now func() time.Time) *Hub {
	h.now = now
	return h
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister drops every subscription of c and closes its queue.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for topic := range c.topics {
		h.removeLocked(c, topic)
	}
	close(c.send)
}

func (h *Hub) removeLocked(c *Client, topic string) {
	set := h.subs[topic]
	delete(set, c)
	if len(set) == 0 {
		delete(h.subs, topic)
	}
	delete(c.topics, topic)
}

// Subscribe adds the topics c is allowed to follow and returns the rejected ones.
func (h *Hub) Subscribe(c *Client, topics []string) (rejected []string) {
	var allowed []string
	for _, t := range topics {
		if h.authorize(c.ctx, t) {
			allowed = append(allowed, t)
		} else {
			rejected = append(rejected, t)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return append(rejected, allowed...)
	}
	for _, t := range allowed {
		if h.subs[t] == nil {
			h.subs[t] = make(map[*Client]struct{})
		}
		h.subs[t][c] = struct{}{}
		c.topics[t] = struct{}{}
	}
	return rejected
}

func (h *Hub) Unsubscribe(c *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range topics {
		h.removeLocked(c, t)
	}
}

// Handle applies a client message and acknowledges it on the client queue.
func (h *Hub) Handle(c *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		rejected := h.Subscribe(c, msg.Topics)
		accepted := make([]string, 0, len(msg.Topics))
		for _, t := range msg.Topics {
			if !contains(rejected, t) {
				accepted = append(accepted, t)
			}
		}
		if len(accepted) > 0 {
			h.reply(c, TypeSubscribed, accepted)
		}
		if len(rejected) > 0 {
			h.reply(c, TypeRejected, rejected)
		}
	case "unsubscribe":
		h.Unsubscribe(c, msg.Topics)
	default:
		h.logger.Debug().Str("client", c.ID).Str("action", msg.Action).Msg("ignoring client message")
	}
}

func (h *Hub) reply(c *Client, typ string, topics []string) {
	data, _ := json.Marshal(topics)
	frame, _ := json.Marshal(Message{Type: typ, Data: data, Timestamp: h.now().UTC()})
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; ok {
		h.enqueue(c, frame)
	}
}

// Publish encodes v and fans it out to the subscribers of topic.
func (h *Hub) Publish(topic string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error().Err(err).Str("topic", topic).Msg("encode live event")
		return
	}
	frame, err := json.Marshal(Message{Type: TypeEvent, Topic: topic, Data: data, Timestamp: h.now().UTC()})
	if err != nil {
		h.logger.Error().Err(err).Str("topic", topic).Msg("encode live envelope")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subs[topic] {
		h.enqueue(c, frame)
	}
}

// enqueue never blocks; a slow client loses frames rather than stalling publishers.
func (h *Hub) enqueue(c *Client, frame []byte) {
	select {
	case c.send <- frame:
	default:
		h.logger.Warn().Str("client", c.ID).Msg("client queue full, dropping frame")
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades authenticated requests onto the hub.
type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/ws", h.Connect)
}

func (h *Handler) Connect(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	// The request context ends with this handler; the pumps outlive it.
	client := NewClient(auth.WithPrincipal(context.Background(), p), ws)
	h.hub.Register(client)
	h.hub.logger.Debug().Str("client", client.ID).Str("uid", p.UID).Msg("live client connected")

	go h.writePump(client)
	go h.readPump(client)
	return nil
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		h.hub.Handle(c, msg)
	}
}

func (h *Handler) writePump(c *Client) {
	defer c.conn.Close()
	for frame := range c.send {
		if err := c.conn.WriteMessage(gorillawebsocket.TextMessage, frame); err != nil {
			return
		}
	}
}
