package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
	onlineTTL  = 90 * time.Second

	broadcastChannel = "crm:ws:broadcast"
	onlineKeyPrefix  = "crm:online:"
	defaultMaxConns  = 10
)

// Message is the wire envelope sent to clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type envelope struct {
	UserID   string          `json:"user_id"`
	Instance string          `json:"instance"`
	Payload  json.RawMessage `json:"payload"`
}

// Client is one websocket connection. A user may hold several.
type Client struct {
	ID     string
	UserID string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub

	mu     sync.Mutex
	closed bool
}

// trySend queues data without blocking. It reports false when the client is
// closed or its buffer is full.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub tracks connected users and delivers pushes to all of their devices.
// With a Redis client it also relays pushes between server instances.
type Hub struct {
	MaxConnectionsPerUser int

	mu       sync.RWMutex
	clients  map[string]map[string]*Client
	rdb      *redis.Client
	instance string
	cancel   context.CancelFunc
}

func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		MaxConnectionsPerUser: defaultMaxConns,
		clients:               make(map[string]map[string]*Client),
		rdb:                   rdb,
		instance:              uuid.New().String(),
	}
}

func hubLog() *logrus.Entry { return logger.Component("realtime") }

// Serve registers conn for userID and runs its pumps until it closes.
func (h *Hub) Serve(conn *websocket.Conn, userID string) {
	c := &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		hub:    h,
	}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many connections"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	go c.writePump()
	c.readPump()
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	devices := h.clients[c.UserID]
	if devices == nil {
		devices = make(map[string]*Client)
		h.clients[c.UserID] = devices
	}
	if h.MaxConnectionsPerUser > 0 && len(devices) >= h.MaxConnectionsPerUser {
		h.mu.Unlock()
		hubLog().WithField("user_id", c.UserID).Warn("websocket rejected, connection limit reached")
		return false
	}
	devices[c.ID] = c
	count := len(devices)
	h.mu.Unlock()

	h.touchOnline(c.UserID)
	hubLog().WithFields(logrus.Fields{"user_id": c.UserID, "devices": count}).Debug("websocket connected")
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	last := false
	if devices, ok := h.clients[c.UserID]; ok {
		if _, found := devices[c.ID]; found {
			delete(devices, c.ID)
			if len(devices) == 0 {
				delete(h.clients, c.UserID)
				last = true
			}
		}
	}
	h.mu.Unlock()

	c.close()
	if last && h.rdb != nil {
		// another instance may have refreshed the key since
		err := releaseOnline.Run(context.Background(), h.rdb, []string{onlineKeyPrefix + c.UserID}, h.instance).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			hubLog().WithError(err).Debug("failed to clear online key")
		}
	}
}

var releaseOnline = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (h *Hub) touchOnline(userID string) {
	if h.rdb == nil {
		return
	}
	if err := h.rdb.Set(context.Background(), onlineKeyPrefix+userID, h.instance, onlineTTL).Err(); err != nil {
		hubLog().WithError(err).Debug("failed to refresh online key")
	}
}

// IsOnline reports whether the user has a connection here or, with Redis,
// on any instance.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	n := len(h.clients[userID])
	h.mu.RUnlock()
	if n > 0 {
		return true
	}
	if h.rdb == nil {
		return false
	}
	exists, err := h.rdb.Exists(context.Background(), onlineKeyPrefix+userID).Result()
	return err == nil && exists > 0
}

// Connections returns how many devices the user has connected to this instance.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Push sends a notification event to every device of the user and returns
// whether any local device accepted it.
func (h *Hub) Push(userID string, payload interface{}) bool {
	data, err := json.Marshal(Message{Type: "notification", Data: payload})
	if err != nil {
		hubLog().WithError(err).Error("failed to encode push")
		return false
	}
	delivered := h.sendLocal(userID, data)
	h.publish(userID, data)
	return delivered
}

// sendLocal never blocks; a device whose buffer is full is dropped.
func (h *Hub) sendLocal(userID string, data []byte) bool {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[userID]))
	for _, c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	sent := false
	for _, c := range targets {
		if c.trySend(data) {
			sent = true
		} else {
			hubLog().WithFields(logrus.Fields{"user_id": userID, "client": c.ID}).Warn("send buffer full, dropping connection")
			go h.unregister(c)
		}
	}
	return sent
}

func (h *Hub) publish(userID string, data []byte) {
	if h.rdb == nil {
		return
	}
	msg, err := json.Marshal(envelope{UserID: userID, Instance: h.instance, Payload: data})
	if err != nil {
		return
	}
	if err := h.rdb.Publish(context.Background(), broadcastChannel, msg).Err(); err != nil {
		hubLog().WithError(err).Warn("failed to relay push")
	}
}

// StartRelay subscribes to pushes published by other instances. It is a
// no-op without Redis.
func (h *Hub) StartRelay(ctx context.Context) {
	if h.rdb == nil {
		return
	}
	ctx, h.cancel = context.WithCancel(ctx)
	sub := h.rdb.Subscribe(ctx, broadcastChannel)
	// wait for the subscription so pushes published right after are not lost
	if _, err := sub.Receive(ctx); err != nil {
		hubLog().WithError(err).Error("relay subscription failed")
		_ = sub.Close()
		return
	}
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				h.handleRelay([]byte(m.Payload))
			}
		}
	}()
}

func (h *Hub) handleRelay(raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		hubLog().WithError(err).Warn("invalid relay message")
		return
	}
	if env.Instance == h.instance {
		return
	}
	h.sendLocal(env.UserID, env.Payload)
}

// Close stops the relay and disconnects every client.
func (h *Hub) Close() {
	if h.cancel != nil {
		h.cancel()
	}
	h.mu.RLock()
	var all []*Client
	for _, devices := range h.clients {
		for _, c := range devices {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.unregister(c)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.hub.touchOnline(c.UserID)
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				hubLog().WithError(err).WithField("user_id", c.UserID).Debug("websocket closed unexpectedly")
			}
			return
		}
		var in Message
		if err := json.Unmarshal(raw, &in); err != nil {
			continue
		}
		if in.Type == "heartbeat" {
			c.hub.touchOnline(c.UserID)
			if data, err := json.Marshal(Message{Type: "heartbeat_ack"}); err == nil {
				c.trySend(data)
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
