package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveHub(t *testing.T, h *Hub) string {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Serve(conn, r.URL.Query().Get("user"))
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, user string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url+"?user="+user, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var m Message
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestHub_PushToAllDevices(t *testing.T) {
	h := NewHub(nil)
	url := serveHub(t, h)

	phone := dial(t, url, "u1")
	laptop := dial(t, url, "u1")
	require.Eventually(t, func() bool { return h.Connections("u1") == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, h.IsOnline("u1"))
	assert.False(t, h.IsOnline("u2"))

	assert.True(t, h.Push("u1", map[string]string{"title": "New lead"}))
	for _, c := range []*websocket.Conn{phone, laptop} {
		m := readMessage(t, c)
		assert.Equal(t, "notification", m.Type)
		assert.Equal(t, map[string]interface{}{"title": "New lead"}, m.Data)
	}

	assert.False(t, h.Push("u2", "nobody home"))
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	h := NewHub(nil)
	url := serveHub(t, h)

	conn := dial(t, url, "u1")
	require.Eventually(t, func() bool { return h.IsOnline("u1") }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return !h.IsOnline("u1") }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_Heartbeat(t *testing.T) {
	h := NewHub(nil)
	conn := dial(t, serveHub(t, h), "u1")

	require.NoError(t, conn.WriteJSON(Message{Type: "heartbeat"}))
	assert.Equal(t, "heartbeat_ack", readMessage(t, conn).Type)
}

func TestHub_ConnectionLimit(t *testing.T) {
	h := NewHub(nil)
	h.MaxConnectionsPerUser = 1
	url := serveHub(t, h)

	dial(t, url, "u1")
	require.Eventually(t, func() bool { return h.Connections("u1") == 1 }, 2*time.Second, 10*time.Millisecond)

	second := dial(t, url, "u1")
	require.NoError(t, second.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := second.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
	assert.Equal(t, 1, h.Connections("u1"))
}

func TestHub_RelayAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = c.Close() })
		return c
	}
	a := NewHub(newClient())
	b := NewHub(newClient())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.StartRelay(ctx)
	defer b.Close()

	conn := dial(t, serveHub(t, b), "u7")
	require.Eventually(t, func() bool { return b.Connections("u7") == 1 }, 2*time.Second, 10*time.Millisecond)

	// a sees the user through the shared online key
	assert.True(t, a.IsOnline("u7"))
	assert.False(t, a.Push("u7", "via redis"))

	m := readMessage(t, conn)
	assert.Equal(t, "notification", m.Type)
	assert.Equal(t, "via redis", m.Data)
}

func TestHub_OnlineKeyKeptForOtherInstance(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = c.Close() })
		return c
	}
	a := NewHub(newClient())
	b := NewHub(newClient())
	c := NewHub(newClient())

	onA := dial(t, serveHub(t, a), "u3")
	require.Eventually(t, func() bool { return a.Connections("u3") == 1 }, 2*time.Second, 10*time.Millisecond)
	onB := dial(t, serveHub(t, b), "u3")
	require.Eventually(t, func() bool { return b.Connections("u3") == 1 }, 2*time.Second, 10*time.Millisecond)

	owner, err := mr.Get(onlineKeyPrefix + "u3")
	require.NoError(t, err)
	assert.Equal(t, b.instance, owner)

	// a's last device leaves but b still serves the user
	require.NoError(t, onA.Close())
	require.Eventually(t, func() bool { return a.Connections("u3") == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, mr.Exists(onlineKeyPrefix+"u3"))
	assert.True(t, c.IsOnline("u3"))

	require.NoError(t, onB.Close())
	require.Eventually(t, func() bool { return !mr.Exists(onlineKeyPrefix + "u3") }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, c.IsOnline("u3"))
}
