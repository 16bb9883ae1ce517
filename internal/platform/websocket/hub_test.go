package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalguard/careboard/internal/platform/auth"
)

type nopConn struct{}

func (nopConn) ReadMessage() (int, []byte, error) { return 0, nil, nil }
func (nopConn) WriteMessage(int, []byte) error    { return nil }
func (nopConn) Close() error                      { return nil }

var fixed = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestHub() *Hub {
	return NewHub(zerolog.Nop()).WithClock(func() time.Time { return fixed })
}

func connect(h *Hub, role string) *Client {
	ctx := auth.WithPrincipal(context.Background(), auth.Principal{UID: "u-" + role, Role: role})
	c := NewClient(ctx, nopConn{})
	h.Register(c)
	return c
}

func next(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case frame := <-c.Send():
		var m Message
		require.NoError(t, json.Unmarshal(frame, &m))
		return m
	default:
		t.Fatal("expected a queued frame")
	}
	return Message{}
}

func TestKnownTopic(t *testing.T) {
	assert.True(t, KnownTopic(context.Background(), "dashboard"))
	assert.True(t, KnownTopic(context.Background(), "team"))
	assert.True(t, KnownTopic(context.Background(), "patient/3f2a"))
	assert.False(t, KnownTopic(context.Background(), "patient/"))
	assert.False(t, KnownTopic(context.Background(), "audit"))
}

func TestPublish_ReachesOnlySubscribers(t *testing.T) {
	h := newTestHub()
	a := connect(h, auth.RoleDoctor)
	b := connect(h, auth.RoleNurse)

	assert.Empty(t, h.Subscribe(a, []string{"patient/p1"}))
	assert.Empty(t, h.Subscribe(b, []string{"dashboard"}))

	h.Publish("patient/p1", map[string]string{"type": "vitals.recorded"})

	m := next(t, a)
	assert.Equal(t, TypeEvent, m.Type)
	assert.Equal(t, "patient/p1", m.Topic)
	assert.Equal(t, fixed, m.Timestamp)
	assert.JSONEq(t, `{"type":"vitals.recorded"}`, string(m.Data))
	assert.Len(t, b.Send(), 0)
}

func TestSubscribe_AuthorizerRejects(t *testing.T) {
	h := newTestHub().WithAuthorizer(func(ctx context.Context, topic string) bool {
		return auth.RoleFromContext(ctx) != auth.RolePatient || strings.HasPrefix(topic, "patient/")
	})
	c := connect(h, auth.RolePatient)

	h.Handle(c, ClientMessage{Action: "subscribe", Topics: []string{"patient/p1", "team", "bogus"}})

	ok := next(t, c)
	assert.Equal(t, TypeSubscribed, ok.Type)
	assert.JSONEq(t, `["patient/p1"]`, string(ok.Data))

	rejected := next(t, c)
	assert.Equal(t, TypeRejected, rejected.Type)
	assert.JSONEq(t, `["team","bogus"]`, string(rejected.Data))

	assert.Equal(t, 1, h.SubscriberCount("patient/p1"))
	assert.Equal(t, 0, h.SubscriberCount("team"))
}

func TestUnsubscribeAndUnregister(t *testing.T) {
	h := newTestHub()
	c := connect(h, auth.RoleNurse)
	h.Subscribe(c, []string{"team", "dashboard"})
	require.Equal(t, 1, h.SubscriberCount("team"))

	h.Handle(c, ClientMessage{Action: "unsubscribe", Topics: []string{"team"}})
	assert.Equal(t, 0, h.SubscriberCount("team"))
	assert.Equal(t, 1, h.SubscriberCount("dashboard"))

	h.Unregister(c)
	assert.Equal(t, 0, h.ClientCount())
	assert.Equal(t, 0, h.SubscriberCount("dashboard"))
	_, open := <-c.Send()
	assert.False(t, open)

	// second unregister is a no-op
	h.Unregister(c)
}

func TestPublish_FullQueueDrops(t *testing.T) {
	h := newTestHub()
	c := connect(h, auth.RoleDoctor)
	h.Subscribe(c, []string{"dashboard"})

	for i := 0; i < sendBuffer+5; i++ {
		h.Publish("dashboard", i)
	}
	assert.Len(t, c.Send(), sendBuffer)
}

func TestPublish_UnencodableValue(t *testing.T) {
	h := newTestHub()
	c := connect(h, auth.RoleDoctor)
	h.Subscribe(c, []string{"dashboard"})

	h.Publish("dashboard", make(chan int))
	assert.Len(t, c.Send(), 0)
}

func TestHandler_RequiresPrincipal(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	err := NewHandler(newTestHub()).Connect(c)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestHandler_LiveRoundTrip(t *testing.T) {
	hub := newTestHub()
	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := auth.Principal{UID: "DOC-0001", Role: auth.RoleDoctor}
			c.SetRequest(c.Request().WithContext(auth.WithPrincipal(c.Request().Context(), p)))
			return next(c)
		}
	})
	NewHandler(hub).RegisterRoutes(e.Group(""))
	srv := httptest.NewServer(e)
	defer srv.Close()

	ws, _, err := gorillawebsocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(ClientMessage{Action: "subscribe", Topics: []string{"dashboard"}}))
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))

	var ack Message
	require.NoError(t, ws.ReadJSON(&ack))
	assert.Equal(t, TypeSubscribed, ack.Type)

	hub.Publish("dashboard", map[string]int{"critical": 1})
	var m Message
	require.NoError(t, ws.ReadJSON(&m))
	assert.Equal(t, "dashboard", m.Topic)
	assert.JSONEq(t, `{"critical":1}`, string(m.Data))
}
