package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type hubServer struct {
	hub    *Hub
	server *httptest.Server
	wg     sync.WaitGroup
}

// newHubServer serves the hub with the caller identity taken from the query string.
func newHubServer(t *testing.T) *hubServer {
	t.Helper()

	hs := &hubServer{hub: NewHub(zerolog.Nop())}
	hs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hs.wg.Add(1)
		defer hs.wg.Done()

		userID := uuid.MustParse(r.URL.Query().Get("user"))
		_ = hs.hub.Serve(w, r, userID, r.URL.Query().Get("admin") == "true")
	}))
	return hs
}

func (hs *hubServer) dial(t *testing.T, userID uuid.UUID, admin bool) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(hs.server.URL, "http") + "?user=" + userID.String()
	if admin {
		url += "&admin=true"
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func (hs *hubServer) close() {
	hs.hub.Close()
	hs.wg.Wait()
	hs.server.Close()
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_RoutesToOwnerAndAdmins(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hs := newHubServer(t)
	defer hs.close()

	order := testOrder()
	owner := hs.dial(t, order.UserID, false)
	defer owner.Close()
	admin := hs.dial(t, uuid.New(), true)
	defer admin.Close()
	stranger := hs.dial(t, uuid.New(), false)
	defer stranger.Close()

	assert.Eventually(t, func() bool { return hs.hub.ClientCount() == 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hs.hub.NotifyOrderShipped(context.Background(), order))

	for _, conn := range []*websocket.Conn{owner, admin} {
		msg := readMessage(t, conn)
		assert.Equal(t, EventOrderShipped, msg.Event)
		assert.Equal(t, order.ID, msg.OrderID)
	}

	require.NoError(t, stranger.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := stranger.ReadMessage()
	assert.Error(t, err)
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hs := newHubServer(t)
	defer hs.close()

	conn := hs.dial(t, uuid.New(), false)
	assert.Eventually(t, func() bool { return hs.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hs.hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hs := newHubServer(t)

	conn := hs.dial(t, uuid.New(), true)
	defer conn.Close()
	assert.Eventually(t, func() bool { return hs.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hs.close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, hs.hub.ClientCount())
}
