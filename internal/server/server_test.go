package server

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elastiflow/searchflow"
	"github.com/elastiflow/searchflow/gateway"
)

func newTestHandler(planetOpts ...gateway.MemoryOption) *Handler {
	fixtures := gateway.DefaultFixtures()
	return &Handler{
		Characters: gateway.NewMemory(gateway.Character, fixtures.Characters),
		Planets:    gateway.NewMemory(gateway.Planet, fixtures.Planets, planetOpts...),
		Params:     searchflow.Params{Debounce: 20 * time.Millisecond},
	}
}

func dial(t *testing.T, h *Handler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(NewMux(h))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil skips messages of other types, such as busy updates.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) ServerMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var msg ServerMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == msgType {
			return msg
		}
	}
}

func names(records []gateway.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}

func TestHandler_Search(t *testing.T) {
	conn := dial(t, newTestHandler())

	for _, term := range []string{"s", "sk", "sky"} {
		require.NoError(t, conn.WriteJSON(ClientMessage{Type: TypeInput, Term: term}))
	}
	msg := readUntil(t, conn, TypeResults)
	assert.ElementsMatch(t, []string{"Anakin Skywalker", "Luke Skywalker"}, names(msg.Records))
}

func TestHandler_Load(t *testing.T) {
	h := newTestHandler()
	conn := dial(t, h)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: TypeLoad}))
	msg := readUntil(t, conn, TypeLoad)

	fixtures := gateway.DefaultFixtures()
	require.Len(t, msg.Records, len(fixtures.Characters)+len(fixtures.Planets))
	for i, r := range msg.Records {
		if i < len(fixtures.Characters) {
			assert.Equal(t, gateway.Character, r.Kind)
		} else {
			assert.Equal(t, gateway.Planet, r.Kind)
		}
	}
}

func TestHandler_LoadFailure(t *testing.T) {
	conn := dial(t, newTestHandler(gateway.WithFailure(errors.New("planets offline"))))

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: TypeLoad}))
	msg := readUntil(t, conn, TypeError)
	assert.Contains(t, msg.Error, "planets offline")
}

func TestHandler_Busy(t *testing.T) {
	conn := dial(t, newTestHandler())

	msg := readUntil(t, conn, TypeBusy)
	require.NotNil(t, msg.Busy)
	assert.False(t, *msg.Busy)
}

func TestHandler_BadMessages(t *testing.T) {
	conn := dial(t, newTestHandler())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	assert.Equal(t, "malformed message", readUntil(t, conn, TypeError).Error)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "shout"}))
	assert.Contains(t, readUntil(t, conn, TypeError).Error, "shout")
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ListenAndServe(ctx, "127.0.0.1:0", newTestHandler()) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
}
