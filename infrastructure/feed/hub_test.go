package feed

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-maker-sim/market"
	"market-maker-sim/sim"
)

func dial(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubBroadcastsSteps(t *testing.T) {
	h := NewHub(0, nil)
	conn := dial(t, h)
	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 5*time.Millisecond)

	h.OnStep(sim.StepResult{
		Step:    3,
		VaR:     1.5,
		Records: []sim.StepRecord{{Symbol: "XYZ", Mid: 100, Regime: market.RegimeStress}},
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, 3.0, got["step"])
	recs := got["records"].([]interface{})
	require.Len(t, recs, 1)
	assert.Equal(t, "STRESS", recs[0].(map[string]interface{})["regime"])
}

func TestHubRemovesClosedClient(t *testing.T) {
	h := NewHub(0, nil)
	conn := dial(t, h)
	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return h.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHubDropsSlowClient(t *testing.T) {
	h := NewHub(1, nil)
	c := &client{send: make(chan []byte, 1)}
	h.clients[c] = struct{}{}

	h.broadcast([]byte("a"))
	assert.Equal(t, 1, h.Clients())
	h.broadcast([]byte("b"))
	assert.Equal(t, 0, h.Clients())

	_, open := <-c.send
	assert.True(t, open, "buffered message still readable")
	_, open = <-c.send
	assert.False(t, open, "send closed after drop")
}

func TestHubWithoutClientsSkipsEncoding(t *testing.T) {
	h := NewHub(0, nil)
	h.OnStep(sim.StepResult{Step: 1})
	h.Close()
	assert.Equal(t, 0, h.Clients())
}
