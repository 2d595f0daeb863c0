package app

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/battsim/core/sim"
	"github.com/kilianp07/battsim/infra/ws"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestServiceWebSocket(t *testing.T) {
	cfg := testConfig()
	cfg.WebSocket = ws.Config{Addr: freeAddr(t), Path: "/live"}
	svc, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, svc.Hub())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	defer func() {
		cancel()
		wait(t, done)
		assert.NoError(t, svc.Close())
	}()

	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		conn, _, err = websocket.DefaultDialer.Dial("ws://"+cfg.WebSocket.Addr+"/live", nil)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	defer conn.Close()

	msg := `{"type":"command","request_id":"42","payload":{"action":"start_charging"}}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))

	// telemetry and session events arrive interleaved with the reply
	seen := map[string]bool{}
	deadline := time.Now().Add(3 * time.Second)
	for !(seen[ws.TypeCommandResult] && seen[ws.TypeBatteryState] && seen[ws.TypeSessionEvent]) {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var env ws.Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		seen[env.Type] = true
		if env.Type == ws.TypeCommandResult {
			var res ws.ResultPayload
			require.NoError(t, json.Unmarshal(env.Payload, &res))
			assert.Equal(t, "42", env.RequestID)
			assert.Equal(t, sim.ActionStartCharging, res.Action)
			assert.True(t, res.OK)
		}
	}
}

func TestServiceWebSocketDisabled(t *testing.T) {
	svc, err := New(testConfig())
	require.NoError(t, err)
	defer svc.Close()
	assert.Nil(t, svc.Hub())
}
