package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tieubaoca/tables-retriever/types"
)

type slowRunner struct {
	delay time.Duration
}

func (r slowRunner) Run(ctx context.Context, query string) (*types.Response, error) {
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &types.Response{Response: "slow answer to " + query}, nil
}

func (slowRunner) Source() string { return "slow.html" }

func TestWebSocketKeepsClientAfterSlowQuery(t *testing.T) {
	s := NewWebSocketService(NewQueryService(slowRunner{delay: 300 * time.Millisecond}))
	s.readTimeout = 150 * time.Millisecond
	srv := httptest.NewServer(http.HandlerFunc(s.HandleQuery))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(types.WebsocketRequest{
		Type:    types.TypeWebsocketQuery,
		Payload: types.WebSocketQueryPayload{Query: "q"},
	}))

	var msg types.WebSocketResponse
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, types.TypeWebsocketProcessing, msg.Type)
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, types.TypeWebsocketAnswer, msg.Type)

	// the query outlasted the read timeout; the connection must still serve
	require.NoError(t, conn.WriteJSON(types.WebsocketRequest{Type: types.TypeWebsocketPing}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, types.TypeWebsocketPong, msg.Type)
}
