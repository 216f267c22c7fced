package handler

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tieubaoca/tables-retriever/types"
)

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func TestWebSocketQuery(t *testing.T) {
	router, _ := newTestRouter(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() wsMessage {
		var msg wsMessage
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	require.NoError(t, conn.WriteJSON(types.WebsocketRequest{Type: types.TypeWebsocketPing}))
	assert.Equal(t, types.TypeWebsocketPong, read().Type)

	require.NoError(t, conn.WriteJSON(types.WebsocketRequest{
		Type:    types.TypeWebsocketQuery,
		Payload: types.WebSocketQueryPayload{Query: "revenue"},
	}))
	assert.Equal(t, types.TypeWebsocketProcessing, read().Type)

	answer := read()
	require.Equal(t, types.TypeWebsocketAnswer, answer.Type)
	var res types.QueryResponse
	require.NoError(t, json.Unmarshal(answer.Payload, &res))
	assert.Equal(t, "answer to revenue", res.Answer)

	require.NoError(t, conn.WriteJSON(types.WebsocketRequest{Type: "shout"}))
	failure := read()
	assert.Equal(t, types.TypeWebsocketError, failure.Type)
	assert.Contains(t, string(failure.Payload), "unknown message type")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, types.TypeWebsocketError, read().Type)
}
