package service

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kart-io/logger"
	"github.com/tieubaoca/tables-retriever/types"
)

const (
	wsReadLimit   = 512 * 1024
	wsReadTimeout = 60 * time.Second
)

type WebSocketService struct {
	queries     *QueryService
	upgrader    websocket.Upgrader
	readTimeout time.Duration
}

func NewWebSocketService(queries *QueryService) *WebSocketService {
	return &WebSocketService{
		queries:     queries,
		readTimeout: wsReadTimeout,
		upgrader:    websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleQuery upgrades the connection and answers query messages until the
// client goes away. Each query is acknowledged with a processing message
// before the answer is sent.
func (s *WebSocketService) HandleQuery(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnw("websocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	s.extendReadDeadline(conn)
	conn.SetPongHandler(func(string) error {
		s.extendReadDeadline(conn)
		return nil
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		_, p, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warnw("websocket read error", "error", err.Error())
			}
			return
		}
		s.extendReadDeadline(conn)

		var req types.WebsocketRequest
		if err := json.Unmarshal(p, &req); err != nil {
			s.writeError(conn, "invalid message")
			continue
		}

		switch req.Type {
		case types.TypeWebsocketPing:
			s.write(conn, types.WebSocketResponse{Type: types.TypeWebsocketPong})
		case types.TypeWebsocketQuery:
			var payload types.WebSocketQueryPayload
			if err := decodePayload(req.Payload, &payload); err != nil {
				s.writeError(conn, "invalid query payload")
				continue
			}
			s.write(conn, types.WebSocketResponse{
				Type:    types.TypeWebsocketProcessing,
				Payload: types.WebSocketProcessingResponse{Message: "retrieving"},
			})
			res, err := s.queries.Query(ctx, payload.Query)
			// the idle timeout starts once the answer is out
			s.extendReadDeadline(conn)
			if err != nil {
				s.writeError(conn, err.Error())
				continue
			}
			s.write(conn, types.WebSocketResponse{Type: types.TypeWebsocketAnswer, Payload: res})
		default:
			s.writeError(conn, "unknown message type: "+req.Type)
		}
	}
}

func (s *WebSocketService) extendReadDeadline(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
}

func (s *WebSocketService) write(conn *websocket.Conn, res types.WebSocketResponse) {
	if err := conn.WriteJSON(res); err != nil {
		logger.Warnw("websocket write error", "error", err.Error())
	}
}

func (s *WebSocketService) writeError(conn *websocket.Conn, message string) {
	s.write(conn, types.WebSocketResponse{
		Type:    types.TypeWebsocketError,
		Payload: types.WebSocketErrorResponse{Error: message},
	})
}

func decodePayload(payload interface{}, out interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
