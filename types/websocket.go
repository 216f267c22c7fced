package types

const (
	TypeWebsocketPing       = "ping"
	TypeWebsocketPong       = "pong"
	TypeWebsocketQuery      = "query"
	TypeWebsocketProcessing = "processing"
	TypeWebsocketAnswer     = "answer"
	TypeWebsocketError      = "error"
)

type WebsocketRequest struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type WebSocketQueryPayload struct {
	Query string `json:"query"`
}

type WebSocketResponse struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type WebSocketProcessingResponse struct {
	Message string `json:"message"`
}

type WebSocketErrorResponse struct {
	Error string `json:"error"`
}
