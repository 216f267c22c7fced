package types

// EmptyResponse is the answer returned when nothing was retrieved.
const EmptyResponse = "Empty Response"

type DataResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Response is the answer produced by a query engine.
type Response struct {
	Response    string          `json:"response"`
	SourceNodes []NodeWithScore `json:"source_nodes"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
}

func (r *Response) String() string {
	if r == nil {
		return ""
	}
	return r.Response
}

// SourceNodeIDs lists the IDs of the nodes the answer was built from.
func (r *Response) SourceNodeIDs() []string {
	ids := make([]string, 0, len(r.SourceNodes))
	for _, sn := range r.SourceNodes {
		if sn.Node != nil {
			ids = append(ids, sn.Node.ID)
		}
	}
	return ids
}

type SourceNode struct {
	ID    string   `json:"id"`
	Kind  NodeKind `json:"kind"`
	Score float64  `json:"score"`
	Text  string   `json:"text"`
}

type QueryResponse struct {
	Answer   string       `json:"answer"`
	Sources  []SourceNode `json:"sources"`
	CacheHit bool         `json:"cache_hit"`
}

type ModulesResponse struct {
	Source    string   `json:"source"`
	Modules   []string `json:"modules"`
	Nodes     int      `json:"nodes"`
	BaseNodes int      `json:"base_nodes"`
	Tables    int      `json:"tables"`
}

// NewQueryResponse converts an engine response into its wire form.
func NewQueryResponse(res *Response, cacheHit bool) QueryResponse {
	out := QueryResponse{
		Answer:   res.Response,
		Sources:  make([]SourceNode, 0, len(res.SourceNodes)),
		CacheHit: cacheHit,
	}
	for _, sn := range res.SourceNodes {
		if sn.Node == nil {
			continue
		}
		out.Sources = append(out.Sources, SourceNode{
			ID:    sn.Node.ID,
			Kind:  sn.Node.Kind,
			Score: sn.Score,
			Text:  sn.Node.Text,
		})
	}
	return out
}
