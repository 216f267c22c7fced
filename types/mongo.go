package types

// QueryLog is one answered query, persisted for auditing.
type QueryLog struct {
	ID            string   `json:"id" bson:"_id,omitempty"`
	Source        string   `json:"source" bson:"source"`
	Query         string   `json:"query" bson:"query"`
	Answer        string   `json:"answer" bson:"answer"`
	SourceNodeIDs []string `json:"source_node_ids" bson:"source_node_ids"`
	CacheHit      bool     `json:"cache_hit" bson:"cache_hit"`
	DurationMs    int64    `json:"duration_ms" bson:"duration_ms"`
	CreatedAt     int64    `json:"created_at" bson:"created_at"`
}
