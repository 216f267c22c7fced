package types

type QueryRequest struct {
	Query string `json:"query"`
}

type PaginateQueryLogRequest struct {
	Limit int64 `json:"limit" form:"limit"`
}
