package service

import (
	"context"
	"errors"
	"time"

	"github.com/kart-io/logger"
	"github.com/tieubaoca/tables-retriever/database"
	"github.com/tieubaoca/tables-retriever/metrics"
	"github.com/tieubaoca/tables-retriever/repository"
	"github.com/tieubaoca/tables-retriever/types"
	"github.com/tieubaoca/tables-retriever/utils"
)

// Runner answers queries over one source document.
type Runner interface {
	Run(ctx context.Context, query string) (*types.Response, error)
	Source() string
}

type QueryServiceOption func(*QueryService)

func WithQueryCache(cache *database.QueryCache) QueryServiceOption {
	return func(s *QueryService) {
		s.cache = cache
	}
}

func WithMetrics(m *metrics.Metrics) QueryServiceOption {
	return func(s *QueryService) {
		s.metrics = m
	}
}

func WithQueryLogRepo(repo repository.QueryLogRepo) QueryServiceOption {
	return func(s *QueryService) {
		s.logs = repo
	}
}

// QueryService serves a Runner with optional caching, metrics and query
// logging. Failures of those extras are logged and never fail a query.
type QueryService struct {
	runner  Runner
	cache   *database.QueryCache
	metrics *metrics.Metrics
	logs    repository.QueryLogRepo
	now     func() time.Time
}

func NewQueryService(runner Runner, opts ...QueryServiceOption) *QueryService {
	s := &QueryService{
		runner: runner,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *QueryService) Source() string {
	return s.runner.Source()
}

func (s *QueryService) Query(ctx context.Context, query string) (*types.QueryResponse, error) {
	start := s.now()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, s.runner.Source(), query)
		if err != nil {
			logger.Warnw("query cache unavailable", "error", err.Error())
		}
		if cached != nil {
			cached.CacheHit = true
			s.observe(metrics.ResultOK, true, start, len(cached.Sources))
			s.record(ctx, query, cached, start)
			return cached, nil
		}
	}

	res, err := s.runner.Run(ctx, query)
	if err != nil {
		s.observe(metrics.ResultError, false, start, 0)
		if !errors.Is(err, ErrEmptyQuery) {
			logger.Errorw("query failed", "query", utils.TruncateString(query, 120), "error", err.Error())
		}
		return nil, err
	}

	out := types.NewQueryResponse(res, false)
	result := metrics.ResultOK
	if out.Answer == types.EmptyResponse {
		result = metrics.ResultEmpty
	}
	s.observe(result, false, start, len(out.Sources))

	if s.cache != nil && result == metrics.ResultOK {
		if err := s.cache.Set(ctx, s.runner.Source(), query, &out); err != nil {
			logger.Warnw("failed to cache query", "error", err.Error())
		}
	}
	s.record(ctx, query, &out, start)
	return &out, nil
}

// RecentQueries lists logged queries, newest first.
func (s *QueryService) RecentQueries(ctx context.Context, limit int64) ([]*types.QueryLog, error) {
	if s.logs == nil {
		return []*types.QueryLog{}, nil
	}
	return s.logs.ListRecent(ctx, limit)
}

func (s *QueryService) observe(result string, cached bool, start time.Time, sources int) {
	if s.metrics == nil {
		return
	}
	if cached {
		s.metrics.CacheHits.Inc()
	} else if s.cache != nil {
		s.metrics.CacheMisses.Inc()
	}
	s.metrics.ObserveQuery(result, cached, s.now().Sub(start), sources)
}

func (s *QueryService) record(ctx context.Context, query string, res *types.QueryResponse, start time.Time) {
	if s.logs == nil {
		return
	}
	ids := make([]string, 0, len(res.Sources))
	for _, src := range res.Sources {
		ids = append(ids, src.ID)
	}
	entry := &types.QueryLog{
		Source:        s.runner.Source(),
		Query:         query,
		Answer:        res.Answer,
		SourceNodeIDs: ids,
		CacheHit:      res.CacheHit,
		DurationMs:    s.now().Sub(start).Milliseconds(),
		CreatedAt:     s.now().Unix(),
	}
	if err := s.logs.CreateQueryLog(ctx, entry); err != nil {
		logger.Warnw("failed to write query log", "error", err.Error())
	}
}
