package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"
	"github.com/tieubaoca/tables-retriever/config"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

const BATCH_SIZE = 200

const defaultNodeClass = "TableNode"

func nodeClassObject(name string) *models.Class {
	return &models.Class{
		Class: name,
		Properties: []*models.Property{
			{Name: "nodeId", DataType: []string{"text"}},
			{Name: "kind", DataType: []string{"text"}},
			{Name: "content", DataType: []string{"text"}},
		},
		Vectorizer:      "none",
		VectorIndexType: "hnsw",
	}
}

// WeaviateStore keeps node vectors in a Weaviate class. Vectors are
// supplied by the caller; the class has no vectorizer.
type WeaviateStore struct {
	client    *weaviate.Client
	className string
}

func NewWeaviateStore(ctx context.Context, config config.WeaviateConfig) (*WeaviateStore, error) {
	var scheme string
	if strings.Contains(config.Host, "https") {
		scheme = "https"
	} else {
		scheme = "http"
	}
	host := strings.TrimPrefix(config.Host, scheme+"://")
	cfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if config.APIKey != "" {
		cfg.Headers = map[string]string{
			"X-Weaviate-Api-Key":     config.APIKey,
			"X-Weaviate-Cluster-Url": fmt.Sprintf("%s://%s", scheme, host),
		}
	}
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	className := config.ClassName
	if className == "" {
		className = defaultNodeClass
	}
	s := &WeaviateStore{
		client:    client,
		className: className,
	}
	if err := s.ensureClass(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *WeaviateStore) Name() string {
	return StoreWeaviate
}

func (s *WeaviateStore) ensureClass(ctx context.Context) error {
	schema, err := s.client.Schema().Getter().Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to get schema: %w", err)
	}
	for _, class := range schema.Classes {
		if class.Class == s.className {
			return nil
		}
	}
	if err := s.client.Schema().ClassCreator().WithClass(nodeClassObject(s.className)).Do(ctx); err != nil {
		return fmt.Errorf("failed to create %s class: %w", s.className, err)
	}
	return nil
}

// Clear drops and recreates the class.
func (s *WeaviateStore) Clear(ctx context.Context) error {
	err := s.client.Schema().ClassDeleter().WithClassName(s.className).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete %s class: %w", s.className, err)
	}
	return s.ensureClass(ctx)
}

func (s *WeaviateStore) Add(ctx context.Context, records []StoreRecord) error {
	total := len(records)
	for i := 0; i < total; i += BATCH_SIZE {
		end := min(i+BATCH_SIZE, total)

		batcher := s.client.Batch().ObjectsBatcher()
		for _, r := range records[i:end] {
			batcher = batcher.WithObjects(&models.Object{
				Class: s.className,
				Properties: map[string]interface{}{
					"nodeId":  r.ID,
					"kind":    r.Kind,
					"content": r.Text,
				},
				Vector: r.Vector,
			})
		}

		results, err := batcher.Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert batch %d-%d: %w", i, end, err)
		}
		for _, res := range results {
			if res.Result != nil && res.Result.Errors != nil && len(res.Result.Errors.Error) > 0 {
				return fmt.Errorf("failed to insert object: %s", res.Result.Errors.Error[0].Message)
			}
		}
		logger.Debugw("inserted weaviate batch", "class", s.className, "from", i, "to", end, "total", total)
	}
	return nil
}

func (s *WeaviateStore) Query(ctx context.Context, vector []float32, topK int) ([]StoreMatch, error) {
	fields := []graphql.Field{
		{Name: "nodeId"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	getBuilder := s.client.GraphQL().Get().
		WithClassName(s.className).
		WithFields(fields...).
		WithNearVector(nearVector)
	if topK > 0 {
		getBuilder = getBuilder.WithLimit(topK)
	}

	result, err := getBuilder.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("search failed: %v", result.Errors[0].Message)
	}
	return parseNearVectorResult(result.Data, s.className), nil
}

// parseNearVectorResult reads Get.<class>[] from a GraphQL response.
// Weaviate reports cosine distance, so score is 1 - distance.
func parseNearVectorResult(data map[string]models.JSONObject, className string) []StoreMatch {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	items, ok := get[className].([]interface{})
	if !ok {
		return nil
	}

	matches := make([]StoreMatch, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := obj["nodeId"].(string)
		if id == "" {
			continue
		}
		match := StoreMatch{ID: id}
		if additional, ok := obj["_additional"].(map[string]interface{}); ok {
			if distance, ok := additional["distance"].(float64); ok {
				match.Score = 1 - distance
			}
		}
		matches = append(matches, match)
	}
	return matches
}
