package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string            `mapstructure:"port"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Parser      ParserConfig      `mapstructure:"parser"`
	Retriever   RetrieverConfig   `mapstructure:"retriever"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	Redis       RedisConfig       `mapstructure:"redis"`
	MongoDB     MongoDBConfig     `mapstructure:"mongodb"`
	Log         LogConfig         `mapstructure:"log"`
}

type LLMConfig struct {
	Provider      string   `mapstructure:"provider"`
	BaseURL       string   `mapstructure:"base_url"`
	Model         string   `mapstructure:"model"`
	EmbedModel    string   `mapstructure:"embed_model"`
	OpenAIAPIKey  string   `mapstructure:"OPENAI_API_KEY"`
	GeminiAPIKeys []string `mapstructure:"GEMINI_API_KEYS"`
}

type ParserConfig struct {
	SummaryWorkers int `mapstructure:"summary_workers"`
	MinTableRows   int `mapstructure:"min_table_rows"`
	MinTableCols   int `mapstructure:"min_table_cols"`
}

type RetrieverConfig struct {
	SimilarityTopK  int  `mapstructure:"similarity_top_k"`
	Verbose         bool `mapstructure:"verbose"`
	EmbedBatchSize  int  `mapstructure:"embed_batch_size"`
	MaxContextChars int  `mapstructure:"max_context_chars"`
}

type VectorStoreConfig struct {
	Type     string         `mapstructure:"type"`
	Weaviate WeaviateConfig `mapstructure:"weaviate"`
	Milvus   MilvusConfig   `mapstructure:"milvus"`
}

type WeaviateConfig struct {
	Host      string `mapstructure:"host"`
	APIKey    string `mapstructure:"WEAVIATE_APIKEY"` // Changed to match env var
	ClassName string `mapstructure:"class_name"`
}

type MilvusConfig struct {
	Address    string        `mapstructure:"address"`
	Username   string        `mapstructure:"username"`
	Password   string        `mapstructure:"password"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"REDIS_PASSWORD"`
	DB        int           `mapstructure:"db"`
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

type MongoDBConfig struct {
	URI        string `mapstructure:"MONGODB_URI"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Engine string `mapstructure:"engine"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.embed_model", "text-embedding-3-small")
	v.SetDefault("parser.summary_workers", 4)
	v.SetDefault("parser.min_table_rows", 1)
	v.SetDefault("parser.min_table_cols", 2)
	v.SetDefault("retriever.similarity_top_k", 1)
	v.SetDefault("retriever.verbose", true)
	v.SetDefault("retriever.embed_batch_size", 10)
	v.SetDefault("retriever.max_context_chars", 12000)
	v.SetDefault("vector_store.type", "memory")
	v.SetDefault("vector_store.weaviate.class_name", "TableNode")
	v.SetDefault("vector_store.milvus.collection", "table_nodes")
	v.SetDefault("vector_store.milvus.timeout", 10*time.Second)
	v.SetDefault("redis.ttl", time.Hour)
	v.SetDefault("redis.key_prefix", "tables:query:")
	v.SetDefault("mongodb.database", "tables_retriever")
	v.SetDefault("mongodb.collection", "query_logs")
	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.engine", "slog")
}

// LoadConfig reads configPath (YAML) and overlays environment variables.
// An empty configPath yields the defaults plus environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Set up Viper to read from environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Bind environment variables
	v.BindEnv("llm.OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("llm.GEMINI_API_KEYS", "GEMINI_API_KEYS")
	v.BindEnv("vector_store.weaviate.WEAVIATE_APIKEY", "WEAVIATE_APIKEY")
	v.BindEnv("redis.REDIS_PASSWORD", "REDIS_PASSWORD")
	v.BindEnv("mongodb.MONGODB_URI", "MONGODB_URI")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.LLM.GeminiAPIKeys = splitKeys(config.LLM.GeminiAPIKeys)

	return &config, nil
}

// splitKeys expands comma separated entries coming from the environment.
func splitKeys(keys []string) []string {
	var out []string
	for _, k := range keys {
		for _, part := range strings.Split(k, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
