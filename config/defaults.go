package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		LLM:       DefaultLLMConfig(),
		Embedding: DefaultEmbeddingConfig(),
		Detector:  DefaultDetectorConfig(),
		Knowledge: DefaultKnowledgeConfig(),
		Retrieval: DefaultRetrievalConfig(),
		Context:   DefaultContextConfig(),
		Session:   DefaultSessionConfig(),
		Redis:     DefaultRedisConfig(),
		Log:       DefaultLogConfig(),
	}
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		MaxImageBytes:   8 << 20,
	}
}

// DefaultLLMConfig returns the default chat model configuration.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:        "groq",
		Model:           "llama3-8b-8192",
		BaseURL:         "https://api.groq.com/openai",
		Timeout:         60 * time.Second,
		Temperature:     0.3,
		MaxOutputTokens: 2048,
	}
}

// DefaultEmbeddingConfig returns the default embedder configuration.
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Model:      "text-embedding-3-small",
		BaseURL:    "https://api.openai.com",
		Dimensions: 1536,
		Timeout:    30 * time.Second,
	}
}

// DefaultDetectorConfig returns the default detector configuration.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Enabled:       false,
		Timeout:       30 * time.Second,
		MinConfidence: 0.25,
	}
}

// DefaultKnowledgeConfig returns the default knowledge configuration.
func DefaultKnowledgeConfig() KnowledgeConfig {
	return KnowledgeConfig{
		SnapshotPath: "knowledge/snapshot.json",
	}
}

// DefaultRetrievalConfig returns the default retrieval configuration.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK:    3,
		FetchK:  10,
		Timeout: 30 * time.Second,
	}
}

// DefaultContextConfig returns the default assembly configuration.
func DefaultContextConfig() ContextConfig {
	return ContextConfig{
		MaxTokens:    4096,
		HistoryLimit: 10,
	}
}

// DefaultSessionConfig returns the default session configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Backend: "memory",
		TTL:     24 * time.Hour,
	}
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     "localhost:6379",
		Password: "",
		DB:       0,
		PoolSize: 10,
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}
