package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Server     ServerConfig
	Log        LogConfig
	AI         AIConfig
	Transcript TranscriptConfig
	Prompt     PromptConfig
	Exchange   ExchangeConfig
}

type ServerConfig struct {
	Addr            string        `envconfig:"HTTP_ADDR" default:":8000"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

type LogConfig struct {
	// Format is "json" (production) or "console" (development).
	Format string `envconfig:"LOG_FORMAT" default:"json"`
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
}

type AIConfig struct {
	Provider string `envconfig:"AI_PROVIDER" default:"openai"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`

	OllamaBaseURL string `envconfig:"OLLAMA_BASE_URL" default:"http://localhost:11434"`
	OllamaModel   string `envconfig:"OLLAMA_MODEL" default:"llama3:latest"`

	Timeout time.Duration `envconfig:"COMPLETION_TIMEOUT" default:"60s"`

	BreakerMaxRequests      uint32        `envconfig:"BREAKER_MAX_REQUESTS" default:"1"`
	BreakerInterval         time.Duration `envconfig:"BREAKER_INTERVAL" default:"60s"`
	BreakerTimeout          time.Duration `envconfig:"BREAKER_TIMEOUT" default:"30s"`
	BreakerFailureThreshold float64       `envconfig:"BREAKER_FAILURE_THRESHOLD" default:"0.6"`
	BreakerMinRequests      uint32        `envconfig:"BREAKER_MIN_REQUESTS" default:"5"`
}

type TranscriptConfig struct {
	Languages  []string      `envconfig:"TRANSCRIPT_LANGUAGES" default:"en,en-US,hi,es,fr,de,ja,ko,ru"`
	Timeout    time.Duration `envconfig:"TRANSCRIPT_TIMEOUT" default:"30s"`
	YouTubeURL string        `envconfig:"YOUTUBE_BASE_URL" default:"https://www.youtube.com"`
}

// PromptConfig overrides the system instructions; empty keeps the built-in text.
type PromptConfig struct {
	AskInstruction        string `envconfig:"PROMPT_ASK_INSTRUCTION"`
	AnalysisInstruction   string `envconfig:"PROMPT_ANALYSIS_INSTRUCTION"`
	SuggestionInstruction string `envconfig:"PROMPT_SUGGESTION_INSTRUCTION"`
}

// ExchangeConfig configures the optional exchange log. It is disabled when
// DBDSN is empty.
type ExchangeConfig struct {
	// DSN demo (mysql):
	// app:apppass@tcp(127.0.0.1:3306)/yt_assistant?charset=utf8mb4&parseTime=true&loc=Local
	DBDriver string `envconfig:"DB_DRIVER" default:"mysql"`
	DBDSN    string `envconfig:"DB_DSN"`

	RabbitURL         string `envconfig:"RABBIT_URL"`
	RabbitQueue       string `envconfig:"RABBIT_QUEUE" default:"video_exchanges"`
	WorkerConcurrency int    `envconfig:"WORKER_CONCURRENCY" default:"2"`

	// Failed inserts go through <queue>.retry this many times before the DLQ.
	WorkerMaxRetries int           `envconfig:"WORKER_MAX_RETRIES" default:"3"`
	WorkerRetryDelay time.Duration `envconfig:"WORKER_RETRY_DELAY" default:"10s"`
}

// Enabled reports whether exchanges should be recorded.
func (c ExchangeConfig) Enabled() bool { return strings.TrimSpace(c.DBDSN) != "" }

// Queued reports whether exchanges go through RabbitMQ instead of straight
// to the database.
func (c ExchangeConfig) Queued() bool { return strings.TrimSpace(c.RabbitURL) != "" }

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid LOG_FORMAT=%q (want json or console)", c.Log.Format)
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL=%q (want debug, info, warn or error)", c.Log.Level)
	}

	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))

	langs := make([]string, 0, len(c.Transcript.Languages))
	for _, l := range c.Transcript.Languages {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	if len(langs) == 0 {
		return fmt.Errorf("TRANSCRIPT_LANGUAGES must name at least one language")
	}
	c.Transcript.Languages = langs

	if c.Exchange.WorkerConcurrency <= 0 {
		c.Exchange.WorkerConcurrency = 2
	}
	if c.Exchange.WorkerConcurrency > 50 {
		c.Exchange.WorkerConcurrency = 50
	}
	if c.Exchange.WorkerMaxRetries < 0 {
		c.Exchange.WorkerMaxRetries = 0
	}
	if c.Exchange.WorkerRetryDelay <= 0 {
		c.Exchange.WorkerRetryDelay = 10 * time.Second
	}
	return nil
}
