package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where petal stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// Redis configuration. Caching is disabled when RedisAddr is empty.
	RedisAddr     string // PETAL_REDIS_ADDR
	RedisPassword string // PETAL_REDIS_PASSWORD
	RedisDB       int    // PETAL_REDIS_DB

	// AI configuration
	AnthropicAPIKey     string // PETAL_ANTHROPIC_API_KEY
	SummaryModel        string // PETAL_SUMMARY_MODEL (default: claude-sonnet-4-20250514)
	OpenAIAPIKey        string // PETAL_OPENAI_API_KEY
	OpenAIBaseURL       string // PETAL_OPENAI_BASE_URL (default: https://api.openai.com/v1)
	EmbeddingModel      string // PETAL_EMBEDDING_MODEL (default: text-embedding-3-small)
	EmbeddingDimensions int    // PETAL_EMBEDDING_DIMENSIONS (default: 1536)

	// Mem0 personal memory configuration
	Mem0APIKey  string // PETAL_MEM0_API_KEY
	Mem0BaseURL string // PETAL_MEM0_BASE_URL (default: https://api.mem0.ai/v1)

	// QueueWorkers is the number of background enrichment workers.
	QueueWorkers int // PETAL_QUEUE_WORKERS (default: 2)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if the summarization provider is configured.
// Capture endpoints require summarization; embedding is an optimization and
// may be absent at request time.
func (p *Profile) IsAIEnabled() bool {
	return p.AnthropicAPIKey != ""
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from PETAL_* environment variables.
func (p *Profile) FromEnv() {
	p.RedisAddr = os.Getenv("PETAL_REDIS_ADDR")
	p.RedisPassword = os.Getenv("PETAL_REDIS_PASSWORD")
	if db, err := strconv.Atoi(os.Getenv("PETAL_REDIS_DB")); err == nil {
		p.RedisDB = db
	}

	p.AnthropicAPIKey = os.Getenv("PETAL_ANTHROPIC_API_KEY")
	p.SummaryModel = getEnvOrDefault("PETAL_SUMMARY_MODEL", "claude-sonnet-4-20250514")
	p.OpenAIAPIKey = os.Getenv("PETAL_OPENAI_API_KEY")
	p.OpenAIBaseURL = getEnvOrDefault("PETAL_OPENAI_BASE_URL", "https://api.openai.com/v1")
	p.EmbeddingModel = getEnvOrDefault("PETAL_EMBEDDING_MODEL", "text-embedding-3-small")
	p.EmbeddingDimensions = 1536
	if dims, err := strconv.Atoi(os.Getenv("PETAL_EMBEDDING_DIMENSIONS")); err == nil && dims > 0 {
		p.EmbeddingDimensions = dims
	}

	p.Mem0APIKey = os.Getenv("PETAL_MEM0_API_KEY")
	p.Mem0BaseURL = getEnvOrDefault("PETAL_MEM0_BASE_URL", "https://api.mem0.ai/v1")

	p.QueueWorkers = 2
	if workers, err := strconv.Atoi(os.Getenv("PETAL_QUEUE_WORKERS")); err == nil && workers > 0 {
		p.QueueWorkers = workers
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", p.Driver)
	}

	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for postgres driver")
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return err
	}
	p.Data = dataDir

	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("petal_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	if p.QueueWorkers <= 0 {
		p.QueueWorkers = 2
	}

	return nil
}
