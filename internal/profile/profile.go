package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the matching engine.
type Profile struct {
	// AI provider configuration (OpenAI-compatible protocol, or the
	// built-in deterministic local provider)
	AIProvider        string // Provider identifier: openai, local
	AIAPIKey          string
	AIBaseURL         string // Optional, has default per provider
	AIModel           string // Conversational model for profiling interviews
	AIEmbeddingModel  string
	AIEmbeddingDims   int // Embedding dimensionality, fixed per deployment
	AITimeoutSeconds  int // Provider request timeout in seconds (default: 30)
	AIRequestsPerMin  int // Client-side rate limit, 0 disables

	// Runtime configuration
	Mode        string // demo, dev, prod
	Addr        string
	Port        int
	MetricsPort int // Prometheus listener port, 0 disables
	Data        string
	Driver      string // sqlite, postgres
	DSN         string
	Version     string
}

// Provider default configurations.
// Used when LIGHTPATH_AI_BASE_URL is not explicitly set.
var aiProviderDefaults = map[string]struct {
	BaseURL        string
	Model          string
	EmbeddingModel string
}{
	"openai": {
		BaseURL:        "https://api.openai.com/v1",
		Model:          "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
	},
	"local": {
		BaseURL:        "",
		Model:          "local-interview",
		EmbeddingModel: "local-hash",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if a cloud provider is configured with an API key.
func (p *Profile) IsAIEnabled() bool {
	return p.AIProvider != "local" && p.AIAPIKey != ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.AIProvider = getEnvOrDefault("LIGHTPATH_AI_PROVIDER", "local")
	p.AIAPIKey = getEnvOrDefault("LIGHTPATH_AI_API_KEY", "")
	p.AIBaseURL = getEnvOrDefault("LIGHTPATH_AI_BASE_URL", "")
	p.AIModel = getEnvOrDefault("LIGHTPATH_AI_MODEL", "")
	p.AIEmbeddingModel = getEnvOrDefault("LIGHTPATH_AI_EMBEDDING_MODEL", "")
	p.AIEmbeddingDims = getEnvOrDefaultInt("LIGHTPATH_AI_EMBEDDING_DIMENSIONS", 1536)
	p.AITimeoutSeconds = getEnvOrDefaultInt("LIGHTPATH_AI_TIMEOUT_SECONDS", 30)
	p.AIRequestsPerMin = getEnvOrDefaultInt("LIGHTPATH_AI_REQUESTS_PER_MINUTE", 0)

	if p.AIProvider != "" {
		if _, ok := aiProviderDefaults[p.AIProvider]; !ok {
			slog.Warn("Unknown AI provider, using default: local", "provider", p.AIProvider)
			p.AIProvider = "local"
		}
	}
	if defaults, ok := aiProviderDefaults[p.AIProvider]; ok {
		if p.AIBaseURL == "" {
			p.AIBaseURL = defaults.BaseURL
		}
		if p.AIModel == "" {
			p.AIModel = defaults.Model
		}
		if p.AIEmbeddingModel == "" {
			p.AIEmbeddingModel = defaults.EmbeddingModel
		}
	}

	p.MetricsPort = getEnvOrDefaultInt("LIGHTPATH_METRICS_PORT", 0)
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
		return errors.Errorf("unsupported driver %q, expected sqlite or postgres", p.Driver)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires a DSN")
	}
	if p.AIEmbeddingDims <= 0 {
		return errors.Errorf("invalid embedding dimensions %d", p.AIEmbeddingDims)
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "lightpath")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/lightpath"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("lightpath_%s.db", p.Mode)
		// Connection pragmas are appended by the sqlite driver on open.
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
