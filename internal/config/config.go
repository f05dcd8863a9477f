package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	JWKSURL     string // Defaults to SUPABASE_URL + /auth/v1/.well-known/jwks.json
	CORSOrigins string
	TablePrefix string

	// DevUserID authenticates every request as this user when no JWKS URL
	// is configured. Ignored in prod.
	DevUserID string

	Generation   GenerationConfig
	Conversation ConversationConfig
	Scrape       ScrapeConfig
	Storage      StorageConfig

	// TemplatesFile optionally overrides the embedded template catalog
	TemplatesFile string

	// NATSURL enables the cross-instance room relay when set
	NATSURL string

	LogDir      string
	LogMaxFiles int

	// Debug flags
	Debug bool
}

// GenerationConfig configures the text-generation backend and its credential pool.
type GenerationConfig struct {
	Backend     string // anthropic, gemini or lorem; inferred from Model when empty
	Model       string
	APIKeys     []string // one backend instance per key (anthropic)
	MaxAttempts int
	BackoffBase time.Duration

	// Vertex AI (gemini backend)
	VertexProjectID       string
	VertexRegion          string
	VertexCredentialFiles []string
}

// ConversationConfig configures the chat turn pipeline.
type ConversationConfig struct {
	HistoryWindow  int
	ConflictPolicy string // last-writer-wins or optimistic
	TurnTimeout    time.Duration
}

type ScrapeConfig struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBytes     int64
	AllowPrivate bool
}

type StorageConfig struct {
	Backend string // none, minio or gcs

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool

	GCSBucket string
}

const (
	ConflictPolicyLastWriterWins = "last-writer-wins"
	ConflictPolicyOptimistic     = "optimistic"
)

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.JWKSURL == "" && (c.DevUserID == "" || c.Environment == "prod") {
		errs = append(errs, errors.New("SUPABASE_URL or JWKS_URL is required"))
	}
	switch c.Conversation.ConflictPolicy {
	case ConflictPolicyLastWriterWins, ConflictPolicyOptimistic:
	default:
		errs = append(errs, fmt.Errorf("unknown DOCUMENT_CONFLICT_POLICY %q", c.Conversation.ConflictPolicy))
	}
	if c.Generation.MaxAttempts < 1 {
		errs = append(errs, errors.New("GENERATION_MAX_ATTEMPTS must be at least 1"))
	}
	return errors.Join(errs...)
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	tablePrefix := getTablePrefix(env)

	jwksURL := getEnv("JWKS_URL", "")
	if jwksURL == "" {
		if supabaseURL := getEnv("SUPABASE_URL", ""); supabaseURL != "" {
			jwksURL = supabaseURL + "/auth/v1/.well-known/jwks.json"
		}
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		DatabaseURL: getEnv("DATABASE_URL", getEnv("SUPABASE_DB_URL", "")),
		JWKSURL:     jwksURL,
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix: tablePrefix,
		DevUserID:   getEnv("DEV_USER_ID", ""),
		Generation: GenerationConfig{
			Backend:               getEnv("GENERATION_BACKEND", ""), // Inferred from the model when empty
			Model:                 getEnv("GENERATION_MODEL", "gemini-1.5-flash"),
			APIKeys:               getAPIKeys(),
			MaxAttempts:           getEnvInt("GENERATION_MAX_ATTEMPTS", 3),
			BackoffBase:           time.Duration(getEnvInt("GENERATION_BACKOFF_MS", 1500)) * time.Millisecond,
			VertexProjectID:       getEnv("VERTEX_PROJECT_ID", ""),
			VertexRegion:          getEnv("VERTEX_REGION", "us-central1"),
			VertexCredentialFiles: splitList(getEnv("VERTEX_CREDENTIAL_FILES", "")),
		},
		Conversation: ConversationConfig{
			HistoryWindow:  getEnvInt("CONVERSATION_WINDOW", 6),
			ConflictPolicy: getEnv("DOCUMENT_CONFLICT_POLICY", ConflictPolicyLastWriterWins),
			TurnTimeout:    time.Duration(getEnvInt("TURN_TIMEOUT_SECONDS", 120)) * time.Second,
		},
		Scrape: ScrapeConfig{
			Timeout:      time.Duration(getEnvInt("SCRAPE_TIMEOUT_SECONDS", 10)) * time.Second,
			UserAgent:    getEnv("SCRAPE_USER_AGENT", "Mozilla/5.0 (compatible; ReqForgeBot/1.0)"),
			MaxBytes:     int64(getEnvInt("SCRAPE_MAX_BYTES", 5<<20)),
			AllowPrivate: getEnv("SCRAPE_ALLOW_PRIVATE", "false") == "true",
		},
		Storage: StorageConfig{
			Backend:        getEnv("STORAGE_BACKEND", "none"),
			MinIOEndpoint:  getEnv("MINIO_ENDPOINT", ""),
			MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			MinIOSecretKey: getEnv("MINIO_SECRET_KEY", ""),
			MinIOBucket:    getEnv("MINIO_BUCKET", "reqforge-uploads"),
			MinIOUseSSL:    getEnv("MINIO_USE_SSL", "false") == "true",
			GCSBucket:      getEnv("GCS_BUCKET", ""),
		},
		TemplatesFile: getEnv("TEMPLATES_FILE", ""),
		NATSURL:       getEnv("NATS_URL", ""),
		LogDir:        getEnv("LOG_DIR", ""),
		LogMaxFiles:   getEnvInt("LOG_MAX_FILES", 10),
		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getAPIKeys reads the credential pool. GENERATION_API_KEYS is a comma
// separated list; GENERATION_API_KEY is accepted as a single-key fallback.
func getAPIKeys() []string {
	if keys := splitList(os.Getenv("GENERATION_API_KEYS")); len(keys) > 0 {
		return keys
	}
	return splitList(os.Getenv("GENERATION_API_KEY"))
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
