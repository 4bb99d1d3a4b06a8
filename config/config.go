package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration, built once at startup
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Agent     AgentConfig     `mapstructure:"agent"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Search    SearchConfig    `mapstructure:"search"`

	// "exclusive" or "best-effort"
	BackendPolicy string `mapstructure:"backend_policy"`
}

type ServerConfig struct {
	Port      string `mapstructure:"port"`
	GinMode   string `mapstructure:"gin_mode"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type StorageConfig struct {
	Type         string `mapstructure:"type"`
	LocalPath    string `mapstructure:"local_path"`
	S3Bucket     string `mapstructure:"s3_bucket"`
	S3Region     string `mapstructure:"s3_region"`
	S3Prefix     string `mapstructure:"s3_prefix"`
	AWSAccessKey string `mapstructure:"aws_access_key"`
	AWSSecretKey string `mapstructure:"aws_secret_key"`
}

type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	Users       string        `mapstructure:"users"` // "user:pass,user2:pass2"
	AllowSignup bool          `mapstructure:"allow_signup"`
}

// AgentConfig configures the managed agent backend
type AgentConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	AssistantID  string        `mapstructure:"assistant_id"`
	APIVersion   string        `mapstructure:"api_version"`
	Token        string        `mapstructure:"token"` // static bearer; Azure default credentials otherwise
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type OpenAIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	VectorStoreID  string `mapstructure:"vector_store_id"`
	ResponsesModel string `mapstructure:"responses_model"`
	ChatModel      string `mapstructure:"chat_model"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type RetrievalConfig struct {
	TopK         int  `mapstructure:"top_k"`
	EvidenceMode bool `mapstructure:"evidence_mode"`
}

type SearchConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// envBindings maps config keys to environment variables, first non-blank name wins
var envBindings = map[string][]string{
	"server.port":       {"PORT"},
	"server.gin_mode":   {"GIN_MODE"},
	"server.log_level":  {"LOG_LEVEL"},
	"server.log_format": {"LOG_FORMAT"},

	"database.url": {"DATABASE_URL"},

	"storage.type":           {"STORAGE_TYPE"},
	"storage.local_path":     {"STORAGE_LOCAL_PATH"},
	"storage.s3_bucket":      {"AWS_S3_BUCKET"},
	"storage.s3_region":      {"AWS_REGION"},
	"storage.s3_prefix":      {"AWS_S3_PREFIX"},
	"storage.aws_access_key": {"AWS_ACCESS_KEY_ID"},
	"storage.aws_secret_key": {"AWS_SECRET_ACCESS_KEY"},

	"auth.jwt_secret":   {"JWT_SECRET"},
	"auth.token_ttl":    {"JWT_TTL"},
	"auth.users":        {"AUTH_USERS"},
	"auth.allow_signup": {"ALLOW_SIGNUP"},

	"agent.endpoint":      {"AI_FOUNDRY_PROJECT_ENDPOINT", "AZURE_EXISTING_AIPROJECT_ENDPOINT"},
	"agent.assistant_id":  {"AI_FOUNDRY_ASSISTANT_ID", "AZURE_EXISTING_AGENT_ID"},
	"agent.api_version":   {"AI_FOUNDRY_API_VERSION"},
	"agent.token":         {"AI_FOUNDRY_TOKEN"},
	"agent.poll_interval": {"AI_FOUNDRY_POLL_INTERVAL"},
	"agent.timeout":       {"AI_FOUNDRY_TIMEOUT"},

	"openai.api_key":         {"OPENAI_API_KEY"},
	"openai.base_url":        {"OPENAI_BASE_URL"},
	"openai.vector_store_id": {"OPENAI_VECTOR_STORE_ID"},
	"openai.responses_model": {"RESPONSES_MODEL"},
	"openai.chat_model":      {"OPENAI_MODEL"},

	"gemini.api_key": {"GEMINI_API_KEY"},
	"gemini.model":   {"GEMINI_MODEL"},

	"retrieval.top_k":         {"RETRIEVAL_TOP_K"},
	"retrieval.evidence_mode": {"EVIDENCE_MODE"},

	"search.enabled": {"WEB_SEARCH_ENABLED"},
	"search.timeout": {"WEB_SEARCH_TIMEOUT"},

	"backend_policy": {"BACKEND_POLICY"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.gin_mode", "release")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./data")
	v.SetDefault("storage.s3_region", "us-east-1")

	v.SetDefault("auth.token_ttl", "12h")
	v.SetDefault("auth.allow_signup", false)

	v.SetDefault("agent.api_version", "v1")
	v.SetDefault("agent.poll_interval", "600ms")
	v.SetDefault("agent.timeout", "90s")

	v.SetDefault("openai.responses_model", "gpt-4.1-mini")
	v.SetDefault("openai.chat_model", "gpt-4o-mini")

	v.SetDefault("gemini.model", "gemini-1.5-pro")

	v.SetDefault("retrieval.top_k", 8)
	v.SetDefault("retrieval.evidence_mode", true)

	v.SetDefault("search.enabled", true)
	v.SetDefault("search.timeout", "15s")

	v.SetDefault("backend_policy", "exclusive")
}

// LoadDotEnv loads .env from the working directory, then from the project
// root relative to cmd/<tool>/. It reports whether a file was found.
func LoadDotEnv() bool {
	if err := godotenv.Load(); err == nil {
		return true
	}
	return godotenv.Load("../../.env") == nil
}

// Load builds the configuration from defaults, an optional YAML file at
// CONFIG_PATH, and environment variables, in increasing precedence.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := strings.TrimSpace(os.Getenv("CONFIG_PATH")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	for key, names := range envBindings {
		name := firstSetEnv(names)
		if name == "" {
			continue
		}
		if err := v.BindEnv(key, name); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	trimStrings(reflect.ValueOf(&cfg).Elem())

	cfg.Agent.Endpoint = strings.TrimRight(cfg.Agent.Endpoint, "/")
	if cfg.Agent.APIVersion == "" {
		cfg.Agent.APIVersion = "v1"
	}
	return &cfg, nil
}

// firstSetEnv returns the first name whose value is not blank, or ""
func firstSetEnv(names []string) string {
	for _, name := range names {
		if strings.TrimSpace(os.Getenv(name)) != "" {
			return name
		}
	}
	return ""
}

// trimStrings trims every string field so blank values read as absent
func trimStrings(v reflect.Value) {
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		switch f.Kind() {
		case reflect.String:
			f.SetString(strings.TrimSpace(f.String()))
		case reflect.Struct:
			trimStrings(f)
		}
	}
}

// AgentConfigured reports whether both agent settings are present
func (c *Config) AgentConfigured() bool {
	return c.Agent.Endpoint != "" && c.Agent.AssistantID != ""
}

// AgentMissing lists the env names of absent agent settings when the agent
// is partially configured, and nil when it is fully configured or not at all.
func (c *Config) AgentMissing() []string {
	if c.Agent.Endpoint == "" && c.Agent.AssistantID == "" {
		return nil
	}
	var missing []string
	if c.Agent.Endpoint == "" {
		missing = append(missing, "AI_FOUNDRY_PROJECT_ENDPOINT (or AZURE_EXISTING_AIPROJECT_ENDPOINT)")
	}
	if c.Agent.AssistantID == "" {
		missing = append(missing, "AI_FOUNDRY_ASSISTANT_ID (or AZURE_EXISTING_AGENT_ID)")
	}
	return missing
}

// ParseUsers parses "user:pass,user2:pass2" into a username -> password map.
// Malformed entries are skipped.
func ParseUsers(raw string) map[string]string {
	users := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		user, pass, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			continue
		}
		user = strings.TrimSpace(user)
		pass = strings.TrimSpace(pass)
		if user == "" || pass == "" {
			continue
		}
		users[user] = pass
	}
	return users
}
