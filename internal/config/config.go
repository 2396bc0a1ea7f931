package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/qwen-chat/backend/internal/service/ai/dashscope"
	"github.com/zhouzirui/qwen-chat/backend/internal/store"
)

// Upstream providers.
const (
	ProviderDashScope = "dashscope"
	ProviderArk       = "ark"
)

// Config aggregates every configuration section.
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Store  store.Config
	Client ClientConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	storeCfg, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	client, err := loadClientConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Store: storeCfg, Client: client}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the upstream completion provider.
type AIConfig struct {
	Provider string
	Timeout  time.Duration

	// DashScope
	QwenAPIKey  string
	QwenBaseURL string

	// Ark
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled reports whether the selected provider has credentials. Without
// them the proxy answers with simulated replies only.
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	default:
		return c.QwenAPIKey != ""
	}
}

// NewChatModel builds the chat model for the selected provider.
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("credentials for provider %q are not configured", c.Provider)
	}

	switch c.Provider {
	case ProviderArk:
		return c.newArkChatModel(ctx)
	case ProviderDashScope:
		chatModel, err := dashscope.NewChatModel(dashscope.Config{
			APIKey:  c.QwenAPIKey,
			BaseURL: c.QwenBaseURL,
			Model:   dashscope.DefaultModel,
		})
		if err != nil {
			return nil, err
		}
		return chatModel, nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", c.Provider)
	}
}

func (c AIConfig) newArkChatModel(ctx context.Context) (model.BaseChatModel, error) {
	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	chatModel, err := ark.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ark chat model: %w", err)
	}
	return chatModel, nil
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderDashScope))
	if provider != ProviderDashScope && provider != ProviderArk {
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", provider)
	}

	timeout, err := parseDurationEnv("AI_TIMEOUT", 30*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		Provider:    provider,
		Timeout:     timeout,
		QwenAPIKey:  strings.TrimSpace(os.Getenv("QWEN_API_KEY")),
		QwenBaseURL: getEnvOrDefault("QWEN_BASE_URL", dashscope.DefaultBaseURL),
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

func loadStoreConfig() (store.Config, error) {
	driver := strings.ToLower(getEnvOrDefault("STORE_DRIVER", store.DriverMemory))
	switch driver {
	case store.DriverMemory, store.DriverSQLite, store.DriverSupabase:
	default:
		return store.Config{}, fmt.Errorf("invalid STORE_DRIVER value %q", driver)
	}

	return store.Config{
		Driver:     driver,
		SQLitePath: getEnvOrDefault("SQLITE_PATH", "qwen-chat.db"),
		Supabase: store.SupabaseConfig{
			URL:    strings.TrimSpace(os.Getenv("SUPABASE_URL")),
			APIKey: strings.TrimSpace(os.Getenv("SUPABASE_ANON_KEY")),
		},
	}, nil
}

// ClientConfig describes the terminal chat client.
type ClientConfig struct {
	APIURL string
	// Token is sent as the bearer credential; defaults to the Supabase anon key.
	Token       string
	StoragePath string
	Timeout     time.Duration
}

func loadClientConfig() (ClientConfig, error) {
	timeout, err := parseDurationEnv("CLIENT_TIMEOUT", 60*time.Second)
	if err != nil {
		return ClientConfig{}, err
	}

	token := strings.TrimSpace(os.Getenv("CHAT_API_TOKEN"))
	if token == "" {
		token = strings.TrimSpace(os.Getenv("SUPABASE_ANON_KEY"))
	}

	return ClientConfig{
		APIURL:      strings.TrimRight(getEnvOrDefault("CHAT_API_URL", "http://localhost:8080"), "/"),
		Token:       token,
		StoragePath: strings.TrimSpace(os.Getenv("VISITOR_STORAGE_PATH")),
		Timeout:     timeout,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// parseDurationEnv accepts Go durations ("45s") or a bare number of seconds.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
		}
		return time.Duration(seconds) * time.Second, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
