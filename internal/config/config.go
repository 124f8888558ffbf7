package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/viper"
)

// Config aggregates every runtime setting of the service.
type Config struct {
	Server  ServerConfig
	Paths   PathsConfig
	AI      AIConfig
	Session SessionConfig
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

// PathsConfig locates the on-disk collaborators: transcript storage, pending
// uploads and the OCR engine.
type PathsConfig struct {
	DataRoot   string
	UploadsDir string
	Tesseract  string
}

// AIConfig describes the completion backend. The API key never lives in the
// config file; it is read from the environment at load time.
type AIConfig struct {
	Model          string
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
	HistoryWindow  int
	ContextLimit   int
}

// SessionConfig holds the single-user demo identity.
type SessionConfig struct {
	Username string
}

// Load reads the optional YAML config file and applies CHAT_* environment
// overrides on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.AI.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))

	if cfg.Paths.UploadsDir == "" {
		cfg.Paths.UploadsDir = cfg.Paths.DataRoot + "/uploads"
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")

	v.SetDefault("paths.dataroot", "data")
	v.SetDefault("paths.uploadsdir", "")
	v.SetDefault("paths.tesseract", "tesseract")

	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.baseurl", "")
	v.SetDefault("ai.timeoutseconds", 60)
	v.SetDefault("ai.historywindow", 10)
	v.SetDefault("ai.contextlimit", 50000)

	v.SetDefault("session.username", "usuario_demo")
}

// Enabled reports whether the completion backend can be constructed.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && c.APIKey != ""
}

// Timeout bounds a single completion round trip.
func (c AIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// NewChatModel builds the OpenAI-backed eino chat model from this config.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("completion backend not configured: need ai.model and OPENAI_API_KEY")
	}

	return openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  c.APIKey,
		BaseURL: c.BaseURL,
		Model:   c.Model,
	})
}
