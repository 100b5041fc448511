package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/m4xw311/tgpt/errors"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderBedrock   = "bedrock"
	ProviderMock      = "mock"
)

// History modes decide what accompanies a chat message when no context
// window has been set.
const (
	// HistoryFull sends the whole transcript.
	HistoryFull = "full"
	// HistoryCurrent sends only the message just typed.
	HistoryCurrent = "current"
)

const (
	DefaultModel         = "gpt-3.5-turbo"
	DefaultSystemPrompt  = "You are a helpful assistant. Please provide concise and accurate responses."
	DefaultAssistantName = "ChatGPT"
	DefaultWindowSize    = 8
)

const dirName = ".tgpt"

type Config struct {
	LLMClient      string        `yaml:"llm" env:"TGPT_LLM"`
	Model          string        `yaml:"model" env:"TGPT_MODEL"`
	SystemPrompt   string        `yaml:"system_prompt" env:"TGPT_SYSTEM_PROMPT"`
	AssistantName  string        `yaml:"assistant_name" env:"TGPT_ASSISTANT_NAME"`
	HistoryDir     string        `yaml:"history_dir" env:"TGPT_HISTORY_DIR"`
	HistoryMode    string        `yaml:"history_mode" env:"TGPT_HISTORY_MODE"`
	WindowSize     int           `yaml:"window_size" env:"TGPT_WINDOW_SIZE"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"TGPT_REQUEST_TIMEOUT"`
	RenderMarkdown bool          `yaml:"render_markdown" env:"TGPT_RENDER_MARKDOWN"`
	Color          bool          `yaml:"color" env:"TGPT_COLOR"`
	LogLevel       string        `yaml:"log_level" env:"TGPT_LOG_LEVEL"`
	LogFile        string        `yaml:"log_file" env:"TGPT_LOG_FILE"`

	// Credentials only ever come from the environment.
	OpenAIAPIKey    string `yaml:"-" env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `yaml:"openai_base_url" env:"OPENAI_BASE_URL"`
	AnthropicAPIKey string `yaml:"-" env:"ANTHROPIC_API_KEY"`
	GeminiAPIKey    string `yaml:"-" env:"GEMINI_API_KEY"`
	AWSRegion       string `yaml:"aws_region" env:"AWS_REGION"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LLMClient:     ProviderOpenAI,
		Model:         DefaultModel,
		SystemPrompt:  DefaultSystemPrompt,
		AssistantName: DefaultAssistantName,
		HistoryDir:    ".",
		HistoryMode:   HistoryFull,
		WindowSize:    DefaultWindowSize,
		LogLevel:      "warn",
	}
}

// Options controls where LoadConfig looks. Zero values mean the user's home
// directory, the working directory and the process environment.
type Options struct {
	HomeDir      string
	WorkDir      string
	ExplicitPath string
	// Environment replaces the process environment when non-nil.
	Environment map[string]string
}

// LoadConfig loads configuration from the user's home directory, the current
// working directory and an optional explicit file, each overriding the one
// before. A .env file in the working directory is loaded into the process
// environment, then environment variables override file values.
func LoadConfig(opts Options) (*Config, error) {
	cfg := Default()

	home := opts.HomeDir
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = h
		}
	}
	wd := opts.WorkDir
	if wd == "" {
		var err error
		wd, err = os.Getwd()
		if err != nil {
			return nil, errors.Wrapf(err, "could not get working directory")
		}
	}

	// Load user-level config first
	if home != "" {
		if err := loadIfExists(filepath.Join(home, dirName, "config.yaml"), cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading user config")
		}
	}

	// Load project-level config, overriding user-level
	if err := loadIfExists(filepath.Join(wd, dirName, "config.yaml"), cfg); err != nil {
		return nil, errors.Wrapf(err, "error loading project config")
	}

	if opts.ExplicitPath != "" {
		if err := loadFromFile(opts.ExplicitPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading config %s", opts.ExplicitPath)
		}
	}

	if opts.Environment == nil {
		// godotenv never overrides variables that are already set.
		if err := godotenv.Load(filepath.Join(wd, ".env")); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "error loading .env")
		}
	}
	if err := env.Parse(cfg, env.Options{Environment: opts.Environment}); err != nil {
		return nil, errors.Wrapf(err, "error reading environment")
	}

	return cfg, nil
}

func loadIfExists(path string, cfg *Config) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return loadFromFile(path, cfg)
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Note: Unmarshal will overwrite fields present in the YAML. This provides
	// a simple merge where project-level config replaces user-level.
	return yaml.Unmarshal(data, cfg)
}

// Validate checks the configuration before the chat loop starts, including
// the credential of the selected provider.
func (c *Config) Validate() error {
	switch c.HistoryMode {
	case HistoryFull, HistoryCurrent:
	default:
		return errors.New("invalid history_mode '%s'. Must be '%s' or '%s'", c.HistoryMode, HistoryFull, HistoryCurrent)
	}
	if c.WindowSize <= 0 {
		return errors.New("window_size must be positive, got %d", c.WindowSize)
	}
	if c.Model == "" && c.LLMClient != ProviderMock {
		return errors.New("model must not be empty")
	}

	switch c.LLMClient {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("API key not found. Make sure to set the OPENAI_API_KEY environment variable")
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return errors.New("API key not found. Make sure to set the ANTHROPIC_API_KEY environment variable")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return errors.New("API key not found. Make sure to set the GEMINI_API_KEY environment variable")
		}
	case ProviderBedrock, ProviderMock:
	default:
		return errors.New("unknown llm '%s'. Must be one of openai, anthropic, gemini, bedrock, mock", c.LLMClient)
	}
	return nil
}
