package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"ragsql/internal/inference"
	"ragsql/internal/llm"
)

// DefaultConfigFile is read when --config is not given. It may be absent.
const DefaultConfigFile = "config.json"

// EnvAPIKey holds the OpenRouter API key.
const EnvAPIKey = "OPENROUTER_API_KEY"

// Config 评测运行配置
type Config struct {
	Dataset     string `mapstructure:"dataset" validate:"required,oneof=bird spider-1.0"`
	DatasetRoot string `mapstructure:"dataset_root" validate:"required"`
	NumItems    int    `mapstructure:"num_items" validate:"gte=1"`
	Seed        string `mapstructure:"seed"`
	TopK        int    `mapstructure:"top_k" validate:"gte=1"`

	Model       string        `mapstructure:"model" validate:"required"`
	BaseURL     string        `mapstructure:"base_url" validate:"required,url"`
	APIKey      string        `mapstructure:"api_key" validate:"required"`
	CallTimeout time.Duration `mapstructure:"call_timeout" validate:"gt=0"`

	LinkAttempts int           `mapstructure:"link_attempts" validate:"gte=1"`
	LinkDelay    time.Duration `mapstructure:"link_delay" validate:"gte=0"`
	SQLAttempts  int           `mapstructure:"sql_attempts" validate:"gte=1"`
	SQLDelay     time.Duration `mapstructure:"sql_delay" validate:"gte=0"`
	Cooldown     time.Duration `mapstructure:"cooldown" validate:"gte=0"`
	QueryTimeout time.Duration `mapstructure:"query_timeout" validate:"gte=0"`

	OutputDir string `mapstructure:"output_dir" validate:"required"`
	LogLevel  string `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// ModelConfig returns the model client settings.
func (c *Config) ModelConfig() llm.ModelConfig {
	return llm.ModelConfig{ModelName: c.Model, Token: c.APIKey, BaseURL: c.BaseURL}
}

func (c *Config) GeneratorConfig() inference.GeneratorConfig {
	return inference.GeneratorConfig{
		LinkAttempts: c.LinkAttempts,
		LinkDelay:    c.LinkDelay,
		SQLAttempts:  c.SQLAttempts,
		SQLDelay:     c.SQLDelay,
	}
}

type option struct {
	key   string
	value any
	usage string
}

var retryDefaults = inference.DefaultGeneratorConfig()

var options = []option{
	{"dataset", "", "benchmark to evaluate: bird or spider-1.0"},
	{"dataset_root", "Dataset", "directory holding the benchmark folders"},
	{"num_items", 25, "number of dev questions to sample"},
	{"seed", "fall-2025-cosc-5600-graduate-project-sapostu", "sampling seed"},
	{"top_k", 5, "few-shot examples retrieved per question"},
	{"model", llm.DefaultModel, "model name"},
	{"base_url", llm.DefaultBaseURL, "OpenAI-compatible API endpoint"},
	{"api_key", "", "API key (default $" + EnvAPIKey + ")"},
	{"call_timeout", 10 * time.Second, "timeout of one model call"},
	{"link_attempts", retryDefaults.LinkAttempts, "schema linking attempts per question"},
	{"link_delay", retryDefaults.LinkDelay, "pause between schema linking attempts"},
	{"sql_attempts", retryDefaults.SQLAttempts, "SQL generation attempts per question"},
	{"sql_delay", retryDefaults.SQLDelay, "pause between SQL generation attempts"},
	{"cooldown", inference.DefaultCooldown, "pause between schema linking and SQL generation"},
	{"query_timeout", 30 * time.Second, "timeout of one SQL execution (0 disables)"},
	{"output_dir", "results", "directory for run outputs"},
	{"log_level", "", "structured log level: debug, info, warn or error"},
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// NewFlagSet declares one flag per option plus --config.
func NewFlagSet(name string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.String("config", DefaultConfigFile, "JSON config file")
	for _, o := range options {
		switch v := o.value.(type) {
		case string:
			flags.String(flagName(o.key), v, o.usage)
		case int:
			flags.Int(flagName(o.key), v, o.usage)
		case time.Duration:
			flags.Duration(flagName(o.key), v, o.usage)
		}
	}
	return flags
}

// Load parses args and resolves every option. Precedence is flag, then
// environment, then config file, then default. pflag.ErrHelp is returned
// as is for --help.
func Load(name string, args []string) (*Config, error) {
	flags := NewFlagSet(name)
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	return FromFlags(flags)
}

// FromFlags resolves the configuration for an already parsed flag set.
func FromFlags(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for _, o := range options {
		v.SetDefault(o.key, o.value)
		if f := flags.Lookup(flagName(o.key)); f != nil {
			if err := v.BindPFlag(o.key, f); err != nil {
				return nil, err
			}
		}
	}

	v.SetEnvPrefix("RAGSQL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("api_key", EnvAPIKey, "RAGSQL_API_KEY"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("log_level", "RAGSQL_LOG_LEVEL", "LOG_LEVEL"); err != nil {
		return nil, err
	}

	if err := readConfigFile(v, flags); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Dataset = strings.ToLower(strings.TrimSpace(cfg.Dataset))
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// readConfigFile merges the JSON config file. The default file may be
// missing; an explicitly named one may not. The API key may be stored as
// api_key or OPENROUTER_API_KEY.
func readConfigFile(v *viper.Viper, flags *pflag.FlagSet) error {
	path := DefaultConfigFile
	explicit := false
	if f := flags.Lookup("config"); f != nil {
		path = f.Value.String()
		explicit = f.Changed
	}
	if path == "" {
		return nil
	}

	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	if !v.InConfig("api_key") && v.InConfig(strings.ToLower(EnvAPIKey)) {
		v.SetDefault("api_key", v.GetString(strings.ToLower(EnvAPIKey)))
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	instance := validator.New(validator.WithRequiredStructEnabled())
	// report option keys instead of Go field names
	instance.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("mapstructure")
	})
	return instance
}

// Validate checks cfg and lists every invalid option in one error.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = describe(fe)
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Field() == "api_key" {
			return "api_key is required (set " + EnvAPIKey + " or add it to " + DefaultConfigFile + ")"
		}
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s must satisfy %s=%s, got %v", fe.Field(), fe.Tag(), fe.Param(), fe.Value())
	}
}
