package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Anthropic    AnthropicConfig    `yaml:"anthropic" mapstructure:"anthropic"`
	Investigator InvestigatorConfig `yaml:"investigator" mapstructure:"investigator"`
	Document     DocumentConfig     `yaml:"document" mapstructure:"document"`
	Export       ExportConfig       `yaml:"export" mapstructure:"export"`
	Report       ReportConfig       `yaml:"report" mapstructure:"report"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key               string  `yaml:"key" mapstructure:"key"`
	Model             string  `yaml:"model" mapstructure:"model"`
	MaxTokens         int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature       float64 `yaml:"temperature" mapstructure:"temperature"`
	TopP              float64 `yaml:"top_p" mapstructure:"top_p"`
	RequestsPerMinute int     `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// InvestigatorConfig controls question answering.
type InvestigatorConfig struct {
	MaxContextChars  int      `yaml:"max_context_chars" mapstructure:"max_context_chars"`
	SupportedTypes   []string `yaml:"supported_types" mapstructure:"supported_types"`
	UnknownAnswer    string   `yaml:"unknown_answer" mapstructure:"unknown_answer"`
	NotAllowedAnswer string   `yaml:"not_allowed_answer" mapstructure:"not_allowed_answer"`
	NoReasonGiven    string   `yaml:"no_reason_given" mapstructure:"no_reason_given"`
}

// DocumentConfig selects extraction backends.
type DocumentConfig struct {
	PDFExtractor  string `yaml:"pdf_extractor" mapstructure:"pdf_extractor"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// ExportConfig configures the evaluation CSV snapshot.
type ExportConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ReportConfig configures profiling reports.
type ReportConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
	Title     string `yaml:"title" mapstructure:"title"`
}

// ServerConfig configures the local HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging. When Dir is set, JSON logs are also written
// to Dir/app.log with size-based rotation.
type LogConfig struct {
	Level     string `yaml:"level" mapstructure:"level"`
	Format    string `yaml:"format" mapstructure:"format"`
	Dir       string `yaml:"dir" mapstructure:"dir"`
	MaxFiles  int    `yaml:"max_files" mapstructure:"max_files"`
	MaxSizeMB int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DOCINV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/interactions.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.temperature", 0.2)
	v.SetDefault("anthropic.top_p", 0)
	v.SetDefault("anthropic.requests_per_minute", 50)
	v.SetDefault("anthropic.timeout_secs", 120)
	v.SetDefault("investigator.max_context_chars", 800000)
	v.SetDefault("investigator.supported_types", []string{".pdf", ".docx", ".txt", ".xlsx"})
	v.SetDefault("investigator.unknown_answer", "Your request is unknown, associated information is not available. Please try again!")
	v.SetDefault("investigator.not_allowed_answer", "Sorry, your task is not allowed. Please try again!")
	v.SetDefault("investigator.no_reason_given", "no reason given")
	v.SetDefault("document.pdf_extractor", "native")
	v.SetDefault("document.pdftotext_path", "pdftotext")
	v.SetDefault("export.path", "data/evaluations.csv")
	v.SetDefault("report.output_dir", "reports")
	v.SetDefault("report.title", "Document Investigator Evaluation Report")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.max_files", 5)
	v.SetDefault("log.max_size_mb", 10)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes: "ask",
// "serve", "store".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "store":
	case "ask", "serve":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
		if c.Anthropic.Model == "" {
			errs = append(errs, "anthropic.model is required")
		}
		if c.Anthropic.Temperature < 0 || c.Anthropic.Temperature > 1 {
			errs = append(errs, "anthropic.temperature must be between 0 and 1")
		}
		if c.Anthropic.TopP < 0 || c.Anthropic.TopP > 1 {
			errs = append(errs, "anthropic.top_p must be between 0 and 1")
		}
		if c.Investigator.MaxContextChars <= 0 {
			errs = append(errs, "investigator.max_context_chars must be > 0")
		}
		switch c.Document.PDFExtractor {
		case "", "native", "pdftotext":
		default:
			errs = append(errs, "document.pdf_extractor must be native or pdftotext")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}

	if cfg.Dir != "" {
		sink, err := fileSink(cfg)
		if err != nil {
			return err
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(sink),
			zapCfg.Level,
		)
		logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}
	zap.ReplaceGlobals(logger)

	return nil
}

func fileSink(cfg LogConfig) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "config: create log dir %s", cfg.Dir)
	}
	maxFiles, maxSize := cfg.MaxFiles, cfg.MaxSizeMB
	if maxFiles <= 0 {
		maxFiles = 5
	}
	if maxSize <= 0 {
		maxSize = 10
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, "app.log"),
		MaxBackups: maxFiles,
		MaxSize:    maxSize,
		Compress:   true,
	}, nil
}
