package config

import (
	"math"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Input   InputConfig   `yaml:"input" mapstructure:"input"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Filter  FilterConfig  `yaml:"filter" mapstructure:"filter"`
	Augment AugmentConfig `yaml:"augment" mapstructure:"augment"`
	Adjust  AdjustConfig  `yaml:"adjust" mapstructure:"adjust"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	S3      S3Config      `yaml:"s3" mapstructure:"s3"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// InputConfig locates the per-dataset tables.
type InputConfig struct {
	// FolderPath is a local directory, a .zip archive, a single table, or an
	// ftp://, http(s):// or s3:// location.
	FolderPath string `yaml:"folder_path" mapstructure:"folder_path"`
	Pattern    string `yaml:"pattern" mapstructure:"pattern"`
	Delimiter  string `yaml:"delimiter" mapstructure:"delimiter"`
}

// OutputConfig configures where the merged table goes.
type OutputConfig struct {
	File   string `yaml:"file" mapstructure:"file"`
	Format string `yaml:"format" mapstructure:"format"`
	Table  string `yaml:"table" mapstructure:"table"`
}

// FilterConfig configures the post-adjustment filter.
type FilterConfig struct {
	QValue *float64 `yaml:"qvalue" mapstructure:"qvalue"`
	Decoy  bool     `yaml:"decoy" mapstructure:"decoy"`
}

// AugmentConfig configures per-dataset decoy synthesis.
type AugmentConfig struct {
	Concurrency     int  `yaml:"concurrency" mapstructure:"concurrency"`
	KeepInputDecoys bool `yaml:"keep_input_decoys" mapstructure:"keep_input_decoys"`
}

// AdjustConfig configures the global q-value adjustment.
type AdjustConfig struct {
	UndefinedRatio string `yaml:"undefined_ratio" mapstructure:"undefined_ratio"`
}

// FetchConfig configures remote dataset downloads.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// S3Config configures s3:// inputs and outputs.
type S3Config struct {
	Region          string `yaml:"region" mapstructure:"region"`
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"`
	PathStyle       bool   `yaml:"path_style" mapstructure:"path_style"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. An empty path
// searches for config.yaml in the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MADDECOY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("input.pattern", "*.tsv")
	v.SetDefault("input.delimiter", "auto")
	v.SetDefault("output.table", "protein_qvalues")
	v.SetDefault("filter.decoy", false)
	v.SetDefault("augment.concurrency", 4)
	v.SetDefault("augment.keep_input_decoys", false)
	v.SetDefault("adjust.undefined_ratio", "keep")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_limit", 5.0)
	v.SetDefault("fetch.user_agent", "mad-decoy/1.0")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{"input.folder_path", "output.file", "output.format", "filter.qvalue", "s3.endpoint", "s3.access_key_id", "s3.secret_access_key"} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// tableName accepts table or schema.table.
var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Validate checks the values a merge run depends on.
func (c *Config) Validate() error {
	var problems []string

	if c.Input.FolderPath == "" {
		problems = append(problems, "input.folder_path is required")
	}
	if c.Output.File == "" {
		problems = append(problems, "output.file is required")
	}
	if q := c.Filter.QValue; q != nil && (math.IsNaN(*q) || *q < 0 || *q > 1) {
		problems = append(problems, "filter.qvalue must be within [0, 1]")
	}
	if c.Augment.Concurrency < 1 {
		problems = append(problems, "augment.concurrency must be at least 1")
	}
	switch c.Input.Delimiter {
	case "auto", "tab", "comma":
	default:
		problems = append(problems, "input.delimiter must be auto, tab or comma")
	}
	switch c.Adjust.UndefinedRatio {
	case "keep", "clamp", "error":
	default:
		problems = append(problems, "adjust.undefined_ratio must be keep, clamp or error")
	}
	switch c.Output.Format {
	case "", "csv", "tsv", "xlsx", "sqlite", "postgres":
	default:
		problems = append(problems, "output.format must be csv, tsv, xlsx, sqlite or postgres")
	}
	if !tableName.MatchString(c.Output.Table) {
		problems = append(problems, "output.table must be a SQL identifier or schema.table")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
	zap.ReplaceGlobals(logger)

	return nil
}
