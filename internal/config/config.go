package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store StoreConfig `yaml:"store" mapstructure:"store"`
	Data  DataConfig  `yaml:"data" mapstructure:"data"`
	Train TrainConfig `yaml:"train" mapstructure:"train"`
	Tune  TuneConfig  `yaml:"tune" mapstructure:"tune"`
	Log   LogConfig   `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the local run store.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// DataConfig configures where the five source tables come from and how the
// holdout partition is cut.
type DataConfig struct {
	Source       string `yaml:"source" mapstructure:"source"`             // csv | xlsx | postgres
	Dir          string `yaml:"dir" mapstructure:"dir"`                   // csv: directory holding the five table files
	Workbook     string `yaml:"workbook" mapstructure:"workbook"`         // xlsx: workbook path, one sheet per table
	DatabaseURL  string `yaml:"database_url" mapstructure:"database_url"` // postgres: connection string
	Schema       string `yaml:"schema" mapstructure:"schema"`
	HoldoutYear  int    `yaml:"holdout_year" mapstructure:"holdout_year"`
	HoldoutMonth int    `yaml:"holdout_month" mapstructure:"holdout_month"`
}

// TrainConfig configures the cross-validated ensemble run.
type TrainConfig struct {
	Folds          int     `yaml:"folds" mapstructure:"folds"`
	Seed           int64   `yaml:"seed" mapstructure:"seed"`
	Smoothing      float64 `yaml:"smoothing" mapstructure:"smoothing"`
	SMOTERatio     float64 `yaml:"smote_ratio" mapstructure:"smote_ratio"`
	MaxRounds      int     `yaml:"max_rounds" mapstructure:"max_rounds"`
	Patience       int     `yaml:"patience" mapstructure:"patience"`
	ThresholdMin   float64 `yaml:"threshold_min" mapstructure:"threshold_min"`
	ThresholdMax   float64 `yaml:"threshold_max" mapstructure:"threshold_max"`
	ThresholdSteps int     `yaml:"threshold_steps" mapstructure:"threshold_steps"`
	ParallelFolds  bool    `yaml:"parallel_folds" mapstructure:"parallel_folds"`
}

// TuneConfig configures the hyperparameter search collaborator.
type TuneConfig struct {
	Trials int   `yaml:"trials" mapstructure:"trials"`
	Folds  int   `yaml:"folds" mapstructure:"folds"`
	Seed   int64 `yaml:"seed" mapstructure:"seed"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SUBRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.path", "subro.db")
	v.SetDefault("data.source", "csv")
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.schema", "stg")
	v.SetDefault("data.holdout_year", 2016)
	v.SetDefault("data.holdout_month", 9)
	v.SetDefault("train.folds", 5)
	v.SetDefault("train.seed", 42)
	v.SetDefault("train.smoothing", 30)
	v.SetDefault("train.smote_ratio", 0.5)
	v.SetDefault("train.max_rounds", 2000)
	v.SetDefault("train.patience", 150)
	v.SetDefault("train.threshold_min", 0.20)
	v.SetDefault("train.threshold_max", 0.40)
	v.SetDefault("train.threshold_steps", 41)
	v.SetDefault("train.parallel_folds", true)
	v.SetDefault("tune.trials", 20)
	v.SetDefault("tune.folds", 5)
	v.SetDefault("tune.seed", 42)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
