package cmd

import (
	"errors"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cpl-matcher/internal/catalog"
	"github.com/spigell/cpl-matcher/internal/enrichment"
	"github.com/spigell/cpl-matcher/internal/enrichment/web"
	"github.com/spigell/cpl-matcher/internal/gating"
	"github.com/spigell/cpl-matcher/internal/logger"
	"github.com/spigell/cpl-matcher/internal/similarity/onnx"
	"github.com/spigell/cpl-matcher/internal/store"
)

const (
	app = "cpl-matcher"

	defaultDatabase = "cpl.db"
)

type Config struct {
	Database     string           `mapstructure:"database"`
	Catalog      catalog.Options  `mapstructure:"catalog"`
	Matching     MatchingConfig   `mapstructure:"matching"`
	Gate         gating.Config    `mapstructure:"gate"`
	Embeddings   onnx.Config      `mapstructure:"embeddings"`
	Enrichment   EnrichmentConfig `mapstructure:"enrichment"`
	Institutions web.Registry     `mapstructure:"institutions"`
	AI           *AIConfig        `mapstructure:"ai"`
}

type MatchingConfig struct {
	TopK    int `mapstructure:"top-k"`
	Workers int `mapstructure:"workers"`
}

type EnrichmentConfig struct {
	enrichment.Options `mapstructure:",squash"`
	Web                web.Config `mapstructure:"web"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cpl-matcher suggests catalog equivalents for units completed elsewhere (credit for prior learning)",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("database", "CPL_DATABASE"); err != nil {
		log.Fatalf("binding CPL_DATABASE environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	viper.SetDefault("database", defaultDatabase)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cpl-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("database", "", "path to the sqlite database (default is cpl.db)")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("database", rootCmd.PersistentFlags().Lookup("database"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// A missing default config is fine: every key has a usable default.
	// An explicit or unparseable one is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}

// setup builds the named logger and the config every command starts from.
func setup(command string) (*zap.Logger, *Config) {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"), command)
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		l.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		config = &Config{Database: defaultDatabase}
	}

	return l, config
}

func openStore(config *Config, l *zap.Logger) *store.Store {
	db, err := store.Open(config.Database)
	if err != nil {
		l.Fatal("opening the database", zap.Error(err), zap.String("database", config.Database))
	}
	l.Debug("database opened", zap.String("database", db.Path()))
	return db
}
