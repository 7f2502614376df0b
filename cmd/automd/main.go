// Command automd is the automation engine daemon: an HTTP API for rule
// management and event ingestion, a queue worker, and a migration runner.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sysprohq/automation/internal/config"
)

var flagConfig string

// fileConfig mirrors the environment variables automd reads. Values from the
// file only apply when the corresponding variable is unset; the environment
// always wins.
type fileConfig struct {
	DatabaseURL    string `yaml:"database_url"`
	Port           string `yaml:"port"`
	ListenHost     string `yaml:"listen_host"`
	LogLevel       string `yaml:"log_level"`
	CORSOrigins    string `yaml:"cors_origins"`
	WorkerInterval string `yaml:"worker_interval"`

	ReportUploadBaseURL string `yaml:"report_upload_base_url"`
	ReportUploadURL     string `yaml:"report_upload_url"`
	ReportUploadMethod  string `yaml:"report_upload_method"`
}

// applyConfigFile loads the optional YAML config file into the environment.
func applyConfigFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	setEnvDefault("DATABASE_URL", fc.DatabaseURL)
	setEnvDefault("PORT", fc.Port)
	setEnvDefault("LISTEN_HOST", fc.ListenHost)
	setEnvDefault("LOG_LEVEL", fc.LogLevel)
	setEnvDefault("CORS_ORIGINS", fc.CORSOrigins)
	setEnvDefault("WORKER_INTERVAL", fc.WorkerInterval)
	setEnvDefault("REPORT_UPLOAD_BASE_URL", fc.ReportUploadBaseURL)
	setEnvDefault("REPORT_UPLOAD_URL", fc.ReportUploadURL)
	setEnvDefault("REPORT_UPLOAD_METHOD", fc.ReportUploadMethod)

	return nil
}

func setEnvDefault(key, value string) {
	if value == "" {
		return
	}
	if _, exists := os.LookupEnv(key); exists {
		return
	}
	os.Setenv(key, value) //nolint:errcheck // env set cannot fail here.
}

// loadConfig applies the optional config file, then reads the environment.
func loadConfig() (*config.Config, error) {
	if flagConfig != "" {
		if err := applyConfigFile(flagConfig); err != nil {
			return nil, err
		}
	}

	return config.Load()
}

// newLogger builds the process logger from the configured level.
func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	return log
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "automd",
		Short:         "automd — multi-tenant rule automation engine",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to YAML config file (environment variables take precedence)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newWorkerCmd())
	rootCmd.AddCommand(newMigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
