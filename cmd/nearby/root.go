package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"nearby/internal/telemetry"
)

var (
	logLevel string
	dbDSN    string
)

var rootCmd = &cobra.Command{
	Use:          "nearby",
	Short:        "Search for nearby places",
	Long:         `Runs location-aware place searches from a fixed point and maintains the local place catalog.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dbDSN, "dsn", os.Getenv("NEARBY_DB_DSN"), "PostgreSQL DSN for the place catalog")
}

// newLogger writes text logs to stderr so stdout stays readable.
func newLogger() (*logrus.Logger, error) {
	cfg := telemetry.DefaultLogConfig()
	cfg.Level = logLevel
	cfg.Format = "text"
	cfg.Output = "stderr"
	return telemetry.NewLogger(cfg)
}
