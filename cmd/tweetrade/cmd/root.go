package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/tweetrade/config"
)

var rootCmd = &cobra.Command{
	Use:   "tweetrade",
	Short: "A tweet-driven crypto trading bot",
	Long: `Tweetrade watches a filtered tweet stream and places exchange orders
when operator-defined rules match.

It provides tools for:
  - Storing venue and stream credentials in an encrypted vault
  - Validating rule sets before any network connection is made
  - Running the live stream with automatic reconnect and backoff
  - Querying the journal of matches and placed orders

Complete documentation is available at https://github.com/rustyeddy/tweetrade`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

var (
	cfgFile string
	verbose bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tweetrade/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// newLogger builds the process logger the way every subcommand expects it.
func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// loadConfig reads the config file when one exists and falls back to
// defaults otherwise. An explicit --config that cannot be read is an error;
// a missing default path is not.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}
	def := config.Default()
	path := defaultConfigPath()
	if _, err := os.Stat(path); err != nil {
		return def, nil
	}
	return config.LoadFromFile(path)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return home + "/.tweetrade/config.yaml"
}
