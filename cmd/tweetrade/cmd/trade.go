package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rustyeddy/tweetrade/engine"
	"github.com/rustyeddy/tweetrade/journal"
	"github.com/rustyeddy/tweetrade/rules"
	"github.com/rustyeddy/tweetrade/stream"
	"github.com/rustyeddy/tweetrade/vault"
	"github.com/rustyeddy/tweetrade/venue"
)

var tradeCmd = &cobra.Command{
	Use:   "trade",
	Short: "Run the bot against the live stream",
	Long: `Load a rule set, unlock the vault profile, verify the venue
credentials, and then watch the tweet stream until interrupted.

Rules are validated before any network connection is made: a rule set
that fails validation never places an order. Credential verification
fetches the account balances once; an authentication failure aborts
startup with a non-zero exit.

Example:
  tweetrade trade
  tweetrade trade -p paper -r ./rules.yaml -i 300 -s 1`,
	Args: cobra.NoArgs,
	RunE: runTrade,
}

var (
	tradeProfile  string
	tradeRules    string
	tradeInterval float64
	tradeSleep    float64
)

func init() {
	rootCmd.AddCommand(tradeCmd)

	tradeCmd.Flags().StringVarP(&tradeProfile, "profile", "p", "default", "vault profile to unlock")
	tradeCmd.Flags().StringVarP(&tradeRules, "rules", "r", "", "rule set path (default from config)")
	tradeCmd.Flags().Float64VarP(&tradeInterval, "interval", "i", 905, "seconds to wait after a rate-limit disconnect")
	tradeCmd.Flags().Float64VarP(&tradeSleep, "sleep", "s", 0.5, "seconds between order submissions")
}

func runTrade(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("profile") || cfg.Vault.Profile == "" {
		cfg.Vault.Profile = tradeProfile
	}
	if tradeRules != "" {
		cfg.Rules.Path = tradeRules
	}
	if cmd.Flags().Changed("interval") {
		cfg.Stream.Interval = tradeInterval
	}
	if cmd.Flags().Changed("sleep") {
		cfg.Stream.Sleep = tradeSleep
	}

	// Rules first: a bad rule set must fail before any password prompt or
	// network call.
	rs, err := rules.Load(cfg.Rules.Path)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	if len(rs) == 0 {
		return fmt.Errorf("rule set %s contains no rules", cfg.Rules.Path)
	}
	log.WithField("rules", len(rs)).Info("rule set validated")

	password, err := promptPassword()
	if err != nil {
		return err
	}

	store := vault.NewStore(cfg.Vault.Path, log)
	fields, err := store.ReadProfile(cfg.Vault.Profile, password)
	if err != nil {
		return fmt.Errorf("unlock profile %q: %w", cfg.Vault.Profile, err)
	}
	creds, err := fieldMap(fields)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := venue.NewClient(creds[labelVenueKey], creds[labelVenueSecret],
		creds[labelVenuePassphrase], venue.DefaultBaseURL)

	// One balances call proves the credentials before we subscribe. A wrong
	// password yields garbage secrets, which surface here as an auth error.
	balances, err := client.GetBalances(ctx)
	if err != nil {
		if venue.IsAuthError(err) {
			return fmt.Errorf("venue rejected the credentials (wrong password or stale keys): %w", err)
		}
		return fmt.Errorf("verify credentials: %w", err)
	}
	log.WithField("currencies", len(balances)).Info("venue credentials verified")

	j, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	eng := engine.New(engine.Config{
		Rules:   rs,
		Venue:   client,
		Journal: j,
		Log:     log,
		Sleep:   cfg.Stream.SleepDuration(),
	})

	source := stream.NewWebsocketSource(stream.WebsocketConfig{
		URL:               cfg.Stream.URL,
		ConsumerKey:       creds[labelConsumerKey],
		ConsumerSecret:    creds[labelConsumerSecret],
		AccessToken:       creds[labelAccessToken],
		AccessTokenSecret: creds[labelAccessTokenSecret],
	})

	filter := rules.Filter(rs)
	sup := stream.New(stream.Config{
		Source:  source,
		Handler: eng,
		Filter: stream.Filter{
			Handles:  filter.Handles,
			Keywords: filter.Keywords,
		},
		Backoff: time.Duration(cfg.Stream.Interval * float64(time.Second)),
		Log:     log,
	})

	log.WithFields(logrus.Fields{
		"handles":  len(filter.Handles),
		"keywords": len(filter.Keywords),
	}).Info("connecting to stream")

	if err := sup.Run(ctx); err != nil {
		return fmt.Errorf("stream: %w", err)
	}
	log.Info("stopped")
	return nil
}

func promptPassword() (string, error) {
	fmt.Print("Vault password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(password), nil
}
