package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tweetrade/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Work with rule sets",
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Validate a rule set without connecting",
	Long: `Parse and validate a rule set, reporting the first problem found.

Validation probe-evaluates every condition and amount expression, so a
rule set that passes here will not fail expression evaluation live.

Example:
  tweetrade rules check ./rules.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRulesCheck,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesCheckCmd)
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		path = cfg.Rules.Path
	}

	rs, err := rules.Load(path)
	if err != nil {
		var verr *rules.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%s: %w", path, verr)
		}
		return fmt.Errorf("load rules: %w", err)
	}

	filter := rules.Filter(rs)
	fmt.Printf("%s: %d rule(s) valid\n", path, len(rs))
	fmt.Printf("  subscription: %d handle(s), %d keyword(s)\n", len(filter.Handles), len(filter.Keywords))
	return nil
}
