package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rustyeddy/tweetrade/vault"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Create or replace a credential profile",
	Long: `Prompt for venue and stream credentials and write them to the vault.

Secrets are encrypted with a key derived from the vault password and are
never echoed. Public identifiers (API keys, access tokens) stay readable
in the vault file. Writing an existing profile replaces it wholesale.

Example:
  tweetrade configure
  tweetrade configure --profile paper`,
	Args: cobra.NoArgs,
	RunE: runConfigure,
}

var configureProfile string

func init() {
	rootCmd.AddCommand(configureCmd)

	configureCmd.Flags().StringVarP(&configureProfile, "profile", "p", "default", "profile name to write")
}

func runConfigure(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	password, err := promptNewPassword()
	if err != nil {
		return err
	}

	in := bufio.NewReader(os.Stdin)
	fields := make([]vault.Field, 0, len(profileFields))
	for _, f := range profileFields {
		value, err := promptField(in, f)
		if err != nil {
			return err
		}
		f.Value = value
		fields = append(fields, f)
	}

	store := vault.NewStore(cfg.Vault.Path, newLogger())
	if err := store.WriteProfile(configureProfile, password, fields); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}

	fmt.Printf("Profile %q written to %s\n", configureProfile, cfg.Vault.Path)
	return nil
}

func promptNewPassword() (string, error) {
	fmt.Print("Vault password: ")
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Print("Confirm password: ")
	second, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	if len(first) == 0 {
		return "", fmt.Errorf("password must not be empty")
	}
	return string(first), nil
}

func promptField(in *bufio.Reader, f vault.Field) (string, error) {
	if f.Public {
		fmt.Printf("%s: ", f.Label)
		line, err := in.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("read %s: %w", f.Label, err)
		}
		return strings.TrimSpace(line), nil
	}

	fmt.Printf("%s (hidden): ", f.Label)
	value, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Label, err)
	}
	return string(value), nil
}
