package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the tweetrade CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tweetrade version %s\n", version)
		fmt.Println("A tweet-driven crypto trading bot")
		fmt.Println("https://github.com/rustyeddy/tweetrade")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
