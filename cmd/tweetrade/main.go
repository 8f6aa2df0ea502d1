package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/rustyeddy/tweetrade/cmd/tweetrade/cmd"
)

func main() {
	// A missing .env is fine; the environment still applies.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
