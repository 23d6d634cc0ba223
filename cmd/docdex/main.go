// Package main provides the entry point for the docdex CLI.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/gmickel/docdex/cmd/docdex/cmd"
)

func main() {
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
