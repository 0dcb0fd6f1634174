package main

import (
	"fmt"
	"os"

	cerrors "github.com/virto-network/subskribinto/extrinsicClient/errors"
	"github.com/virto-network/subskribinto/utils/env"
)

// Set with -ldflags "-X main.Version=... -X main.Commit=...".
var (
	Version = "dev"
	Commit  = ""
)

func main() {
	// Load environment variables from a .env file if available
	_, _ = env.LoadEnv("")

	// Construct root command
	rootCmd := NewRootCmd()

	// Execute CLI
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for a finalized extrinsic whose dispatch failed, 1 otherwise.
func exitCode(err error) int {
	if cerrors.IsChainError(err, cerrors.ErrCodeDispatchFailed) {
		return 2
	}
	return 1
}
