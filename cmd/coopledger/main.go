package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/odyssey-erp/coopledger/cmd/coopledger/cli"
	"github.com/odyssey-erp/coopledger/internal/app"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
