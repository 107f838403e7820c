package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"plandash/internal/cli"
	"plandash/internal/config"
	"plandash/internal/infrastructure"
)

func main() {
	cfg, err := config.Load(os.Getenv("PLANDASH_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	defer infrastructure.CloseLogFile()

	ctx := infrastructure.WithRunID(context.Background(), uuid.NewString())
	app := &cli.App{Config: cfg}

	// The logger is built in the root command's PersistentPreRunE so the
	// --verbose flag is honored.
	root := cli.NewTasksRootCmd(app)
	if err := root.ExecuteContext(ctx); err != nil {
		infrastructure.GetLogger().ErrorContext(ctx, "command failed", "error", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
