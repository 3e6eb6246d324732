package main

import (
	"fmt"
	"os"

	"github.com/adlytics/adlytics/internal/config"
	"github.com/adlytics/adlytics/internal/crypto"
	"github.com/adlytics/adlytics/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	// If no arguments or "serve" command, run the full node
	if len(os.Args) < 2 || os.Args[1] == "serve" {
		cfg := config.NewConfig()
		entrypoint.Run(cfg, Version)
		return
	}

	command := os.Args[1]

	switch command {
	case "worker":
		cfg := config.NewConfig()
		entrypoint.RunWorker(cfg, Version)

	case "scheduler":
		cfg := config.NewConfig()
		entrypoint.RunScheduler(cfg, Version)

	case "generate-key":
		key, err := crypto.GenerateKey()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(key)

	case "-h", "--help", "help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command>\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve         Run the HTTP API, scheduler and worker pool (default)\n")
	fmt.Fprintf(os.Stderr, "  worker        Run a standalone worker process\n")
	fmt.Fprintf(os.Stderr, "  scheduler     Run a standalone scheduler process\n")
	fmt.Fprintf(os.Stderr, "  generate-key  Generate a CREDENTIALS_KEY for encryption at rest\n")
	fmt.Fprintf(os.Stderr, "\nAll processes pointed at the same DATABASE_PATH share one job queue.\n")
}
