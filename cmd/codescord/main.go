package main

import (
	"fmt"
	"log/slog"
	"os"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "client":
		runClient(os.Args[2:])
	case "server":
		runServer(os.Args[2:])
	case "create-database":
		runCreateDatabase(os.Args[2:])
	case "build-docker-image":
		runBuildDockerImage(os.Args[2:])
	case "version":
		fmt.Printf("codescord v%s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`codescord v` + version + `

Usage: codescord <command> [flags]

Commands:
  client               Run the broker: admin HTTP surface + container pool + façade
  server                Run the in-container worker (language runner)
  create-database       Provision the submissions table on the configured backend
  build-docker-image    Build the worker image used by the pool
  version                Print version
  help                   Show this help

Flags (client):
  -p START:END           Port range for the container pool (default from config)

Environment:
  CONFIG_PATH             Path to config.yaml (default "config.yaml")
  ADMIN_ADDR, POOL_*, WORKER_*, DATABASE_*, RATE_LIMIT_*   see config.go for overrides`)
}

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}
