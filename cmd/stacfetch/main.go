package main

import (
	"fmt"
	"io"
	"os"
)

// Exit codes
const (
	ExitSuccess          = 0
	ExitGeneralError     = 1
	ExitInvalidArgs      = 2
	ExitSourceNotAccess  = 3
	ExitConfigError      = 4
	ExitStorageError     = 5
	ExitValidationFailed = 7
	ExitInterrupted      = 130
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// stdout receives the downloaded paths; status goes to stderr.
var stdout io.Writer = os.Stdout

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "asset":
		return runAsset(cmdArgs)
	case "product":
		return runProduct(cmdArgs)
	case "products":
		return runProducts(cmdArgs)
	case "order":
		return runOrder(cmdArgs)
	case "version":
		fmt.Fprintln(stdout, "stacfetch", version)
		return ExitSuccess
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: stacfetch <command> [options]

Commands:
  asset     Download a single presigned URL
  product   Download the assets of one product document
  products  Download every product of an item document or prefix
  order     Download the products stored for an order, tasking or collect id
  version   Print the version

Run 'stacfetch <command> -h' for command-specific help.`)
}
