// Package main is the entry point for the Duet load test binary.
// It provides subcommands for different load testing scenarios:
//
//   - pair:  Pairing flow load test (find_partner -> partner_found latency)
//   - chat:  Full chat lifecycle load test (pair, exchange messages, leave)
//   - churn: Connect/skip/disconnect cycling test
//
// Usage:
//
//	loadtest <command> [options]
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "pair":
		runPairTest(os.Args[2:])
	case "chat":
		runChat(os.Args[2:])
	case "churn":
		runChurn(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: loadtest <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  pair        Pairing flow load test: clients request partners, time to partner_found")
	fmt.Println("  chat        Full chat lifecycle load test: pair, exchange messages, verify echo, leave")
	fmt.Println("  churn       Churn test: clients cycle through connect, skip, disconnect")
	fmt.Println()
	fmt.Println("Run 'loadtest <command> -h' for command-specific options.")
}
