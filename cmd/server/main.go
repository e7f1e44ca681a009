// Package main is the entry point for the choir hub server.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main" package.
// The main package should be kept minimal: it parses the command line, loads
// configuration, builds the logger and hands over to internal/server.
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
//
// COMMANDS:
// The binary is a small cobra application (commands.go):
//
//	choirhub              same as "serve"
//	choirhub serve        run the HTTP server
//	choirhub migrate      apply database migrations and print the version
//	choirhub seed         create the demo member (code 11916339)
//	choirhub admin-token  mint a JWT for the admin API
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
