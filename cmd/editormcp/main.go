// Package main provides the entry point for the editormcp CLI.
package main

import (
	"fmt"
	"os"

	"github.com/localrivet/editormcp/cmd/editormcp/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
