// Package main provides the entry point for the corerag CLI.
package main

import (
	"github.com/ragforge/corerag/cmd/corerag/cmd"
)

func main() {
	cmd.Execute()
}
