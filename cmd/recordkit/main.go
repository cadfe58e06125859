// Package main provides the recordkit CLI.
package main

import (
	"os"

	"github.com/roach88/recordkit/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
