// Package main is the entry point for the jitctl CLI binary.
package main

import (
	"os"

	"github.com/felix-codexyz/just-in-time-aws-access-management/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
