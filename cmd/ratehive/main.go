// Package main is the single-binary entrypoint for RateHive.
package main

import "github.com/ratehive/ratehive/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
