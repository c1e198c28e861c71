// Package main is the entry point for wgfctl, the WeGetFunded support console.
package main

import (
	"os"

	"supportconsole/cmd/console/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
