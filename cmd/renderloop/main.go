// cmd/renderloop/main.go
//
// Entry point for the renderloop CLI. Running `renderloop` with no arguments
// renders the source document once per configured parameter value, one render
// at a time. A failed render never stops the loop.

package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
