package main

import (
	"context"
	"fmt"
	"os"

	"vegcover/internal/cli"
)

// main is a thin process boundary: option resolution, execution and
// exit-code mapping all live in internal/cli.
func main() {
	code, err := cli.Run(context.Background(), os.Args[1:], os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(code)
}
