// Command papapizza orders pizza from the terminal and runs the development
// order API.
package main

import (
	"context"
	"os"

	"github.com/roach88/papapizza/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
