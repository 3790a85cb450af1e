// cmd/storefront/main.go
package main

import (
	"os"

	"storefront/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
