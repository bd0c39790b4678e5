// Command enprot selectively encrypts, decrypts, stores, or fetches
// labeled regions of a text document.
package main

import (
	"os"

	"github.com/enprot/enprot/internal/cli"
)

const version = "v0.1"

func main() {
	os.Exit(cli.Execute(version))
}
