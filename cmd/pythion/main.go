// pythion generates Python docstrings with an OpenAI-compatible model.
package main

import (
	"fmt"
	"os"

	"github.com/phobologic/pythion/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
