// Command marketdash serves and queries the market dashboard.
package main

import (
	"fmt"
	"os"

	"market-dashboard/internal/cli"
	"market-dashboard/internal/logging"
)

func main() {
	if err := cli.NewRootCmd(logging.NewLogger()).Execute(); err != nil {
		if !cli.Reported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
