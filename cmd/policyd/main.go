// policyd serves an active policy set and seeds it at startup from an
// optional JSON policy file.
//
// Usage:
//
//	# Start the service with the default configuration
//	policyd run
//
//	# Seed the store from a file, then serve
//	policyd run --policy-file /etc/policyd/policies.json
//
//	# Seed the configured store once and print the outcome
//	policyd seed --policy-file policies.json --output json
//
//	# Check a policy file without touching any store
//	policyd validate --file policies.json
//
//	# Show version information
//	policyd version
package main

import (
	"errors"
	"fmt"
	"os"

	"mercator-hq/policyd/pkg/cli"
)

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || !exitErr.Silent {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	os.Exit(cli.ExitCode(err))
}
