// README: Command-line client for running nearby searches from a fixed point and managing the place catalog.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
