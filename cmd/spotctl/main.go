// Command spotctl runs single services against the spotpilot database, for
// inspecting decisions without waiting for the scheduler.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
