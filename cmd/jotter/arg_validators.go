package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func requireAtLeastArgs(min int, message string) cobra.PositionalArgs {
	return requireArgCount(func(n int) bool { return n >= min }, message)
}

func requireExactlyArgs(count int, message string) cobra.PositionalArgs {
	return requireArgCount(func(n int) bool { return n == count }, message)
}

// requireArgCount appends the usage line so a bare message still says what
// the command expects.
func requireArgCount(ok func(int) bool, message string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if !ok(len(args)) {
			return fmt.Errorf("%s (usage: %s)", message, cmd.UseLine())
		}
		return nil
	}
}
