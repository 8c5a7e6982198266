package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// mustFlag reads a flag through one of the FlagSet getters. Every flag is
// registered in init(), so a lookup error is a programming bug and panics.
func mustFlag[T any](name string, get func(string) (T, error)) T {
	val, err := get(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	return mustFlag(name, cmd.Flags().GetBool)
}

func mustGetString(cmd *cobra.Command, name string) string {
	return mustFlag(name, cmd.Flags().GetString)
}

// overrideFlag stores the flag value in dst only when it was given on the command
// line, so configuration values survive unset flags.
func overrideFlag[T any](cmd *cobra.Command, name string, get func(string) (T, error), dst *T) {
	if cmd.Flags().Changed(name) {
		*dst = mustFlag(name, get)
	}
}
