package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// walkCommands visits every command in the tree depth-first.
func walkCommands(cmd *cobra.Command, fn func(*cobra.Command)) {
	fn(cmd)
	for _, sub := range cmd.Commands() {
		walkCommands(sub, fn)
	}
}

// enrichParentLong lists a group's subcommands under its Long text, so
// "avatars account" or "avatars network" shows what can be run.
func enrichParentLong(cmd *cobra.Command) {
	if cmd == cmd.Root() || !cmd.HasAvailableSubCommands() {
		return
	}

	subs := make([]*cobra.Command, 0, len(cmd.Commands()))
	width := 0
	for _, sub := range cmd.Commands() {
		if !sub.IsAvailableCommand() {
			continue
		}
		subs = append(subs, sub)
		width = max(width, len(sub.Name()))
	}

	var sb strings.Builder
	sb.WriteString(cmd.Long)
	sb.WriteString("\n\nSubcommands:\n")
	for _, sub := range subs {
		fmt.Fprintf(&sb, "  %-*s  %s\n", width, sub.Name(), sub.Short)
	}
	fmt.Fprintf(&sb, "\nRun '%s <subcommand> --help' for details.", cmd.CommandPath())
	cmd.Long = sb.String()
}
