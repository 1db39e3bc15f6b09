// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli implements the hexweb command tree: declarative Command
// values with lazy pflag flag sets, nested dispatch, structured help
// output, and typo suggestions for unknown commands and flags.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is one CLI command or subcommand.
type Command struct {
	// Name is the command name as typed by the user (e.g., "serve").
	Name string

	// Summary is a one-line description shown in the parent's help
	// listing.
	Summary string

	// Description is a detailed multi-line description shown in the
	// command's own help output.
	Description string

	// Usage is the usage line (e.g., "hexweb verify [flags]"). If
	// empty, it is synthesized from the command path.
	Usage string

	// Examples are shown in the help output after the flags.
	Examples []Example

	// Flags returns a configured *pflag.FlagSet for this command,
	// called lazily on first use. Nil means the command accepts no
	// flags.
	Flags func() *pflag.FlagSet

	// Subcommands are nested commands dispatched by the first
	// positional argument.
	Subcommands []*Command

	// Run executes the command with the arguments remaining after
	// flag parsing. Commands with subcommands may leave Run nil, in
	// which case a bare invocation prints help.
	Run func(args []string) error

	// parent is set during dispatch to build the full command path
	// for help and error text.
	parent *Command
}

// Example is a usage example shown in help output.
type Example struct {
	// Description explains what the example does.
	Description string
	// Command is the literal command line.
	Command string
}

// Execute parses args and dispatches to the matching subcommand or
// this command's Run function.
func (c *Command) Execute(args []string) error {
	if len(args) > 0 && isHelpArg(args[0]) {
		c.PrintHelp(os.Stderr)
		return nil
	}

	if len(args) > 0 && len(c.Subcommands) > 0 && !strings.HasPrefix(args[0], "-") {
		return c.dispatch(args)
	}

	// A group command invoked bare, or with only a flag, prints help.
	// Help spellings were already handled above, so any flag here is
	// one the group cannot act on.
	if len(c.Subcommands) > 0 && c.Run == nil {
		c.PrintHelp(os.Stderr)
		if len(args) == 0 {
			return fmt.Errorf("subcommand required")
		}
		return fmt.Errorf("subcommand required (got flag %q)", args[0])
	}

	if c.Flags != nil {
		flagSet := c.Flags()

		// The framework formats its own error messages, with a
		// suggestion where one helps; silence pflag's defaults.
		flagSet.SetOutput(io.Discard)

		if err := flagSet.Parse(args); err != nil {
			if strings.Contains(err.Error(), "unknown flag") ||
				strings.Contains(err.Error(), "unknown shorthand") {
				// A fresh flag set: the failed parse may have
				// consumed state on the first one.
				if suggestion := suggestFlag(args, c.Flags()); suggestion != "" {
					return fmt.Errorf("%s (did you mean %s?)\n\nRun '%s --help' for usage.",
						err, suggestion, c.fullName())
				}
			}
			return fmt.Errorf("%s\n\nRun '%s --help' for usage.", err, c.fullName())
		}
		args = flagSet.Args()
	}

	if c.Run != nil {
		return c.Run(args)
	}

	c.PrintHelp(os.Stderr)
	return fmt.Errorf("no action defined for %q", c.fullName())
}

// dispatch routes args[0] to the matching subcommand.
func (c *Command) dispatch(args []string) error {
	name := args[0]
	for _, sub := range c.Subcommands {
		if sub.Name == name {
			sub.parent = c
			return sub.Execute(args[1:])
		}
	}

	if suggestion := suggestCommand(name, c.Subcommands); suggestion != "" {
		return fmt.Errorf("unknown command %q (did you mean %q?)\n\nRun '%s --help' for usage.",
			name, suggestion, c.fullName())
	}
	return fmt.Errorf("unknown command %q\n\nRun '%s --help' for usage.", name, c.fullName())
}

// PrintHelp writes structured help output to w.
func (c *Command) PrintHelp(w io.Writer) {
	switch {
	case c.Description != "":
		fmt.Fprintf(w, "%s\n\n", c.Description)
	case c.Summary != "":
		fmt.Fprintf(w, "%s\n\n", c.Summary)
	}

	name := c.fullName()
	switch {
	case c.Usage != "":
		fmt.Fprintf(w, "Usage:\n  %s\n", c.Usage)
	case len(c.Subcommands) > 0:
		fmt.Fprintf(w, "Usage:\n  %s <command> [flags]\n", name)
	default:
		fmt.Fprintf(w, "Usage:\n  %s [flags]\n", name)
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(tw, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		tw.Flush()
	}

	if c.Flags != nil {
		flagSet := c.Flags()
		var flagHelp strings.Builder
		flagSet.SetOutput(&flagHelp)
		flagSet.PrintDefaults()
		if flagHelp.Len() > 0 {
			fmt.Fprintf(w, "\nFlags:\n%s", flagHelp.String())
		}
	}

	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "\nExamples:\n")
		for _, example := range c.Examples {
			if example.Description != "" {
				fmt.Fprintf(w, "  # %s\n", example.Description)
			}
			fmt.Fprintf(w, "  %s\n", example.Command)
			if example.Description != "" {
				fmt.Fprintln(w)
			}
		}
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", name)
	}
}

// fullName returns the complete command path (e.g., "hexweb verify").
func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

// isHelpArg reports whether arg is one of the common help spellings.
func isHelpArg(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}
