// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"

	"github.com/spf13/pflag"
)

// suggestThreshold is the largest edit distance still offered as a
// suggestion. Distance 3 catches transpositions, dropped characters,
// and doubled characters without suggesting unrelated names.
const suggestThreshold = 3

// suggestCommand returns the closest subcommand name to the unknown
// input, or "" when nothing is close enough.
func suggestCommand(unknown string, commands []*Command) string {
	bestName := ""
	bestDistance := suggestThreshold + 1

	for _, command := range commands {
		if distance := levenshtein(unknown, command.Name); distance < bestDistance {
			bestDistance = distance
			bestName = command.Name
		}
	}

	return bestName
}

// suggestFlag finds the first unrecognized flag in args and returns
// the closest defined flag name with its dash prefix, or "" when no
// good suggestion exists.
func suggestFlag(args []string, flagSet *pflag.FlagSet) string {
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		name := strings.TrimLeft(arg, "-")
		if index := strings.IndexByte(name, '='); index >= 0 {
			name = name[:index]
		}
		if flagSet.Lookup(name) != nil || flagSet.ShorthandLookup(firstRune(name)) != nil {
			continue
		}

		bestName := ""
		bestDistance := suggestThreshold + 1
		flagSet.VisitAll(func(f *pflag.Flag) {
			if distance := levenshtein(name, f.Name); distance < bestDistance {
				bestDistance = distance
				bestName = f.Name
			}
		})

		if bestName == "" {
			return ""
		}
		if len(bestName) == 1 {
			return "-" + bestName
		}
		return "--" + bestName
	}

	return ""
}

// firstRune returns the first character of name when name is a single
// character, and "" otherwise. pflag shorthand lookups only accept
// one-character names.
func firstRune(name string) string {
	if len(name) == 1 {
		return name
	}
	return ""
}

// levenshtein computes the edit distance between two strings: the
// minimum number of single-character insertions, deletions, or
// substitutions turning one into the other. Uses one matrix row at a
// time, so O(min(m,n)) space.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	if len(a) > len(b) {
		a, b = b, a
	}

	previous := make([]int, len(a)+1)
	for i := range previous {
		previous[i] = i
	}

	for j := 1; j <= len(b); j++ {
		current := make([]int, len(a)+1)
		current[0] = j

		for i := 1; i <= len(a); i++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			current[i] = min(previous[i]+1, current[i-1]+1, previous[i-1]+cost)
		}

		previous = current
	}

	return previous[len(a)]
}
