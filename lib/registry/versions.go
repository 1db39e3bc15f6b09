// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// compareVersions orders two version strings by semantic-version
// precedence. Ties under precedence (versions differing only in build
// metadata) fall back to a byte comparison so the overall order stays
// total and repeated builds emit identical output. A string that does
// not parse as a semantic version sorts after every one that does;
// two unparseable strings compare bytewise.
func compareVersions(a, b string) int {
	parsedA, errA := semver.NewVersion(a)
	parsedB, errB := semver.NewVersion(b)

	switch {
	case errA == nil && errB == nil:
		if c := parsedA.Compare(parsedB); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// sortedVersions returns the version strings of releases, ascending
// by semantic-version precedence. The input slice is not touched.
func sortedVersions(releases []Release) []string {
	versions := make([]string, len(releases))
	for i, release := range releases {
		versions[i] = release.Version
	}
	slices.SortFunc(versions, compareVersions)
	return versions
}

// sortedReleases returns a copy of releases, ascending by
// semantic-version precedence. The input slice is not touched.
func sortedReleases(releases []Release) []Release {
	sorted := slices.Clone(releases)
	slices.SortFunc(sorted, func(a, b Release) int {
		return compareVersions(a.Version, b.Version)
	})
	return sorted
}
