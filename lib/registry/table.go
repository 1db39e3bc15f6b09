// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"fmt"
	"slices"

	"github.com/enikki/hex-web/lib/codec"
)

// FormatVersion identifies the legacy table's binary layout. It is
// stored as the table's first entry so readers can reject a table
// built under a different layout before decoding anything else. Bump
// it whenever a key family or value shape below changes.
const FormatVersion = 4

// Table is the in-memory form of the legacy registry index: one keyed
// table holding the format version, a version list per package, a
// requirement tuple per release, and a single aggregated
// install-compatibility entry. For a snapshot with P packages and R
// releases the table holds exactly 2+P+R entries.
//
// The table is built completely in memory by BuildTable before any
// serialization; a partially built table is never observable.
type Table struct {
	version  int
	packages map[string][]string
	releases map[string]map[string]ReleaseEntry
	installs []Install
}

// ReleaseEntry is the value stored under one (package, version) key:
// the release's requirements in declaration order, the legacy
// single-tool indicator, and the build-tool list.
type ReleaseEntry struct {
	Requirements []Requirement
	BuildTool    string
	BuildTools   []string
}

// BuildTable folds a snapshot into a legacy table. Version lists are
// sorted ascending by semantic-version precedence; requirement order
// within a release is preserved as declared; all install records are
// aggregated into the table's single installs entry. The snapshot is
// not modified.
func BuildTable(snapshot *Snapshot) *Table {
	table := &Table{
		version:  FormatVersion,
		packages: make(map[string][]string, len(snapshot.Packages)),
		releases: make(map[string]map[string]ReleaseEntry, len(snapshot.Packages)),
		installs: slices.Clone(snapshot.Installs),
	}

	for _, pkg := range snapshot.Packages {
		table.packages[pkg.Name] = sortedVersions(pkg.Releases)

		entries := make(map[string]ReleaseEntry, len(pkg.Releases))
		for _, release := range pkg.Releases {
			entries[release.Version] = ReleaseEntry{
				Requirements: release.Requirements,
				BuildTool:    release.BuildTool,
				BuildTools:   release.BuildTools,
			}
		}
		table.releases[pkg.Name] = entries
	}

	return table
}

// Version returns the table's format version.
func (t *Table) Version() int {
	return t.version
}

// Versions returns the named package's release versions, ascending by
// semantic-version precedence. Unknown packages yield an empty list,
// never an error.
func (t *Table) Versions(name string) []string {
	return t.packages[name]
}

// Release returns the entry for one (package, version) pair. Unknown
// pairs yield a zero-valued entry, never an error.
func (t *Table) Release(name, version string) ReleaseEntry {
	return t.releases[name][version]
}

// Installs returns the aggregated install-compatibility entry: every
// record from the snapshot, collapsed into one list.
func (t *Table) Installs() []Install {
	return t.installs
}

// EntryCount returns the number of table entries: the format version,
// one per package, one per release, and the aggregated installs
// entry.
func (t *Table) EntryCount() int {
	count := 2 + len(t.packages)
	for _, entries := range t.releases {
		count += len(entries)
	}
	return count
}

// Wire layout. The table serializes as a CBOR map with four integer
// keys. Under the deterministic encoding integer keys sort
// numerically, so the format version under key 1 is always the first
// entry in the byte stream and DecodeTableVersion can reject an
// incompatible blob without decoding the rest.
type tableWire struct {
	Version  int                               `cbor:"1,keyasint"`
	Packages map[string]packageWire            `cbor:"2,keyasint"`
	Releases map[string]map[string]releaseWire `cbor:"3,keyasint"`
	Installs []installWire                     `cbor:"4,keyasint"`
}

// packageWire is the single-element wrapper around one package's
// ascending version list.
type packageWire struct {
	_        struct{} `cbor:",toarray"`
	Versions []string
}

// releaseWire is the (requirements, build-tool indicator, build
// tools) triple stored per release.
type releaseWire struct {
	_            struct{} `cbor:",toarray"`
	Requirements []requirementWire
	BuildTool    string
	BuildTools   []string
}

// requirementWire is the positional (name, requirement, optional,
// app) tuple stored per dependency edge.
type requirementWire struct {
	_           struct{} `cbor:",toarray"`
	Name        string
	Requirement string
	Optional    bool
	App         string
}

// installWire is the positional (client version, runtime versions)
// pair stored in the aggregated installs entry.
type installWire struct {
	_               struct{} `cbor:",toarray"`
	ClientVersion   string
	RuntimeVersions []string
}

// EncodeTable serializes a table to its binary blob. The encoding is
// deterministic: two tables built from identical snapshots serialize
// to identical bytes.
func EncodeTable(table *Table) ([]byte, error) {
	wire := tableWire{
		Version:  table.version,
		Packages: make(map[string]packageWire, len(table.packages)),
		Releases: make(map[string]map[string]releaseWire, len(table.releases)),
		Installs: make([]installWire, len(table.installs)),
	}

	for name, versions := range table.packages {
		wire.Packages[name] = packageWire{Versions: versions}
	}

	for name, entries := range table.releases {
		releases := make(map[string]releaseWire, len(entries))
		for version, entry := range entries {
			requirements := make([]requirementWire, len(entry.Requirements))
			for i, req := range entry.Requirements {
				requirements[i] = requirementWire{
					Name:        req.Name,
					Requirement: req.Requirement,
					Optional:    req.Optional,
					App:         req.App,
				}
			}
			releases[version] = releaseWire{
				Requirements: requirements,
				BuildTool:    entry.BuildTool,
				BuildTools:   entry.BuildTools,
			}
		}
		wire.Releases[name] = releases
	}

	for i, install := range table.installs {
		wire.Installs[i] = installWire{
			ClientVersion:   install.ClientVersion,
			RuntimeVersions: install.RuntimeVersions,
		}
	}

	data, err := codec.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encoding registry table: %w", err)
	}
	return data, nil
}

// DecodeTable deserializes a binary blob produced by EncodeTable. A
// blob with a format version other than FormatVersion is rejected.
func DecodeTable(data []byte) (*Table, error) {
	version, err := DecodeTableVersion(data)
	if err != nil {
		return nil, err
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("registry table format version %d, want %d", version, FormatVersion)
	}

	var wire tableWire
	if err := codec.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decoding registry table: %w", err)
	}

	table := &Table{
		version:  wire.Version,
		packages: make(map[string][]string, len(wire.Packages)),
		releases: make(map[string]map[string]ReleaseEntry, len(wire.Releases)),
		installs: make([]Install, len(wire.Installs)),
	}

	for name, pkg := range wire.Packages {
		table.packages[name] = pkg.Versions
	}

	for name, releases := range wire.Releases {
		entries := make(map[string]ReleaseEntry, len(releases))
		for version, release := range releases {
			requirements := make([]Requirement, len(release.Requirements))
			for i, req := range release.Requirements {
				requirements[i] = Requirement{
					Name:        req.Name,
					Requirement: req.Requirement,
					Optional:    req.Optional,
					App:         req.App,
				}
			}
			entries[version] = ReleaseEntry{
				Requirements: requirements,
				BuildTool:    release.BuildTool,
				BuildTools:   release.BuildTools,
			}
		}
		table.releases[name] = entries
	}

	for i, install := range wire.Installs {
		table.installs[i] = Install{
			ClientVersion:   install.ClientVersion,
			RuntimeVersions: install.RuntimeVersions,
		}
	}

	return table, nil
}

// DecodeTableVersion extracts only the format version from an encoded
// table. Readers call this before DecodeTable to fail fast on blobs
// written under a different layout.
func DecodeTableVersion(data []byte) (int, error) {
	var header struct {
		Version int `cbor:"1,keyasint"`
	}
	if err := codec.Unmarshal(data, &header); err != nil {
		return 0, fmt.Errorf("decoding registry table version: %w", err)
	}
	return header.Version, nil
}
