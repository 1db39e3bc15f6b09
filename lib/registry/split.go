// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"fmt"
	"slices"

	"github.com/enikki/hex-web/lib/codec"
)

// The split format spreads the registry across many small artifacts
// so clients fetch only what a resolution needs: the names listing,
// the versions listing, and one release listing per package of
// interest. Each payload is a CBOR array of the record types below.
//
// The per-package release records deliberately carry less than the
// legacy table: dependency entries hold only the package name and the
// requirement expression. The optional flag and the app name are
// omitted, so an optional dependency is indistinguishable from a
// required one in this format. Readers that need either field must
// fall back to the legacy table.

// NameRecord is one entry of the names listing.
type NameRecord struct {
	Name string `cbor:"1,keyasint"`
}

// VersionsRecord is one entry of the versions listing. Versions is
// ascending by semantic-version precedence.
type VersionsRecord struct {
	Name     string   `cbor:"1,keyasint"`
	Versions []string `cbor:"2,keyasint"`
}

// ReleaseRecord is one entry of a per-package release listing.
type ReleaseRecord struct {
	Version      string             `cbor:"1,keyasint"`
	Checksum     []byte             `cbor:"2,keyasint"`
	Dependencies []DependencyRecord `cbor:"3,keyasint"`
}

// DependencyRecord is one dependency edge of a release. Entries keep
// declaration order.
type DependencyRecord struct {
	Name        string `cbor:"1,keyasint"`
	Requirement string `cbor:"2,keyasint"`
}

// sortedNames returns the snapshot's package names, ascending.
func sortedNames(snapshot *Snapshot) []string {
	names := make([]string, len(snapshot.Packages))
	for i, pkg := range snapshot.Packages {
		names[i] = pkg.Name
	}
	slices.Sort(names)
	return names
}

// EncodeNames serializes the names listing: one record per package,
// sorted by name ascending.
func EncodeNames(snapshot *Snapshot) ([]byte, error) {
	records := make([]NameRecord, 0, len(snapshot.Packages))
	for _, name := range sortedNames(snapshot) {
		records = append(records, NameRecord{Name: name})
	}

	data, err := codec.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encoding names listing: %w", err)
	}
	return data, nil
}

// EncodeVersions serializes the versions listing: one record per
// package, sorted by name ascending, each carrying the package's
// release versions ascending.
func EncodeVersions(snapshot *Snapshot) ([]byte, error) {
	byName := make(map[string][]Release, len(snapshot.Packages))
	for _, pkg := range snapshot.Packages {
		byName[pkg.Name] = pkg.Releases
	}

	records := make([]VersionsRecord, 0, len(snapshot.Packages))
	for _, name := range sortedNames(snapshot) {
		records = append(records, VersionsRecord{
			Name:     name,
			Versions: sortedVersions(byName[name]),
		})
	}

	data, err := codec.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encoding versions listing: %w", err)
	}
	return data, nil
}

// EncodePackage serializes one package's release listing: one record
// per release, ascending by version, each with its checksum and its
// dependencies in declaration order.
func EncodePackage(pkg Package) ([]byte, error) {
	records := make([]ReleaseRecord, 0, len(pkg.Releases))
	for _, release := range sortedReleases(pkg.Releases) {
		dependencies := make([]DependencyRecord, len(release.Requirements))
		for i, req := range release.Requirements {
			dependencies[i] = DependencyRecord{
				Name:        req.Name,
				Requirement: req.Requirement,
			}
		}
		records = append(records, ReleaseRecord{
			Version:      release.Version,
			Checksum:     release.Checksum,
			Dependencies: dependencies,
		})
	}

	data, err := codec.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encoding package %q: %w", pkg.Name, err)
	}
	return data, nil
}

// DecodeNames deserializes a names listing.
func DecodeNames(data []byte) ([]NameRecord, error) {
	var records []NameRecord
	if err := codec.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding names listing: %w", err)
	}
	return records, nil
}

// DecodeVersions deserializes a versions listing.
func DecodeVersions(data []byte) ([]VersionsRecord, error) {
	var records []VersionsRecord
	if err := codec.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding versions listing: %w", err)
	}
	return records, nil
}

// DecodePackage deserializes one package's release listing.
func DecodePackage(data []byte) ([]ReleaseRecord, error) {
	var records []ReleaseRecord
	if err := codec.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding package listing: %w", err)
	}
	return records, nil
}
