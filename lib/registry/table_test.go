// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/enikki/hex-web/lib/codec"
)

func TestBuildTable(t *testing.T) {
	table := BuildTable(testSnapshot(t))

	if table.Version() != FormatVersion {
		t.Errorf("Version() = %d, want %d", table.Version(), FormatVersion)
	}

	// 1 version entry + 3 packages + 4 releases + 1 installs entry.
	if table.EntryCount() != 9 {
		t.Errorf("EntryCount() = %d, want 9", table.EntryCount())
	}

	if diff := cmp.Diff([]string{"0.0.1", "0.0.2"}, table.Versions("decimal")); diff != "" {
		t.Errorf("Versions(decimal) (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"0.0.2"}, table.Versions("postgrex")); diff != "" {
		t.Errorf("Versions(postgrex) (-want +got):\n%s", diff)
	}

	// A release without requirements or a tool indicator keeps its
	// build-tool list and nothing else.
	entry := table.Release("decimal", "0.0.1")
	if len(entry.Requirements) != 0 {
		t.Errorf("Release(decimal, 0.0.1).Requirements = %v, want none", entry.Requirements)
	}
	if entry.BuildTool != "" {
		t.Errorf("Release(decimal, 0.0.1).BuildTool = %q, want empty", entry.BuildTool)
	}
	if diff := cmp.Diff([]string{"mix"}, entry.BuildTools); diff != "" {
		t.Errorf("Release(decimal, 0.0.1).BuildTools (-want +got):\n%s", diff)
	}

	// Requirements keep declaration order and their optional flags.
	wantRequirements := []Requirement{
		{Name: "decimal", App: "decimal", Requirement: "~> 0.0.1"},
		{Name: "ex_doc", App: "ex_doc", Requirement: "0.0.1"},
	}
	got := table.Release("postgrex", "0.0.2")
	if diff := cmp.Diff(wantRequirements, got.Requirements); diff != "" {
		t.Errorf("Release(postgrex, 0.0.2).Requirements (-want +got):\n%s", diff)
	}

	if len(table.Installs()) != 2 {
		t.Errorf("Installs() has %d records, want 2", len(table.Installs()))
	}
}

func TestTableLookup_Unknown(t *testing.T) {
	table := BuildTable(testSnapshot(t))

	if versions := table.Versions("non_existent"); len(versions) != 0 {
		t.Errorf("Versions(non_existent) = %v, want empty", versions)
	}

	entry := table.Release("non_existent", "1.0.0")
	if len(entry.Requirements) != 0 || entry.BuildTool != "" || len(entry.BuildTools) != 0 {
		t.Errorf("Release(non_existent, 1.0.0) = %+v, want zero entry", entry)
	}

	// Known package, unknown version.
	entry = table.Release("decimal", "9.9.9")
	if len(entry.BuildTools) != 0 {
		t.Errorf("Release(decimal, 9.9.9) = %+v, want zero entry", entry)
	}
}

func TestEncodeTable_Deterministic(t *testing.T) {
	first, err := EncodeTable(BuildTable(testSnapshot(t)))
	if err != nil {
		t.Fatalf("EncodeTable: %v", err)
	}
	second, err := EncodeTable(BuildTable(testSnapshot(t)))
	if err != nil {
		t.Fatalf("EncodeTable: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("two builds over identical input produced different bytes")
	}
}

func TestEncodeTable_Roundtrip(t *testing.T) {
	original := BuildTable(testSnapshot(t))
	data, err := EncodeTable(original)
	if err != nil {
		t.Fatalf("EncodeTable: %v", err)
	}

	decoded, err := DecodeTable(data)
	if err != nil {
		t.Fatalf("DecodeTable: %v", err)
	}

	if decoded.Version() != original.Version() {
		t.Errorf("Version() = %d, want %d", decoded.Version(), original.Version())
	}
	if decoded.EntryCount() != original.EntryCount() {
		t.Errorf("EntryCount() = %d, want %d", decoded.EntryCount(), original.EntryCount())
	}
	for _, name := range []string{"decimal", "ex_doc", "postgrex"} {
		if diff := cmp.Diff(original.Versions(name), decoded.Versions(name)); diff != "" {
			t.Errorf("Versions(%s) (-want +got):\n%s", name, diff)
		}
		for _, version := range original.Versions(name) {
			want := original.Release(name, version)
			got := decoded.Release(name, version)
			if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Release(%s, %s) (-want +got):\n%s", name, version, diff)
			}
		}
	}
	if diff := cmp.Diff(original.Installs(), decoded.Installs()); diff != "" {
		t.Errorf("Installs() (-want +got):\n%s", diff)
	}
}

func TestDecodeTable_WrongFormatVersion(t *testing.T) {
	data, err := codec.Marshal(tableWire{Version: FormatVersion - 1})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	_, err = DecodeTable(data)
	if err == nil {
		t.Fatal("DecodeTable accepted a table with an old format version")
	}
	if !strings.Contains(err.Error(), "format version") {
		t.Errorf("error = %q, want a format version mismatch", err)
	}
}

func TestDecodeTableVersion(t *testing.T) {
	data, err := EncodeTable(BuildTable(testSnapshot(t)))
	if err != nil {
		t.Fatalf("EncodeTable: %v", err)
	}

	version, err := DecodeTableVersion(data)
	if err != nil {
		t.Fatalf("DecodeTableVersion: %v", err)
	}
	if version != FormatVersion {
		t.Errorf("version = %d, want %d", version, FormatVersion)
	}

	if _, err := DecodeTableVersion([]byte{0xff, 0x00}); err == nil {
		t.Error("DecodeTableVersion accepted garbage input")
	}
}

// TestEncodeTable_WireShape pins the byte-level layout: version lists
// ride in a single-element wrapper, releases are positional triples,
// requirements positional 4-tuples in declaration order, and installs
// positional pairs. Changing any of these shapes requires a
// FormatVersion bump.
func TestEncodeTable_WireShape(t *testing.T) {
	data, err := EncodeTable(BuildTable(testSnapshot(t)))
	if err != nil {
		t.Fatalf("EncodeTable: %v", err)
	}

	var wire struct {
		Packages map[string][][]string       `cbor:"2,keyasint"`
		Releases map[string]map[string][]any `cbor:"3,keyasint"`
		Installs [][]any                     `cbor:"4,keyasint"`
	}
	if err := codec.Unmarshal(data, &wire); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	wrapper := wire.Packages["decimal"]
	if len(wrapper) != 1 {
		t.Fatalf("decimal package value has %d elements, want a single-element wrapper", len(wrapper))
	}
	if diff := cmp.Diff([]string{"0.0.1", "0.0.2"}, wrapper[0]); diff != "" {
		t.Errorf("wrapped version list (-want +got):\n%s", diff)
	}

	triple := wire.Releases["postgrex"]["0.0.2"]
	if len(triple) != 3 {
		t.Fatalf("release value has %d elements, want a (requirements, tool, tools) triple", len(triple))
	}
	requirements, ok := triple[0].([]any)
	if !ok || len(requirements) != 2 {
		t.Fatalf("requirements = %v, want two tuples", triple[0])
	}
	first, ok := requirements[0].([]any)
	if !ok || len(first) != 4 {
		t.Fatalf("requirement tuple = %v, want (name, requirement, optional, app)", requirements[0])
	}
	if first[0] != "decimal" || first[1] != "~> 0.0.1" || first[2] != false || first[3] != "decimal" {
		t.Errorf("first requirement tuple = %v, want decimal before ex_doc in declaration order", first)
	}

	// A release without requirements still carries an empty list on
	// the wire, never a null.
	empty := wire.Releases["decimal"]["0.0.1"]
	if requirements, ok := empty[0].([]any); !ok || len(requirements) != 0 {
		t.Errorf("requirements of a dependency-free release = %v, want empty list", empty[0])
	}

	if len(wire.Installs) != 2 {
		t.Fatalf("installs entry has %d pairs, want 2", len(wire.Installs))
	}
	if pair := wire.Installs[0]; len(pair) != 2 {
		t.Fatalf("install record = %v, want a (client, runtimes) pair", pair)
	}
}

func TestBuildTable_EmptySnapshot(t *testing.T) {
	table := BuildTable(&Snapshot{})

	if table.EntryCount() != 2 {
		t.Errorf("EntryCount() = %d, want 2 (version and installs only)", table.EntryCount())
	}

	data, err := EncodeTable(table)
	if err != nil {
		t.Fatalf("EncodeTable: %v", err)
	}
	decoded, err := DecodeTable(data)
	if err != nil {
		t.Fatalf("DecodeTable: %v", err)
	}
	if decoded.EntryCount() != 2 {
		t.Errorf("decoded EntryCount() = %d, want 2", decoded.EntryCount())
	}
}
