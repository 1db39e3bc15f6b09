// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

// sampleRecord mirrors the shape of the registry's wire records:
// integer field keys via keyasint.
type sampleRecord struct {
	Name     string   `cbor:"1,keyasint"`
	Versions []string `cbor:"2,keyasint,omitempty"`
}

// sampleTuple mirrors the legacy table's positional values.
type sampleTuple struct {
	_           struct{} `cbor:",toarray"`
	Requirement string
	Optional    bool
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleRecord{
		Name:     "decimal",
		Versions: []string{"0.0.1", "0.0.2"},
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	if len(data) == 0 {
		t.Fatal("Marshal produced empty output")
	}

	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Name != original.Name {
		t.Errorf("name roundtrip mismatch: got %q, want %q", decoded.Name, original.Name)
	}
	if len(decoded.Versions) != len(original.Versions) {
		t.Errorf("versions roundtrip mismatch: got %v, want %v", decoded.Versions, original.Versions)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	record := sampleRecord{
		Name:     "postgrex",
		Versions: []string{"0.0.2"},
	}

	first, err := Marshal(record)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}

	second, err := Marshal(record)
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

func TestMarshalMapKeyOrderIndependent(t *testing.T) {
	// Core Deterministic Encoding sorts map keys, so two maps with
	// identical contents built in different insertion orders must
	// encode to identical bytes. The legacy table's package and
	// release sections rely on this.
	forward := map[string][]string{}
	forward["decimal"] = []string{"0.0.1"}
	forward["ex_doc"] = []string{"0.0.1"}
	forward["postgrex"] = []string{"0.0.2"}

	backward := map[string][]string{}
	backward["postgrex"] = []string{"0.0.2"}
	backward["ex_doc"] = []string{"0.0.1"}
	backward["decimal"] = []string{"0.0.1"}

	first, err := Marshal(forward)
	if err != nil {
		t.Fatalf("Marshal forward: %v", err)
	}
	second, err := Marshal(backward)
	if err != nil {
		t.Fatalf("Marshal backward: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("map encoding depends on insertion order: %x != %x", first, second)
	}
}

func TestToarrayEncodesPositionally(t *testing.T) {
	tuple := sampleTuple{Requirement: "~> 0.0.1", Optional: false}

	data, err := Marshal(tuple)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	// Positional layout: decodable as a plain array.
	var asArray []any
	if err := Unmarshal(data, &asArray); err != nil {
		t.Fatalf("Unmarshal as array: %v", err)
	}
	if len(asArray) != 2 {
		t.Fatalf("expected 2 positional elements, got %d: %v", len(asArray), asArray)
	}
	if asArray[0] != "~> 0.0.1" {
		t.Errorf("element 0: got %v, want %q", asArray[0], "~> 0.0.1")
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	// Future schema revisions may add fields; older readers must keep
	// decoding the fields they know.
	type grown struct {
		Name     string   `cbor:"1,keyasint"`
		Versions []string `cbor:"2,keyasint,omitempty"`
		Retired  bool     `cbor:"3,keyasint,omitempty"`
	}

	data, err := Marshal(grown{Name: "decimal", Versions: []string{"0.0.1"}, Retired: true})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal with unknown field: %v", err)
	}
	if decoded.Name != "decimal" {
		t.Errorf("name: got %q, want %q", decoded.Name, "decimal")
	}
}

func TestOmitemptyRespected(t *testing.T) {
	withVersions := sampleRecord{Name: "decimal", Versions: []string{"0.0.1"}}
	withoutVersions := sampleRecord{Name: "decimal"}

	dataWith, err := Marshal(withVersions)
	if err != nil {
		t.Fatal(err)
	}
	dataWithout, err := Marshal(withoutVersions)
	if err != nil {
		t.Fatal(err)
	}

	// The encoding without versions should be shorter because the
	// omitted field is not present.
	if len(dataWithout) >= len(dataWith) {
		t.Errorf("omitempty not effective: without=%d bytes, with=%d bytes",
			len(dataWithout), len(dataWith))
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var record sampleRecord
	err := Unmarshal([]byte{0xFF, 0xFE, 0xFD}, &record)
	if err == nil {
		t.Error("Unmarshal should reject invalid CBOR")
	}
}

func TestByteStringRoundtrip(t *testing.T) {
	// Release checksums are []byte fields; they must encode as CBOR
	// byte strings (major type 2), not text strings.
	type release struct {
		Checksum []byte `cbor:"1,keyasint"`
	}

	original := release{Checksum: []byte{0xDE, 0xAD, 0xBE, 0xEF}}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded release
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if !bytes.Equal(decoded.Checksum, original.Checksum) {
		t.Errorf("byte string roundtrip: got %x, want %x", decoded.Checksum, original.Checksum)
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(map[string]any{"name": "decimal"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	notation, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}

	if !strings.Contains(notation, `"name"`) {
		t.Errorf("notation %q does not contain \"name\"", notation)
	}
	if !strings.Contains(notation, `"decimal"`) {
		t.Errorf("notation %q does not contain \"decimal\"", notation)
	}
}

func BenchmarkMarshal(b *testing.B) {
	record := sampleRecord{
		Name:     "decimal",
		Versions: []string{"0.0.1", "0.0.2", "0.1.0", "1.0.0"},
	}

	b.ReportAllocs()
	for b.Loop() {
		Marshal(record)
	}
}

func BenchmarkUnmarshal(b *testing.B) {
	record := sampleRecord{
		Name:     "decimal",
		Versions: []string{"0.0.1", "0.0.2", "0.1.0", "1.0.0"},
	}
	data, err := Marshal(record)
	if err != nil {
		b.Fatal(err)
	}

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	for b.Loop() {
		var decoded sampleRecord
		Unmarshal(data, &decoded)
	}
}
