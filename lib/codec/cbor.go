// Copyright 2026 The Hex Web Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items. Same logical data always
// produces identical bytes, which is what makes registry builds
// reproducible: two builds over the same snapshot publish
// byte-identical artifacts.
var encMode cbor.EncMode

// decMode is the CBOR decoder configured to accept standard CBOR.
// Unknown fields are silently ignored, so readers of older schema
// revisions keep working when record types grow new fields.
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// Absent optional metadata (requirement lists, build tools,
	// runtime versions) encodes as an empty sequence rather than
	// null. Readers treat absence as empty, never as an error, and
	// this keeps nil and empty slices byte-identical on the wire.
	encOptions.NilContainers = cbor.NilContainerAsEmpty
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Registry payloads never use non-string map keys at the
		// levels decoded into any-typed targets. When the decoder's
		// target is interface{}/any it must pick a concrete Go map
		// type; the CBOR default is map[interface{}]interface{},
		// which is awkward for callers that expect map[string]any.
		// Struct field decoding is unaffected.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) for the
// entire contents of data. Used by inspection tooling to render
// registry payloads readably.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
