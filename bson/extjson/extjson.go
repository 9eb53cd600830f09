// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package extjson converts BSON value trees to and from MongoDB Extended
// JSON. Encoding is available in a streaming form that yields string chunks
// one at a time, bounding the working set on very large documents.
package extjson

import (
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/ikmak/bsonstream/bson"
)

// ErrCircularStructure indicates that an object or array appeared in its own
// ancestor chain during encoding.
var ErrCircularStructure = errors.New("Converting circular structure to Extended JSON")

// Replacer rewrites or filters a (key, value) pair before it is projected.
// Returning false omits the entry from a document and emits null for an
// array element. Array elements are presented with their positional index as
// the key.
type Replacer func(key string, v bson.Value) (bson.Value, bool)

// EncodeOptions configures the Extended JSON encoder. The zero value encodes
// in relaxed mode with no indentation.
type EncodeOptions struct {
	// Canonical selects the canonical Extended JSON form, in which every
	// typed value is wrapped. The default is the relaxed form, which
	// renders common numeric and date values as plain JSON.
	Canonical bool
	// Legacy alters the binary and regex projections to their legacy
	// shapes.
	Legacy bool
	// Replacer, when set, is invoked once per (key, value) pair.
	Replacer Replacer
	// KeepKeys restricts document keys to those listed, in the document's
	// insertion order. A nil slice keeps every key.
	KeepKeys []string
	// Indent is inserted once per depth level before each entry. When
	// empty the output is a single line.
	Indent string
}

// NewEncodeOptions returns an EncodeOptions record with defaults applied.
func NewEncodeOptions() *EncodeOptions { return &EncodeOptions{} }

// IndentSpaces returns an indent string of n spaces. Counts above ten are
// capped at ten, matching the JSON.stringify space parameter.
func IndentSpaces(n int) string {
	if n < 0 {
		n = 0
	}
	if n > 10 {
		n = 10
	}
	return strings.Repeat(" ", n)
}

// Marshal encodes v as Extended JSON by draining a Stream. The result is
// byte-identical to the concatenation of the chunks the Stream yields.
func Marshal(v bson.Value, opts *EncodeOptions) (string, error) {
	s := NewStream(v, opts)
	var sb strings.Builder
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}
		sb.WriteString(chunk)
	}
}

// MarshalDocument encodes doc as Extended JSON.
func MarshalDocument(doc *bson.Document, opts *EncodeOptions) (string, error) {
	return Marshal(bson.VC.Document(doc), opts)
}
