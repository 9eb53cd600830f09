// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import (
	"bytes"
	"regexp"

	"github.com/ikmak/bsonstream/bson/objectid"
)

// Binary represents a BSON binary value.
type Binary struct {
	Subtype byte
	Data    []byte
}

// Equal compares b to b2 and returns true if they are equal.
func (b Binary) Equal(b2 Binary) bool {
	return b.Subtype == b2.Subtype && bytes.Equal(b.Data, b2.Data)
}

// Undefined represents the BSON undefined value.
type Undefined struct{}

// Null represents the BSON null value.
type Null struct{}

// Regex represents a BSON regex value.
type Regex struct {
	Pattern string
	Options string
}

// Equal compares r to r2 and returns true if they are equal.
func (r Regex) Equal(r2 Regex) bool {
	return r.Pattern == r2.Pattern && r.Options == r2.Options
}

// DBPointer represents a BSON dbpointer value.
type DBPointer struct {
	DB      string
	Pointer objectid.ObjectID
}

// Equal compares d to d2 and returns true if they are equal.
func (d DBPointer) Equal(d2 DBPointer) bool {
	return d.DB == d2.DB && d.Pointer == d2.Pointer
}

// JavaScriptCode represents a BSON JavaScript code value.
type JavaScriptCode string

// Symbol represents a BSON symbol value.
type Symbol string

// CodeWithScope represents a BSON JavaScript code with scope value.
type CodeWithScope struct {
	Code  string
	Scope *Document
}

// Equal compares cws to cws2 and returns true if they are equal.
func (cws CodeWithScope) Equal(cws2 CodeWithScope) bool {
	return cws.Code == cws2.Code && cws.Scope.Equal(cws2.Scope)
}

// Timestamp represents a BSON timestamp value. T and I are unsigned 32-bit
// integers; the on-wire representation is I in the lower four bytes and T in
// the upper four.
type Timestamp struct {
	T uint32
	I uint32
}

// Equal compares t to t2 and returns true if they are equal.
func (t Timestamp) Equal(t2 Timestamp) bool {
	return t.T == t2.T && t.I == t2.I
}

// MinKey represents the BSON minkey value.
type MinKey struct{}

// MaxKey represents the BSON maxkey value.
type MaxKey struct{}

// Int32 is a BSON int32 that has not been promoted to a native number.
type Int32 int32

// Int64 is a BSON int64 that has not been promoted to a native number.
type Int64 int64

// Double is a BSON double that has not been promoted to a native number.
type Double float64

// DBRef is the sugared form of a cross-collection reference. It is recognized
// on decode when a document's $-prefixed keys are exactly $ref and $id, plus
// an optional $db. Any remaining non-$ keys are carried in Extra.
type DBRef struct {
	Collection string
	ID         Value
	Database   string
	Extra      *Document
}

// Equal compares ref to ref2 and returns true if they are equal.
func (ref DBRef) Equal(ref2 DBRef) bool {
	return ref.Collection == ref2.Collection && ref.Database == ref2.Database &&
		ref.ID.Equal(ref2.ID) && ref.Extra.Equal(ref2.Extra)
}

// Raw is an undecoded BSON document. Values of this kind are produced when
// decoding with the Raw option or with a FieldsAsRaw entry; the bytes are an
// independent copy of the relevant region of the input buffer.
type Raw []byte

// Document decodes the raw bytes with default options.
func (r Raw) Document() (*Document, error) { return ReadDocument(r) }

// compiledRegex holds a BSON regex that was translated into a native Go
// regexp during decode. The Regex half retains the original pattern and the
// translated option letters so the value can be re-encoded.
type compiledRegex struct {
	rx Regex
	re *regexp.Regexp
}
