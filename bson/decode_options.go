// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import "github.com/pkg/errors"

// ErrConflictingOptions indicates that the decode options record is
// self-contradictory.
var ErrConflictingOptions = errors.New("conflicting decode options")

// DecodeOptions configures how ReadDocumentWithOptions builds values from a
// BSON buffer. The zero value of each field is its default except where
// noted; NewDecodeOptions returns a record with every default applied.
type DecodeOptions struct {
	// UseBigInt64 surfaces int64 values as *big.Int from Value.Interface.
	// It requires PromoteValues and PromoteLongs.
	UseBigInt64 bool
	// PromoteLongs narrows int64 values into native numbers when they fit
	// the safe integer range. Defaults to true.
	PromoteLongs bool
	// PromoteBuffers surfaces binary payloads as raw bytes from
	// Value.Interface instead of Binary wrappers.
	PromoteBuffers bool
	// PromoteValues surfaces primitives as native Go values. When false,
	// numeric values surface as the Int32, Int64, and Double wrapper types
	// and symbols are kept instead of being narrowed to strings. Defaults
	// to true.
	PromoteValues bool
	// FieldsAsRaw lists keys whose array children are passed through as
	// undecoded Raw values.
	FieldsAsRaw map[string]bool
	// BSONRegExp keeps regex values as Regex wrappers rather than
	// translating them into native Go regexps.
	BSONRegExp bool
	// AllowObjectSmallerThanBufferSize relaxes the outer length check so
	// the buffer may extend beyond the document.
	AllowObjectSmallerThanBufferSize bool
	// Index is the offset into the buffer at which the document starts.
	Index uint32
	// Raw returns embedded documents as undecoded Raw values.
	Raw bool
	// Validation controls UTF-8 validation of keys and string payloads.
	Validation Validation
}

// Validation controls UTF-8 validation during decode.
type Validation struct {
	// UTF8 globally enables or disables validation. Defaults to true.
	UTF8 bool
	// UTF8Keys overrides validation per key. The map must be non-empty and
	// uniform: when every entry is true only the listed keys are validated,
	// and when every entry is false every key except those listed is
	// validated. A mixed or empty map conflicts. The setting resolved for a
	// key is inherited by documents and arrays nested under it.
	UTF8Keys map[string]bool
}

// NewDecodeOptions returns a DecodeOptions record with defaults applied.
func NewDecodeOptions() *DecodeOptions {
	return &DecodeOptions{
		PromoteLongs:  true,
		PromoteValues: true,
		Validation:    Validation{UTF8: true},
	}
}

// utf8Policy is the resolved form of Validation for one recursion level.
type utf8Policy struct {
	global bool
	keys   map[string]bool
	// keyed is true when listed keys are the only ones validated, false
	// when listed keys are the only ones excluded. Meaningless when keys is
	// nil.
	keyed bool
}

// check reports whether strings under the given key require validation.
func (p utf8Policy) check(key string) bool {
	if p.keys == nil {
		return p.global
	}
	_, listed := p.keys[key]
	if p.keyed {
		return listed
	}
	return !listed
}

// child resolves the policy to inherit for a document or array nested under
// the given key.
func (p utf8Policy) child(key string) utf8Policy {
	if p.keys == nil {
		return p
	}
	return utf8Policy{global: p.check(key)}
}

// validate checks the options record for conflicts and resolves the UTF-8
// policy for the outermost document.
func (o *DecodeOptions) validate() (utf8Policy, error) {
	if o.UseBigInt64 && !o.PromoteValues {
		return utf8Policy{}, errors.Wrap(ErrConflictingOptions, "useBigInt64 requires promoteValues")
	}
	if o.UseBigInt64 && !o.PromoteLongs {
		return utf8Policy{}, errors.Wrap(ErrConflictingOptions, "useBigInt64 requires promoteLongs")
	}

	if o.Validation.UTF8Keys == nil {
		return utf8Policy{global: o.Validation.UTF8}, nil
	}
	if len(o.Validation.UTF8Keys) == 0 {
		return utf8Policy{}, errors.Wrap(ErrConflictingOptions, "validation.utf8Keys must not be empty")
	}
	var first, set bool
	for _, enabled := range o.Validation.UTF8Keys {
		if !set {
			first, set = enabled, true
			continue
		}
		if enabled != first {
			return utf8Policy{}, errors.Wrap(ErrConflictingOptions, "validation.utf8Keys must be uniformly true or false")
		}
	}
	return utf8Policy{keys: o.Validation.UTF8Keys, keyed: first}, nil
}
