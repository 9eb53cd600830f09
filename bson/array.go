// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import (
	"bytes"
	"fmt"
	"strconv"
)

// Array represents an ordered sequence of BSON values.
type Array struct {
	values []Value
}

// NewArray creates a new array with the specified values.
func NewArray(values ...Value) *Array {
	arr := &Array{values: make([]Value, len(values))}
	copy(arr.values, values)
	return arr
}

// Len returns the number of elements in the array.
func (a *Array) Len() int {
	if a == nil {
		return 0
	}
	return len(a.values)
}

// Index functions in a similar way to a Go native array or slice, that is, if
// the given index is out of bounds, this method will panic. Len can be used
// to retrieve the length of this Array.
func (a *Array) Index(index uint) Value { return a.values[index] }

// IndexOK is the same as Index, but returns a boolean instead of panicking.
func (a *Array) IndexOK(index uint) (Value, bool) {
	if a == nil || index >= uint(len(a.values)) {
		return Value{}, false
	}
	return a.values[index], true
}

// Append adds the given values to the end of the array.
//
// Append is safe to call on a nil Array.
func (a *Array) Append(values ...Value) *Array {
	if a == nil {
		a = &Array{values: make([]Value, 0, len(values))}
	}
	a.values = append(a.values, values...)
	return a
}

// Set replaces the value at the given index with the parameter value. It
// panics if the index is out of bounds.
func (a *Array) Set(index uint, value Value) *Array {
	a.values[index] = value
	return a
}

// Delete removes the value at the given index from the array and returns it.
// A zero Value is returned if the index is out of bounds.
func (a *Array) Delete(index uint) Value {
	if a == nil || index >= uint(len(a.values)) {
		return Value{}
	}

	value := a.values[index]
	a.values = append(a.values[:index], a.values[index+1:]...)

	return value
}

// Reset clears all elements from the array.
func (a *Array) Reset() {
	if a == nil {
		return
	}

	for idx := range a.values {
		a.values[idx] = Value{}
	}
	a.values = a.values[:0]
}

// Equal compares this array to another, returning true if they are equal.
func (a *Array) Equal(a2 *Array) bool {
	if a == nil && a2 == nil {
		return true
	}
	if a == nil || a2 == nil {
		return false
	}

	if len(a.values) != len(a2.values) {
		return false
	}
	for index := range a.values {
		if !a.values[index].Equal(a2.values[index]) {
			return false
		}
	}
	return true
}

// String implements the fmt.Stringer interface.
func (a *Array) String() string {
	var buf bytes.Buffer
	buf.WriteString("bson.Array[")
	for idx, val := range a.values {
		if idx > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%v", val)
	}
	buf.WriteByte(']')

	return buf.String()
}

// doc returns a Document view of the array with the positional keys the array
// carries on the wire. It is used for recursive key listings.
func (a *Array) doc() *Document {
	if a == nil {
		return nil
	}
	doc := NewDocument()
	for idx, val := range a.values {
		doc.Append(strconv.Itoa(idx), val)
	}
	return doc
}

func (a *Array) lookupTraverse(index uint, keys ...string) (Element, error) {
	if a == nil || index >= uint(len(a.values)) {
		return Element{}, KeyNotFound{}
	}
	val := a.values[index]

	if len(keys) == 0 {
		return Element{Key: strconv.Itoa(int(index)), Value: val}, nil
	}

	switch val.Type() {
	case TypeEmbeddedDocument:
		doc, ok := val.DocumentOK()
		if !ok {
			return Element{}, KeyNotFound{Type: TypeEmbeddedDocument}
		}
		return doc.LookupElementErr(keys...)
	case TypeArray:
		subIndex, err := strconv.ParseUint(keys[0], 10, 0)
		if err != nil {
			return Element{}, KeyNotFound{}
		}
		return val.Array().lookupTraverse(uint(subIndex), keys[1:]...)
	default:
		return Element{}, KeyNotFound{Type: val.Type()}
	}
}
