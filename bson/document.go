// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// KeyNotFound is an error type returned from the Lookup methods on Document.
// This type contains information about which key was not found and if it was
// actually not found or if a component of the key except the last was not a
// document nor array.
type KeyNotFound struct {
	Key   []string // The keys that were searched for.
	Depth uint     // Which key either was not found or was an incorrect type.
	Type  Type     // The type of the key that was found but was an incorrect type.
}

func (knf KeyNotFound) Error() string {
	depth := knf.Depth
	if depth >= uint(len(knf.Key)) {
		depth = uint(len(knf.Key)) - 1
	}

	if len(knf.Key) == 0 {
		return "no keys were provided for lookup"
	}

	if knf.Type != Type(0) {
		return fmt.Sprintf(`key "%s" was found but was not valid to traverse BSON type %s`, knf.Key[depth], knf.Type)
	}

	return fmt.Sprintf(`key "%s" was not found`, knf.Key[depth])
}

// ErrOutOfBounds indicates that an index provided to access something was
// invalid.
var ErrOutOfBounds = fmt.Errorf("out of bounds")

// Document is a mutable ordered map that represents a BSON document.
// Insertion order is preserved and observable; a sorted index beside the
// element slice keeps key lookups logarithmic.
type Document struct {
	elems []Element
	index []uint32
}

// NewDocument creates an empty Document, optionally populated with the
// provided elements.
func NewDocument(elems ...Element) *Document {
	doc := &Document{
		elems: make([]Element, 0, len(elems)),
		index: make([]uint32, 0, len(elems)),
	}
	doc.AppendElements(elems...)
	return doc
}

// Copy makes a shallow copy of this document.
func (d *Document) Copy() *Document {
	if d == nil {
		return nil
	}

	doc := &Document{
		elems: make([]Element, len(d.elems), cap(d.elems)),
		index: make([]uint32, len(d.index), cap(d.index)),
	}

	copy(doc.elems, d.elems)
	copy(doc.index, d.index)

	return doc
}

// Len returns the number of elements in the document.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}

	return len(d.elems)
}

// Append adds an element to the end of the document, creating it from the key
// and value provided.
func (d *Document) Append(key string, val Value) *Document {
	return d.AppendElements(Element{Key: key, Value: val})
}

// AppendElements adds each element to the end of the document, in order.
func (d *Document) AppendElements(elems ...Element) *Document {
	if d == nil {
		d = &Document{elems: make([]Element, 0, len(elems)), index: make([]uint32, 0, len(elems))}
	}

	for _, elem := range elems {
		d.elems = append(d.elems, elem)
		i := sort.Search(len(d.index), func(i int) bool { return d.elems[d.index[i]].Key >= elem.Key })
		if i < len(d.index) {
			d.index = append(d.index, 0)
			copy(d.index[i+1:], d.index[i:])
			d.index[i] = uint32(len(d.elems) - 1)
		} else {
			d.index = append(d.index, uint32(len(d.elems)-1))
		}
	}
	return d
}

// Prepend adds an element to the beginning of the document, creating it from
// the key and value provided.
func (d *Document) Prepend(key string, val Value) *Document {
	if d == nil {
		d = &Document{}
	}

	d.elems = append(d.elems, Element{})
	copy(d.elems[1:], d.elems)
	d.elems[0] = Element{Key: key, Value: val}

	for i := range d.index {
		d.index[i]++
	}
	i := sort.Search(len(d.index), func(i int) bool { return d.elems[d.index[i]].Key >= key })
	if i < len(d.index) {
		d.index = append(d.index, 0)
		copy(d.index[i+1:], d.index[i:])
		d.index[i] = 0
	} else {
		d.index = append(d.index, 0)
	}
	return d
}

// Set replaces an element of a document. If an element with a matching key is
// found, the element will be replaced with the one provided. If the document
// does not have an element with that key, the element is appended to the
// document instead.
func (d *Document) Set(elem Element) *Document {
	if d == nil {
		d = &Document{}
	}

	i := sort.Search(len(d.index), func(i int) bool { return d.elems[d.index[i]].Key >= elem.Key })
	if i < len(d.index) && d.elems[d.index[i]].Key == elem.Key {
		d.elems[d.index[i]] = elem
		return d
	}

	d.elems = append(d.elems, elem)
	position := uint32(len(d.elems) - 1)
	if i < len(d.index) {
		d.index = append(d.index, 0)
		copy(d.index[i+1:], d.index[i:])
		d.index[i] = position
	} else {
		d.index = append(d.index, position)
	}

	return d
}

// Lookup searches the document and potentially subdocuments or arrays for the
// provided key. Each key provided to this method represents a layer of depth.
// A zero Value is returned if the key does not exist.
func (d *Document) Lookup(key ...string) Value {
	elem, err := d.LookupElementErr(key...)
	if err != nil {
		return Value{}
	}
	return elem.Value
}

// LookupErr is the same as Lookup, but returns an error describing why the
// key could not be found instead of a zero Value.
func (d *Document) LookupErr(key ...string) (Value, error) {
	elem, err := d.LookupElementErr(key...)
	if err != nil {
		return Value{}, err
	}
	return elem.Value, nil
}

// LookupElementErr searches the document and potentially subdocuments or
// arrays for the provided key and returns the matching Element.
func (d *Document) LookupElementErr(key ...string) (Element, error) {
	if d == nil || len(key) == 0 {
		return Element{}, KeyNotFound{Key: key}
	}

	i := sort.Search(len(d.index), func(i int) bool { return d.elems[d.index[i]].Key >= key[0] })
	if i >= len(d.index) || d.elems[d.index[i]].Key != key[0] {
		return Element{}, KeyNotFound{Key: key}
	}

	elem := d.elems[d.index[i]]
	if len(key) == 1 {
		return elem, nil
	}

	var err error
	switch elem.Value.Type() {
	case TypeEmbeddedDocument:
		doc, ok := elem.Value.DocumentOK()
		if !ok {
			return Element{}, KeyNotFound{Key: key, Type: TypeEmbeddedDocument}
		}
		elem, err = doc.LookupElementErr(key[1:]...)
	case TypeArray:
		var index uint64
		index, err = strconv.ParseUint(key[1], 10, 0)
		if err != nil {
			return Element{}, KeyNotFound{Key: key, Depth: 1}
		}
		elem, err = elem.Value.Array().lookupTraverse(uint(index), key[2:]...)
	default:
		return Element{}, KeyNotFound{Key: key, Type: elem.Value.Type()}
	}

	switch tt := err.(type) {
	case KeyNotFound:
		tt.Depth++
		tt.Key = key
		return Element{}, tt
	case nil:
		return elem, nil
	default:
		return Element{}, err
	}
}

// Delete removes the key from the Document. The deleted element is returned.
// If the key does not exist, then a zero Element is returned and the delete
// is a no-op.
func (d *Document) Delete(key string) Element {
	if d == nil {
		return Element{}
	}

	i := sort.Search(len(d.index), func(i int) bool { return d.elems[d.index[i]].Key >= key })
	if i >= len(d.index) || d.elems[d.index[i]].Key != key {
		return Element{}
	}

	keyIndex := d.index[i]
	elem := d.elems[keyIndex]
	d.index = append(d.index[:i], d.index[i+1:]...)
	d.elems = append(d.elems[:keyIndex], d.elems[keyIndex+1:]...)
	for j := range d.index {
		if d.index[j] > keyIndex {
			d.index[j]--
		}
	}
	return elem
}

// ElementAt retrieves the element at the given index in a Document. It
// returns ErrOutOfBounds if the index is not valid.
func (d *Document) ElementAt(index uint) (Element, error) {
	if d == nil || int(index) >= len(d.elems) {
		return Element{}, ErrOutOfBounds
	}
	return d.elems[index], nil
}

// Keys returns all of the element keys for this document. If recursive is
// true, this method will also return the keys of any subdocuments and arrays.
func (d *Document) Keys(recursive bool) Keys {
	return d.recursiveKeys(recursive)
}

func (d *Document) recursiveKeys(recursive bool, prefix ...string) Keys {
	if d == nil {
		return nil
	}
	ks := make(Keys, 0, len(d.elems))
	for _, elem := range d.elems {
		ks = append(ks, Key{Prefix: prefix, Name: elem.Key})
		if !recursive {
			continue
		}
		subprefix := make([]string, 0, len(prefix)+1)
		subprefix = append(subprefix, prefix...)
		subprefix = append(subprefix, elem.Key)
		switch elem.Value.Type() {
		case TypeEmbeddedDocument:
			if doc, ok := elem.Value.DocumentOK(); ok {
				ks = append(ks, doc.recursiveKeys(recursive, subprefix...)...)
			}
		case TypeArray:
			ks = append(ks, elem.Value.Array().doc().recursiveKeys(recursive, subprefix...)...)
		}
	}
	return ks
}

// Reset clears a document so it can be reused.
func (d *Document) Reset() {
	if d == nil {
		return
	}
	for idx := range d.elems {
		d.elems[idx] = Element{}
	}
	d.elems = d.elems[:0]
	d.index = d.index[:0]
}

// Equal compares this document to another, returning true if they are equal.
func (d *Document) Equal(d2 *Document) bool {
	if d == nil && d2 == nil {
		return true
	}
	if d == nil || d2 == nil {
		return false
	}

	if len(d.elems) != len(d2.elems) {
		return false
	}
	for index := range d.elems {
		if !d.elems[index].Equal(d2.elems[index]) {
			return false
		}
	}
	return true
}

// String implements the fmt.Stringer interface.
func (d *Document) String() string {
	var buf bytes.Buffer
	buf.WriteString("bson.Document{")
	for idx, elem := range d.elems {
		if idx > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%v", elem)
	}
	buf.WriteByte('}')

	return buf.String()
}

// Keys represents the keys of a BSON document.
type Keys []Key

// Key represents an individual key of a BSON document. The Prefix property is
// used to represent the depth of this key.
type Key struct {
	Prefix []string
	Name   string
}

// String implements the fmt.Stringer interface.
func (k Key) String() string {
	str := strings.Join(k.Prefix, ".")
	if str != "" {
		return str + "." + k.Name
	}
	return k.Name
}
