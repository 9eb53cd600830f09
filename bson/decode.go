// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/ikmak/bsonstream/bson/internal/llbson"
)

// ErrCorruptDocument indicates that a BSON document violates its framing:
// lengths, terminators, or per-type structure.
var ErrCorruptDocument = errors.New("corrupt BSON document")

// ErrInvalidString indicates that a length-prefixed BSON string is malformed.
var ErrInvalidString = errors.New("invalid string value")

// ErrInvalidUTF8 indicates that a key or string payload failed UTF-8
// validation.
var ErrInvalidUTF8 = errors.New("string contains invalid UTF-8")

// UnknownTypeError indicates that an element carried an unrecognized type
// tag.
type UnknownTypeError struct {
	Tag byte
	Key string
}

// Error implements the error interface.
func (ute UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown BSON type 0x%02x for key %q", ute.Tag, ute.Key)
}

// Bounds of the range in which an int64 can be narrowed to a double-width
// native number without losing precision.
const (
	maxSafeInt64 = int64(1)<<53 - 1
	minSafeInt64 = -maxSafeInt64
)

// ReadDocument decodes the BSON document in b using default options. The
// buffer is borrowed for the duration of the call; the returned document owns
// its memory independently.
func ReadDocument(b []byte) (*Document, error) {
	return ReadDocumentWithOptions(b, nil)
}

// ReadDocumentWithOptions decodes the BSON document in b. A nil opts is
// equivalent to NewDecodeOptions(). The root document is returned as a
// Document even when it matches the DBRef shape; use ReadValue to recognize a
// root-level DBRef.
func ReadDocumentWithOptions(b []byte, opts *DecodeOptions) (*Document, error) {
	v, err := readTop(b, opts, false)
	if err != nil {
		return nil, err
	}
	return v.Document(), nil
}

// ReadValue decodes the BSON document in b and returns it as a Value, which
// holds a DBRef when the document matches the DBRef shape and a Document
// otherwise.
func ReadValue(b []byte, opts *DecodeOptions) (Value, error) {
	return readTop(b, opts, true)
}

func readTop(b []byte, opts *DecodeOptions, allowDBRef bool) (Value, error) {
	if opts == nil {
		opts = NewDecodeOptions()
	}
	pol, err := opts.validate()
	if err != nil {
		return Value{}, err
	}

	start := int(opts.Index)
	if start < 0 || start+5 > len(b) {
		return Value{}, errors.Wrap(ErrCorruptDocument, "buffer is smaller than the minimum document size")
	}
	size := int(readi32(b[start:]))
	if size < 5 {
		return Value{}, errors.Wrapf(ErrCorruptDocument, "document size %d is too small", size)
	}
	if opts.AllowObjectSmallerThanBufferSize {
		if start+size > len(b) {
			return Value{}, errors.Wrapf(ErrCorruptDocument, "document size %d exceeds the buffer", size)
		}
	} else if start+size != len(b) {
		return Value{}, errors.Wrapf(ErrCorruptDocument, "buffer length %d does not match document size %d", len(b)-start, size)
	}

	d := &decoder{data: b, opts: opts}
	v, _, err := d.readDocValue(start, pol, !allowDBRef)
	if err != nil {
		return Value{}, err
	}
	return v, nil
}

// decoder is the single-pass BSON reader. It holds a read-only borrow of the
// input buffer; every value it produces copies the bytes it needs.
type decoder struct {
	data []byte
	opts *DecodeOptions
}

func (d *decoder) numberFlags() valueFlags {
	if d.opts.PromoteValues {
		return 0
	}
	return flagWrapped
}

// readDocValue decodes the document starting at index. Unless root is true
// the completed document is rewritten into a DBRef when it matches the DBRef
// shape.
func (d *decoder) readDocValue(index int, pol utf8Policy, root bool) (Value, int, error) {
	doc := NewDocument()
	possibleDBRef := true
	end, err := d.readElements(index, false, pol, false, func(key string, v Value) {
		if possibleDBRef && strings.HasPrefix(key, "$") &&
			key != "$ref" && key != "$id" && key != "$db" {
			possibleDBRef = false
		}
		doc.Set(Element{Key: key, Value: v})
	})
	if err != nil {
		return Value{}, 0, err
	}

	if !root && possibleDBRef {
		if ref, ok := asDBRef(doc); ok {
			return VC.DBRef(ref), end, nil
		}
	}
	return VC.Document(doc), end, nil
}

// asDBRef rewrites a document into a DBRef when it carries a string $ref, an
// $id of any type, and optionally a string $db. Remaining elements are
// carried in Extra.
func asDBRef(doc *Document) (DBRef, bool) {
	refVal, err := doc.LookupErr("$ref")
	if err != nil {
		return DBRef{}, false
	}
	collection, ok := refVal.StringValueOK()
	if !ok {
		return DBRef{}, false
	}
	idVal, err := doc.LookupErr("$id")
	if err != nil {
		return DBRef{}, false
	}

	var db string
	if dbVal, err := doc.LookupErr("$db"); err == nil {
		if db, ok = dbVal.StringValueOK(); !ok {
			return DBRef{}, false
		}
	}

	extra := NewDocument()
	for i := 0; i < doc.Len(); i++ {
		elem, _ := doc.ElementAt(uint(i))
		switch elem.Key {
		case "$ref", "$id", "$db":
		default:
			extra.AppendElements(elem)
		}
	}

	return DBRef{Collection: collection, ID: idVal, Database: db, Extra: extra}, true
}

func (d *decoder) readArrayValue(index int, pol utf8Policy, rawChildren bool) (Value, int, error) {
	arr := NewArray()
	end, err := d.readElements(index, true, pol, rawChildren, func(_ string, v Value) {
		arr.Append(v)
	})
	if err != nil {
		return Value{}, 0, err
	}
	return VC.Array(arr), end, nil
}

// readElements walks one document or array: length prefix, elements,
// terminator. The emit callback receives each decoded element; in array
// context the on-wire key bytes are discarded and replaced with a positional
// counter. The returned index points one past the terminator.
func (d *decoder) readElements(index int, array bool, pol utf8Policy, rawChildren bool, emit func(key string, v Value)) (int, error) {
	data := d.data
	if index+5 > len(data) {
		return 0, errors.Wrap(ErrCorruptDocument, "document exceeds the buffer")
	}
	size := int(readi32(data[index:]))
	if size < 5 {
		return 0, errors.Wrapf(ErrCorruptDocument, "document size %d is too small", size)
	}
	stop := index + size
	if stop > len(data) {
		return 0, errors.Wrapf(ErrCorruptDocument, "document size %d exceeds the buffer", size)
	}
	if data[stop-1] != 0x00 {
		return 0, errors.Wrap(ErrCorruptDocument, "document is not null terminated")
	}

	i := index + 4
	counter := 0
	for {
		if i >= stop {
			return 0, errors.Wrap(ErrCorruptDocument, "unexpected end of document")
		}
		tag := data[i]
		i++
		if tag == 0x00 {
			break
		}

		keyStart := i
		for i < stop && data[i] != 0x00 {
			i++
		}
		if i >= stop {
			return 0, errors.Wrap(ErrCorruptDocument, "element key is not null terminated")
		}
		key := string(data[keyStart:i])
		i++

		if !array && pol.check(key) && !utf8.ValidString(key) {
			return 0, errors.Wrapf(ErrInvalidUTF8, "element key %q", key)
		}

		v, next, err := d.readValue(Type(tag), i, key, pol, rawChildren)
		if err != nil {
			return 0, err
		}
		if next > stop {
			return 0, errors.Wrapf(ErrCorruptDocument, "element %q overruns the document", key)
		}
		i = next

		if array {
			key = strconv.Itoa(counter)
			counter++
		}
		emit(key, v)
	}

	if i != stop {
		return 0, errors.Wrapf(ErrCorruptDocument, "document consumed %d bytes but declared %d", i-index, size)
	}
	return i, nil
}

func (d *decoder) readValue(t Type, index int, key string, pol utf8Policy, rawChildren bool) (Value, int, error) {
	data := d.data
	switch t {
	case TypeDouble:
		f, ok := llbson.ReadDouble(data[index:])
		if !ok {
			return Value{}, 0, errors.Wrapf(ErrCorruptDocument, "not enough bytes for double %q", key)
		}
		v := VC.Double(f)
		v.flags = d.numberFlags()
		return v, index + 8, nil

	case TypeString:
		s, n, err := d.readString(index, key, pol)
		if err != nil {
			return Value{}, 0, err
		}
		return VC.String(s), index + n, nil

	case TypeEmbeddedDocument:
		if d.opts.Raw || rawChildren {
			slice, ok := llbson.ReadDocument(data[index:])
			if !ok {
				return Value{}, 0, errors.Wrapf(ErrCorruptDocument, "not enough bytes for document %q", key)
			}
			cp := make(Raw, len(slice))
			copy(cp, slice)
			return VC.Raw(cp), index + len(slice), nil
		}
		return d.readDocValue(index, pol.child(key), false)

	case TypeArray:
		return d.readArrayValue(index, pol.child(key), rawChildren || d.opts.FieldsAsRaw[key])

	case TypeBinary:
		return d.readBinary(index, key)

	case TypeUndefined:
		return VC.Undefined(), index, nil

	case TypeObjectID:
		oid, ok := llbson.ReadObjectID(data[index:])
		if !ok {
			return Value{}, 0, errors.Wrapf(ErrCorruptDocument, "not enough bytes for objectID %q", key)
		}
		return VC.ObjectID(oid), index + 12, nil

	case TypeBoolean:
		if index >= len(data) {
			return Value{}, 0, errors.Wrapf(ErrCorruptDocument, "not enough bytes for boolean %q", key)
		}
		b := data[index]
		if b != 0x00 && b != 0x01 {
			return Value{}, 0, errors.Wrapf(ErrCorruptDocument, "invalid boolean value 0x%02x for key %q", b, key)
		}
		return VC.Boolean(b == 0x01), index + 1, nil

	case TypeDateTime:
		dt, ok := llbson.ReadDateTime(data[index:])
		if !ok {
			return Value{}, 0, errors.Wrapf(ErrCorruptDocument, "not enough bytes for datetime %q", key)
		}
		return VC.DateTime(dt), index + 8, nil

	case TypeNull:
		return VC.Null(), index, nil

	case TypeRegex:
		return d.readRegex(index, key)

	case TypeDBPointer:
		ns, n, err := d.readString(index, key, pol)
		if err != nil {
			return Value{}, 0, err
		}
		oid, ok := llbson.ReadObjectID(data[index+n:])
		if !ok {
			return Value{}, 0, errors.Wrapf(ErrCorruptDocument, "not enough bytes for dbpointer %q", key)
		}
		return VC.DBPointer(ns, oid), index + n + 12, nil

	case TypeJavaScript:
		code, n, err := d.readString(index, key, pol)
		if err != nil {
			return Value{}, 0, err
		}
		return VC.JavaScript(code), index + n, nil

	case TypeSymbol:
		symbol, n, err := d.readString(index, key, pol)
		if err != nil {
			return Value{}, 0, err
		}
		if d.opts.PromoteValues {
			return VC.String(symbol), index + n, nil
		}
		return VC.Symbol(symbol), index + n, nil

	case TypeCodeWithScope:
		return d.readCodeWithScope(index, key, pol)

	case TypeInt32:
		i32, ok := llbson.ReadInt32(data[index:])
		if !ok {
			return Value{}, 0, errors.Wrapf(ErrCorruptDocument, "not enough bytes for int32 %q", key)
		}
		v := VC.Int32(i32)
		v.flags = d.numberFlags()
		return v, index + 4, nil

	case TypeTimestamp:
		// Decoded with unsigned reads; reassembling the halves with signed
		// shifts would corrupt values with the high bit set.
		ts, inc, ok := llbson.ReadTimestamp(data[index:])
		if !ok {
			return Value{}, 0, errors.Wrapf(ErrCorruptDocument, "not enough bytes for timestamp %q", key)
		}
		return VC.Timestamp(ts, inc), index + 8, nil

	case TypeInt64:
		i64, ok := llbson.ReadInt64(data[index:])
		if !ok {
			return Value{}, 0, errors.Wrapf(ErrCorruptDocument, "not enough bytes for int64 %q", key)
		}
		v := VC.Int64(i64)
		switch {
		case d.opts.UseBigInt64:
			v.flags = flagBigInt
		case d.opts.PromoteLongs && d.opts.PromoteValues:
			if i64 < minSafeInt64 || i64 > maxSafeInt64 {
				v.flags = flagWrapped
			}
		default:
			v.flags = flagWrapped
		}
		return v, index + 8, nil

	case TypeDecimal128:
		d128, ok := llbson.ReadDecimal128(data[index:])
		if !ok {
			return Value{}, 0, errors.Wrapf(ErrCorruptDocument, "not enough bytes for decimal128 %q", key)
		}
		return VC.Decimal128(d128), index + 16, nil

	case TypeMinKey:
		return VC.MinKey(), index, nil

	case TypeMaxKey:
		return VC.MaxKey(), index, nil

	default:
		return Value{}, 0, UnknownTypeError{Tag: byte(t), Key: key}
	}
}

// readString reads a length-prefixed string and returns it along with the
// number of bytes consumed. The declared length includes the terminating null
// byte and must be positive.
func (d *decoder) readString(index int, key string, pol utf8Policy) (string, int, error) {
	data := d.data
	if index+4 > len(data) {
		return "", 0, errors.Wrapf(ErrInvalidString, "missing length prefix for string %q", key)
	}
	l := int(readi32(data[index:]))
	if l <= 0 {
		return "", 0, errors.Wrapf(ErrInvalidString, "invalid length %d for string %q", l, key)
	}
	if index+4+l > len(data) {
		return "", 0, errors.Wrapf(ErrInvalidString, "string %q exceeds the buffer", key)
	}
	if data[index+4+l-1] != 0x00 {
		return "", 0, errors.Wrapf(ErrInvalidString, "string %q is not null terminated", key)
	}
	s := string(data[index+4 : index+4+l-1])
	if pol.check(key) && !utf8.ValidString(s) {
		return "", 0, errors.Wrapf(ErrInvalidUTF8, "string value for key %q", key)
	}
	return s, 4 + l, nil
}

func (d *decoder) readBinary(index int, key string) (Value, int, error) {
	data := d.data
	if index+5 > len(data) {
		return Value{}, 0, errors.Wrapf(ErrCorruptDocument, "not enough bytes for binary %q", key)
	}
	l := int(readi32(data[index:]))
	if l < 0 {
		return Value{}, 0, errors.Wrapf(ErrCorruptDocument, "invalid binary length %d for key %q", l, key)
	}
	subtype := data[index+4]
	payloadStart := index + 5
	payloadLen := l

	if subtype == TypeBinaryBinaryOld {
		// The deprecated subtype carries a second length prefix that must
		// equal the outer length minus the four bytes it occupies.
		if l < 4 || payloadStart+4 > len(data) {
			return Value{}, 0, errors.Wrapf(ErrCorruptDocument, "binary %q is missing its nested length", key)
		}
		inner := int(readi32(data[payloadStart:]))
		if inner != l-4 {
			return Value{}, 0, errors.Wrapf(ErrCorruptDocument,
				"binary %q nested length %d does not equal the outer length %d minus 4", key, inner, l)
		}
		payloadStart += 4
		payloadLen = inner
	}

	if payloadStart+payloadLen > len(data) {
		return Value{}, 0, errors.Wrapf(ErrCorruptDocument, "binary %q exceeds the buffer", key)
	}
	payload := make([]byte, payloadLen)
	copy(payload, data[payloadStart:payloadStart+payloadLen])
	next := index + 4 + 1 + l

	if subtype == TypeBinaryUUID && len(payload) == 16 &&
		d.opts.PromoteValues && !d.opts.PromoteBuffers {
		var id UUID
		copy(id[:], payload)
		return VC.UUID(id), next, nil
	}

	v := VC.BinaryWithSubtype(payload, subtype)
	if d.opts.PromoteBuffers && d.opts.PromoteValues {
		v.flags = flagBuffer
	}
	return v, next, nil
}

func (d *decoder) readRegex(index int, key string) (Value, int, error) {
	pattern, options, ok := llbson.ReadRegex(d.data[index:])
	if !ok {
		return Value{}, 0, errors.Wrapf(ErrCorruptDocument, "regex %q is not null terminated", key)
	}
	next := index + len(pattern) + 1 + len(options) + 1

	if d.opts.BSONRegExp {
		return VC.Regex(pattern, options), next, nil
	}

	// Only the i, m, and s options have a native counterpart; the rest are
	// dropped during translation.
	var flags string
	for _, c := range options {
		switch c {
		case 'i', 'm', 's':
			flags += string(c)
		}
	}
	expr := pattern
	if flags != "" {
		expr = "(?" + flags + ")" + pattern
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return Value{}, 0, errors.Wrapf(ErrCorruptDocument, "invalid regular expression %q for key %q", pattern, key)
	}
	v := Value{t: TypeRegex, primitive: compiledRegex{rx: Regex{Pattern: pattern, Options: flags}, re: re}}
	return v, next, nil
}

func (d *decoder) readCodeWithScope(index int, key string, pol utf8Policy) (Value, int, error) {
	data := d.data
	if index+4 > len(data) {
		return Value{}, 0, errors.Wrapf(ErrCorruptDocument, "not enough bytes for code with scope %q", key)
	}
	total := int(readi32(data[index:]))
	if total < 4+5+5 || index+total > len(data) {
		return Value{}, 0, errors.Wrapf(ErrCorruptDocument, "invalid code with scope size %d for key %q", total, key)
	}

	code, n, err := d.readString(index+4, key, pol)
	if err != nil {
		return Value{}, 0, err
	}

	scopeVal, end, err := d.readDocValue(index+4+n, pol.child(key), true)
	if err != nil {
		return Value{}, 0, err
	}
	scopeSize := end - (index + 4 + n)

	if total != 4+n+scopeSize {
		return Value{}, 0, errors.Wrapf(ErrCorruptDocument,
			"code with scope %q declares %d bytes but its components span %d", key, total, 4+n+scopeSize)
	}

	return VC.CodeWithScope(code, scopeVal.Document()), index + total, nil
}

// readi32 is a helper function for reading an int32 from a slice of bytes.
func readi32(b []byte) int32 {
	_ = b[3] // bounds check hint to compiler; see golang.org/issue/14808
	return int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16 | int32(b[3])<<24
}
