// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import (
	"encoding/binary"
	"math"
	"strings"
	"time"

	"github.com/ikmak/bsonstream/bson/decimal"
	"github.com/ikmak/bsonstream/bson/objectid"
)

// VC is a convenience variable provided for access to the ValueConstructor
// methods.
var VC ValueConstructor

// EC is a convenience variable provided for access to the ElementConstructor
// methods.
var EC ElementConstructor

// ValueConstructor is used as a namespace for BSON value constructors.
type ValueConstructor struct{}

// ElementConstructor is used as a namespace for BSON element constructors.
type ElementConstructor struct{}

// Double constructs a BSON double Value.
func (ValueConstructor) Double(f float64) Value {
	v := Value{t: TypeDouble}
	binary.LittleEndian.PutUint64(v.bootstrap[0:8], math.Float64bits(f))
	return v
}

// String constructs a BSON string Value.
func (ValueConstructor) String(str string) Value {
	v := Value{t: TypeString}
	putstring(&v, str)
	return v
}

// Document constructs a Value from the given document. A nil document
// constructs a BSON null.
func (ValueConstructor) Document(doc *Document) Value {
	if doc == nil {
		return VC.Null()
	}
	return Value{t: TypeEmbeddedDocument, primitive: doc}
}

// Array constructs a Value from the given array. A nil array constructs a
// BSON null.
func (ValueConstructor) Array(arr *Array) Value {
	if arr == nil {
		return VC.Null()
	}
	return Value{t: TypeArray, primitive: arr}
}

// Binary constructs a BSON binary Value with the generic subtype.
func (ValueConstructor) Binary(data []byte) Value {
	return VC.BinaryWithSubtype(data, TypeBinaryGeneric)
}

// BinaryWithSubtype constructs a BSON binary Value with the given subtype.
func (ValueConstructor) BinaryWithSubtype(data []byte, subtype byte) Value {
	return Value{t: TypeBinary, primitive: Binary{Subtype: subtype, Data: data}}
}

// Undefined constructs a BSON undefined Value.
func (ValueConstructor) Undefined() Value { return Value{t: TypeUndefined} }

// ObjectID constructs a BSON objectid Value.
func (ValueConstructor) ObjectID(oid objectid.ObjectID) Value {
	v := Value{t: TypeObjectID}
	copy(v.bootstrap[0:12], oid[:])
	return v
}

// Boolean constructs a BSON boolean Value.
func (ValueConstructor) Boolean(b bool) Value {
	v := Value{t: TypeBoolean}
	if b {
		v.bootstrap[0] = 0x01
	}
	return v
}

// DateTime constructs a BSON datetime Value from milliseconds since the Unix
// epoch.
func (ValueConstructor) DateTime(dt int64) Value {
	v := Value{t: TypeDateTime}
	binary.LittleEndian.PutUint64(v.bootstrap[0:8], uint64(dt))
	return v
}

// Time constructs a BSON datetime Value from a time.Time.
func (ValueConstructor) Time(t time.Time) Value {
	return VC.DateTime(t.Unix()*1000 + int64(t.Nanosecond()/1000000))
}

// Null constructs a BSON null Value.
func (ValueConstructor) Null() Value { return Value{t: TypeNull} }

// Regex constructs a BSON regex Value.
func (ValueConstructor) Regex(pattern, options string) Value {
	return Value{t: TypeRegex, primitive: Regex{Pattern: pattern, Options: options}}
}

// DBPointer constructs a BSON dbpointer Value.
func (ValueConstructor) DBPointer(ns string, oid objectid.ObjectID) Value {
	return Value{t: TypeDBPointer, primitive: DBPointer{DB: ns, Pointer: oid}}
}

// JavaScript constructs a BSON JavaScript code Value.
func (ValueConstructor) JavaScript(code string) Value {
	v := Value{t: TypeJavaScript}
	putstring(&v, code)
	return v
}

// Symbol constructs a BSON symbol Value.
func (ValueConstructor) Symbol(symbol string) Value {
	v := Value{t: TypeSymbol}
	putstring(&v, symbol)
	return v
}

// CodeWithScope constructs a BSON JavaScript code with scope Value.
func (ValueConstructor) CodeWithScope(code string, scope *Document) Value {
	return Value{t: TypeCodeWithScope, primitive: CodeWithScope{Code: code, Scope: scope}}
}

// Int32 constructs a BSON int32 Value.
func (ValueConstructor) Int32(i int32) Value {
	v := Value{t: TypeInt32}
	binary.LittleEndian.PutUint32(v.bootstrap[0:4], uint32(i))
	return v
}

// Timestamp constructs a BSON timestamp Value.
func (ValueConstructor) Timestamp(t, i uint32) Value {
	v := Value{t: TypeTimestamp}
	binary.LittleEndian.PutUint32(v.bootstrap[0:4], i)
	binary.LittleEndian.PutUint32(v.bootstrap[4:8], t)
	return v
}

// Int64 constructs a BSON int64 Value.
func (ValueConstructor) Int64(i int64) Value {
	v := Value{t: TypeInt64}
	binary.LittleEndian.PutUint64(v.bootstrap[0:8], uint64(i))
	return v
}

// Decimal128 constructs a BSON decimal128 Value.
func (ValueConstructor) Decimal128(d decimal.Decimal128) Value {
	return Value{t: TypeDecimal128, primitive: d}
}

// MinKey constructs a BSON minkey Value.
func (ValueConstructor) MinKey() Value { return Value{t: TypeMinKey} }

// MaxKey constructs a BSON maxkey Value.
func (ValueConstructor) MaxKey() Value { return Value{t: TypeMaxKey} }

// DBRef constructs a Value holding a cross-collection reference.
func (ValueConstructor) DBRef(ref DBRef) Value {
	return Value{t: TypeEmbeddedDocument, primitive: ref}
}

// UUID constructs a BSON binary Value with the UUID subtype.
func (ValueConstructor) UUID(id UUID) Value {
	return Value{t: TypeBinary, primitive: id}
}

// Raw constructs a Value holding an undecoded BSON document.
func (ValueConstructor) Raw(r Raw) Value {
	return Value{t: TypeEmbeddedDocument, primitive: r}
}

// Double constructs a BSON double element with the given key and value.
func (ElementConstructor) Double(key string, f float64) Element {
	return Element{Key: key, Value: VC.Double(f)}
}

// String constructs a BSON string element with the given key and value.
func (ElementConstructor) String(key string, val string) Element {
	return Element{Key: key, Value: VC.String(val)}
}

// SubDocument constructs a BSON embedded document element with the given key
// and document.
func (ElementConstructor) SubDocument(key string, doc *Document) Element {
	return Element{Key: key, Value: VC.Document(doc)}
}

// Array constructs a BSON array element with the given key and array.
func (ElementConstructor) Array(key string, arr *Array) Element {
	return Element{Key: key, Value: VC.Array(arr)}
}

// Binary constructs a BSON binary element with the given key and value.
func (ElementConstructor) Binary(key string, data []byte) Element {
	return Element{Key: key, Value: VC.Binary(data)}
}

// BinaryWithSubtype constructs a BSON binary element with the given key,
// value, and subtype.
func (ElementConstructor) BinaryWithSubtype(key string, data []byte, subtype byte) Element {
	return Element{Key: key, Value: VC.BinaryWithSubtype(data, subtype)}
}

// Undefined constructs a BSON undefined element with the given key.
func (ElementConstructor) Undefined(key string) Element {
	return Element{Key: key, Value: VC.Undefined()}
}

// ObjectID constructs a BSON objectid element with the given key and value.
func (ElementConstructor) ObjectID(key string, oid objectid.ObjectID) Element {
	return Element{Key: key, Value: VC.ObjectID(oid)}
}

// Boolean constructs a BSON boolean element with the given key and value.
func (ElementConstructor) Boolean(key string, b bool) Element {
	return Element{Key: key, Value: VC.Boolean(b)}
}

// DateTime constructs a BSON datetime element with the given key and value.
func (ElementConstructor) DateTime(key string, dt int64) Element {
	return Element{Key: key, Value: VC.DateTime(dt)}
}

// Time constructs a BSON datetime element with the given key and value.
func (ElementConstructor) Time(key string, t time.Time) Element {
	return Element{Key: key, Value: VC.Time(t)}
}

// Null constructs a BSON null element with the given key.
func (ElementConstructor) Null(key string) Element {
	return Element{Key: key, Value: VC.Null()}
}

// Regex constructs a BSON regex element with the given key and value.
func (ElementConstructor) Regex(key string, pattern, options string) Element {
	return Element{Key: key, Value: VC.Regex(pattern, options)}
}

// DBPointer constructs a BSON dbpointer element with the given key and value.
func (ElementConstructor) DBPointer(key string, ns string, oid objectid.ObjectID) Element {
	return Element{Key: key, Value: VC.DBPointer(ns, oid)}
}

// JavaScript constructs a BSON JavaScript code element with the given key and
// value.
func (ElementConstructor) JavaScript(key string, code string) Element {
	return Element{Key: key, Value: VC.JavaScript(code)}
}

// Symbol constructs a BSON symbol element with the given key and value.
func (ElementConstructor) Symbol(key string, symbol string) Element {
	return Element{Key: key, Value: VC.Symbol(symbol)}
}

// CodeWithScope constructs a BSON JavaScript code with scope element with the
// given key and value.
func (ElementConstructor) CodeWithScope(key string, code string, scope *Document) Element {
	return Element{Key: key, Value: VC.CodeWithScope(code, scope)}
}

// Int32 constructs a BSON int32 element with the given key and value.
func (ElementConstructor) Int32(key string, i int32) Element {
	return Element{Key: key, Value: VC.Int32(i)}
}

// Timestamp constructs a BSON timestamp element with the given key and value.
func (ElementConstructor) Timestamp(key string, t, i uint32) Element {
	return Element{Key: key, Value: VC.Timestamp(t, i)}
}

// Int64 constructs a BSON int64 element with the given key and value.
func (ElementConstructor) Int64(key string, i int64) Element {
	return Element{Key: key, Value: VC.Int64(i)}
}

// Decimal128 constructs a BSON decimal128 element with the given key and
// value.
func (ElementConstructor) Decimal128(key string, d decimal.Decimal128) Element {
	return Element{Key: key, Value: VC.Decimal128(d)}
}

// MinKey constructs a BSON minkey element with the given key.
func (ElementConstructor) MinKey(key string) Element {
	return Element{Key: key, Value: VC.MinKey()}
}

// MaxKey constructs a BSON maxkey element with the given key.
func (ElementConstructor) MaxKey(key string) Element {
	return Element{Key: key, Value: VC.MaxKey()}
}

// DBRef constructs an element holding a cross-collection reference.
func (ElementConstructor) DBRef(key string, ref DBRef) Element {
	return Element{Key: key, Value: VC.DBRef(ref)}
}

// UUID constructs a BSON binary element with the UUID subtype.
func (ElementConstructor) UUID(key string, id UUID) Element {
	return Element{Key: key, Value: VC.UUID(id)}
}

// putstring stores str in the value's bootstrap space when it is short enough
// and free of null bytes, and in the primitive slot otherwise.
func putstring(v *Value, str string) {
	if len(str) < 16 && strings.IndexByte(str, 0x00) == -1 {
		copy(v.bootstrap[:], str)
		return
	}
	v.primitive = str
}
