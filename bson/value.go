// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"time"

	"github.com/ikmak/bsonstream/bson/decimal"
	"github.com/ikmak/bsonstream/bson/objectid"
)

// valueFlags records how the decoder was asked to surface a value from
// Interface. The zero value means native promotion, which is also the correct
// behavior for values built with the constructors.
type valueFlags byte

const (
	// flagWrapped marks a numeric value that was decoded with promotion
	// disabled; Interface surfaces the Int32/Int64/Double wrapper types.
	flagWrapped valueFlags = 1 << iota
	// flagBigInt marks an int64 decoded under UseBigInt64; Interface
	// surfaces a *big.Int.
	flagBigInt
	// flagBuffer marks a binary decoded under PromoteBuffers; Interface
	// surfaces the raw payload bytes.
	flagBuffer
)

// Value represents a BSON value.
type Value struct {
	// NOTE: The bootstrap is a small amount of space that'll be on the stack. At 15 bytes this
	// doesn't make this type any larger, since there are 7 bytes of padding and we want an int64 to
	// store small values (e.g. boolean, double, int64, etc...). The primitive property is where all
	// of the larger values go. They will use either Go primitives or the wrapper types.
	t         Type
	flags     valueFlags
	bootstrap [15]byte
	primitive interface{}
}

func (v Value) string() string {
	if v.primitive != nil {
		return v.primitive.(string)
	}
	// The string will either end with a null byte or it fills the entire bootstrap space.
	idx := bytes.IndexByte(v.bootstrap[:], 0x00)
	if idx == -1 {
		idx = 15
	}
	return string(v.bootstrap[:idx])
}

func (v Value) i64() int64 {
	return int64(v.bootstrap[0]) | int64(v.bootstrap[1])<<8 | int64(v.bootstrap[2])<<16 |
		int64(v.bootstrap[3])<<24 | int64(v.bootstrap[4])<<32 | int64(v.bootstrap[5])<<40 |
		int64(v.bootstrap[6])<<48 | int64(v.bootstrap[7])<<56
}

// IsZero returns true if this value is zero.
func (v Value) IsZero() bool { return v.t == Type(0) && v.primitive == nil }

// Type returns the BSON type of this value.
func (v Value) Type() Type { return v.t }

// IsNumber returns true if the type of v is a numeric BSON type.
func (v Value) IsNumber() bool {
	switch v.t {
	case TypeDouble, TypeInt32, TypeInt64, TypeDecimal128:
		return true
	default:
		return false
	}
}

// Double returns the BSON double value the Value represents. It panics if the
// value is a BSON type other than double.
func (v Value) Double() float64 {
	if v.t != TypeDouble {
		panic(ElementTypeError{"bson.Value.Double", v.t})
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(v.bootstrap[0:8]))
}

// DoubleOK is the same as Double, but returns a boolean instead of panicking.
func (v Value) DoubleOK() (float64, bool) {
	if v.t != TypeDouble {
		return 0, false
	}
	return v.Double(), true
}

// StringValue returns the BSON string the Value represents. It panics if the
// value is a BSON type other than string.
//
// NOTE: This method is called StringValue to avoid it implementing the
// fmt.Stringer interface.
func (v Value) StringValue() string {
	if v.t != TypeString {
		panic(ElementTypeError{"bson.Value.StringValue", v.t})
	}
	return v.string()
}

// StringValueOK is the same as StringValue, but returns a boolean instead of
// panicking.
func (v Value) StringValueOK() (string, bool) {
	if v.t != TypeString {
		return "", false
	}
	return v.StringValue(), true
}

// Document returns the BSON embedded document value the Value represents. It
// panics if the value is a BSON type other than embedded document, or if the
// embedded document is held as a DBRef or as undecoded Raw bytes.
func (v Value) Document() *Document {
	doc, ok := v.DocumentOK()
	if !ok {
		panic(ElementTypeError{"bson.Value.Document", v.t})
	}
	return doc
}

// DocumentOK is the same as Document, except it returns a boolean instead of
// panicking.
func (v Value) DocumentOK() (*Document, bool) {
	if v.t != TypeEmbeddedDocument {
		return nil, false
	}
	doc, ok := v.primitive.(*Document)
	return doc, ok
}

// DBRef returns the DBRef the Value represents. It panics if the value does
// not hold a DBRef.
func (v Value) DBRef() DBRef {
	ref, ok := v.DBRefOK()
	if !ok {
		panic(ElementTypeError{"bson.Value.DBRef", v.t})
	}
	return ref
}

// DBRefOK is the same as DBRef, except it returns a boolean instead of
// panicking.
func (v Value) DBRefOK() (DBRef, bool) {
	if v.t != TypeEmbeddedDocument {
		return DBRef{}, false
	}
	ref, ok := v.primitive.(DBRef)
	return ref, ok
}

// RawOK returns the undecoded document bytes the Value holds, if the value
// was decoded with the Raw or FieldsAsRaw options.
func (v Value) RawOK() (Raw, bool) {
	if v.t != TypeEmbeddedDocument {
		return nil, false
	}
	r, ok := v.primitive.(Raw)
	return r, ok
}

// Array returns the BSON array value the Value represents. It panics if the
// value is a BSON type other than array.
func (v Value) Array() *Array {
	if v.t != TypeArray {
		panic(ElementTypeError{"bson.Value.Array", v.t})
	}
	return v.primitive.(*Array)
}

// ArrayOK is the same as Array, except it returns a boolean instead of
// panicking.
func (v Value) ArrayOK() (*Array, bool) {
	if v.t != TypeArray {
		return nil, false
	}
	return v.Array(), true
}

// Binary returns the BSON binary value the Value represents. It panics if the
// value is a BSON type other than binary.
func (v Value) Binary() Binary {
	bin, ok := v.BinaryOK()
	if !ok {
		panic(ElementTypeError{"bson.Value.Binary", v.t})
	}
	return bin
}

// BinaryOK is the same as Binary, except it returns a boolean instead of
// panicking. Values holding a promoted UUID are returned in their subtype
// 0x04 binary form.
func (v Value) BinaryOK() (Binary, bool) {
	if v.t != TypeBinary {
		return Binary{}, false
	}
	switch tt := v.primitive.(type) {
	case Binary:
		return tt, true
	case UUID:
		return Binary{Subtype: TypeBinaryUUID, Data: tt[:]}, true
	default:
		return Binary{}, false
	}
}

// UUIDOK returns the UUID the Value holds. The boolean is false unless the
// value is a binary of subtype 0x04 that was promoted during decode or built
// with the UUID constructor.
func (v Value) UUIDOK() (UUID, bool) {
	if v.t != TypeBinary {
		return UUID{}, false
	}
	id, ok := v.primitive.(UUID)
	return id, ok
}

// ObjectID returns the BSON ObjectID the Value represents. It panics if the
// value is a BSON type other than ObjectID.
func (v Value) ObjectID() objectid.ObjectID {
	if v.t != TypeObjectID {
		panic(ElementTypeError{"bson.Value.ObjectID", v.t})
	}
	var oid objectid.ObjectID
	copy(oid[:], v.bootstrap[:12])
	return oid
}

// ObjectIDOK is the same as ObjectID, except it returns a boolean instead of
// panicking.
func (v Value) ObjectIDOK() (objectid.ObjectID, bool) {
	if v.t != TypeObjectID {
		return objectid.ObjectID{}, false
	}
	return v.ObjectID(), true
}

// Boolean returns the BSON boolean the Value represents. It panics if the
// value is a BSON type other than boolean.
func (v Value) Boolean() bool {
	if v.t != TypeBoolean {
		panic(ElementTypeError{"bson.Value.Boolean", v.t})
	}
	return v.bootstrap[0] == 0x01
}

// BooleanOK is the same as Boolean, except it returns a boolean instead of
// panicking.
func (v Value) BooleanOK() (bool, bool) {
	if v.t != TypeBoolean {
		return false, false
	}
	return v.Boolean(), true
}

// DateTime returns the BSON datetime the Value represents as milliseconds
// since the Unix epoch. It panics if the value is a BSON type other than
// datetime.
func (v Value) DateTime() int64 {
	if v.t != TypeDateTime {
		panic(ElementTypeError{"bson.Value.DateTime", v.t})
	}
	return v.i64()
}

// DateTimeOK is the same as DateTime, except it returns a boolean instead of
// panicking.
func (v Value) DateTimeOK() (int64, bool) {
	if v.t != TypeDateTime {
		return 0, false
	}
	return v.DateTime(), true
}

// Time returns the BSON datetime the Value represents as time.Time. It panics
// if the value is a BSON type other than datetime.
func (v Value) Time() time.Time {
	i := v.DateTime()
	return time.Unix(i/1000, i%1000*1000000).UTC()
}

// TimeOK is the same as Time, except it returns a boolean instead of
// panicking.
func (v Value) TimeOK() (time.Time, bool) {
	if v.t != TypeDateTime {
		return time.Time{}, false
	}
	return v.Time(), true
}

// Regex returns the BSON regex the Value represents. It panics if the value
// is a BSON type other than regex. For values that were translated to a
// native Go regexp during decode, the returned Regex holds the original
// pattern and the translated option letters.
func (v Value) Regex() Regex {
	rx, ok := v.RegexOK()
	if !ok {
		panic(ElementTypeError{"bson.Value.Regex", v.t})
	}
	return rx
}

// RegexOK is the same as Regex, except that it returns a boolean instead of
// panicking.
func (v Value) RegexOK() (Regex, bool) {
	if v.t != TypeRegex {
		return Regex{}, false
	}
	switch tt := v.primitive.(type) {
	case Regex:
		return tt, true
	case compiledRegex:
		return tt.rx, true
	default:
		return Regex{}, false
	}
}

// CompiledRegexOK returns the native Go regexp the Value holds. The boolean
// is false unless the value was decoded with BSONRegExp disabled.
func (v Value) CompiledRegexOK() (*regexp.Regexp, bool) {
	if v.t != TypeRegex {
		return nil, false
	}
	cr, ok := v.primitive.(compiledRegex)
	if !ok {
		return nil, false
	}
	return cr.re, true
}

// DBPointer returns the BSON dbpointer the Value represents. It panics if the
// value is a BSON type other than dbpointer.
func (v Value) DBPointer() DBPointer {
	if v.t != TypeDBPointer {
		panic(ElementTypeError{"bson.Value.DBPointer", v.t})
	}
	return v.primitive.(DBPointer)
}

// DBPointerOK is the same as DBPointer, except that it returns a boolean
// instead of panicking.
func (v Value) DBPointerOK() (DBPointer, bool) {
	if v.t != TypeDBPointer {
		return DBPointer{}, false
	}
	return v.DBPointer(), true
}

// JavaScript returns the BSON JavaScript code the Value represents. It panics
// if the value is a BSON type other than JavaScript code.
func (v Value) JavaScript() JavaScriptCode {
	if v.t != TypeJavaScript {
		panic(ElementTypeError{"bson.Value.JavaScript", v.t})
	}
	return JavaScriptCode(v.string())
}

// JavaScriptOK is the same as JavaScript, except that it returns a boolean
// instead of panicking.
func (v Value) JavaScriptOK() (JavaScriptCode, bool) {
	if v.t != TypeJavaScript {
		return "", false
	}
	return v.JavaScript(), true
}

// Symbol returns the BSON symbol the Value represents. It panics if the value
// is a BSON type other than symbol.
func (v Value) Symbol() Symbol {
	if v.t != TypeSymbol {
		panic(ElementTypeError{"bson.Value.Symbol", v.t})
	}
	return Symbol(v.string())
}

// SymbolOK is the same as Symbol, except that it returns a boolean instead of
// panicking.
func (v Value) SymbolOK() (Symbol, bool) {
	if v.t != TypeSymbol {
		return "", false
	}
	return v.Symbol(), true
}

// CodeWithScope returns the BSON code with scope value the Value represents.
// It panics if the value is a BSON type other than code with scope.
func (v Value) CodeWithScope() CodeWithScope {
	if v.t != TypeCodeWithScope {
		panic(ElementTypeError{"bson.Value.CodeWithScope", v.t})
	}
	return v.primitive.(CodeWithScope)
}

// CodeWithScopeOK is the same as CodeWithScope, except that it returns a
// boolean instead of panicking.
func (v Value) CodeWithScopeOK() (CodeWithScope, bool) {
	if v.t != TypeCodeWithScope {
		return CodeWithScope{}, false
	}
	return v.CodeWithScope(), true
}

// Int32 returns the BSON int32 the Value represents. It panics if the value
// is a BSON type other than int32.
func (v Value) Int32() int32 {
	if v.t != TypeInt32 {
		panic(ElementTypeError{"bson.Value.Int32", v.t})
	}
	return int32(v.bootstrap[0]) | int32(v.bootstrap[1])<<8 |
		int32(v.bootstrap[2])<<16 | int32(v.bootstrap[3])<<24
}

// Int32OK is the same as Int32, except that it returns a boolean instead of
// panicking.
func (v Value) Int32OK() (int32, bool) {
	if v.t != TypeInt32 {
		return 0, false
	}
	return v.Int32(), true
}

// Timestamp returns the BSON timestamp the Value represents. It panics if the
// value is a BSON type other than timestamp.
func (v Value) Timestamp() Timestamp {
	if v.t != TypeTimestamp {
		panic(ElementTypeError{"bson.Value.Timestamp", v.t})
	}
	return Timestamp{
		I: uint32(v.bootstrap[0]) | uint32(v.bootstrap[1])<<8 |
			uint32(v.bootstrap[2])<<16 | uint32(v.bootstrap[3])<<24,
		T: uint32(v.bootstrap[4]) | uint32(v.bootstrap[5])<<8 |
			uint32(v.bootstrap[6])<<16 | uint32(v.bootstrap[7])<<24,
	}
}

// TimestampOK is the same as Timestamp, except that it returns a boolean
// instead of panicking.
func (v Value) TimestampOK() (Timestamp, bool) {
	if v.t != TypeTimestamp {
		return Timestamp{}, false
	}
	return v.Timestamp(), true
}

// Int64 returns the BSON int64 the Value represents. It panics if the value
// is a BSON type other than int64.
func (v Value) Int64() int64 {
	if v.t != TypeInt64 {
		panic(ElementTypeError{"bson.Value.Int64", v.t})
	}
	return v.i64()
}

// Int64OK is the same as Int64, except that it returns a boolean instead of
// panicking.
func (v Value) Int64OK() (int64, bool) {
	if v.t != TypeInt64 {
		return 0, false
	}
	return v.Int64(), true
}

// Decimal128 returns the BSON decimal128 value the Value represents. It
// panics if the value is a BSON type other than decimal128.
func (v Value) Decimal128() decimal.Decimal128 {
	if v.t != TypeDecimal128 {
		panic(ElementTypeError{"bson.Value.Decimal128", v.t})
	}
	return v.primitive.(decimal.Decimal128)
}

// Decimal128OK is the same as Decimal128, except that it returns a boolean
// instead of panicking.
func (v Value) Decimal128OK() (decimal.Decimal128, bool) {
	if v.t != TypeDecimal128 {
		return decimal.Decimal128{}, false
	}
	return v.Decimal128(), true
}

// Interface returns the Go value of this Value as an empty interface.
//
// For values produced by the decoder the representation honors the promotion
// options that were in effect: numeric values decoded with PromoteValues
// disabled surface as the Int32, Int64, and Double wrapper types, int64
// values decoded under UseBigInt64 surface as *big.Int, and binary payloads
// decoded under PromoteBuffers surface as []byte.
func (v Value) Interface() interface{} {
	switch v.t {
	case TypeDouble:
		if v.flags&flagWrapped != 0 {
			return Double(v.Double())
		}
		return v.Double()
	case TypeString:
		return v.StringValue()
	case TypeEmbeddedDocument:
		return v.primitive
	case TypeArray:
		return v.Array()
	case TypeBinary:
		if id, ok := v.UUIDOK(); ok {
			return id
		}
		if v.flags&flagBuffer != 0 {
			return v.Binary().Data
		}
		return v.Binary()
	case TypeUndefined:
		return Undefined{}
	case TypeObjectID:
		return v.ObjectID()
	case TypeBoolean:
		return v.Boolean()
	case TypeDateTime:
		return v.Time()
	case TypeNull:
		return Null{}
	case TypeRegex:
		if re, ok := v.CompiledRegexOK(); ok {
			return re
		}
		return v.Regex()
	case TypeDBPointer:
		return v.DBPointer()
	case TypeJavaScript:
		return v.JavaScript()
	case TypeSymbol:
		return v.Symbol()
	case TypeCodeWithScope:
		return v.CodeWithScope()
	case TypeInt32:
		if v.flags&flagWrapped != 0 {
			return Int32(v.Int32())
		}
		return v.Int32()
	case TypeTimestamp:
		return v.Timestamp()
	case TypeInt64:
		if v.flags&flagBigInt != 0 {
			return big.NewInt(v.Int64())
		}
		if v.flags&flagWrapped != 0 {
			return Int64(v.Int64())
		}
		return v.Int64()
	case TypeDecimal128:
		return v.Decimal128()
	case TypeMinKey:
		return MinKey{}
	case TypeMaxKey:
		return MaxKey{}
	default:
		return nil
	}
}

// Equal compares v to v2 and returns true if they are equal. Promotion flags
// are ignored; two values are equal when they hold the same BSON type and
// payload.
func (v Value) Equal(v2 Value) bool {
	if v.t != v2.t {
		return false
	}
	switch v.t {
	case TypeDouble, TypeDateTime:
		return bytes.Equal(v.bootstrap[0:8], v2.bootstrap[0:8])
	case TypeString:
		return v.string() == v2.string()
	case TypeEmbeddedDocument:
		return v.embeddedEqual(v2)
	case TypeArray:
		return v.Array().Equal(v2.Array())
	case TypeBinary:
		b, ok := v.BinaryOK()
		b2, ok2 := v2.BinaryOK()
		return ok && ok2 && b.Equal(b2)
	case TypeUndefined, TypeNull, TypeMinKey, TypeMaxKey:
		return true
	case TypeObjectID:
		return bytes.Equal(v.bootstrap[0:12], v2.bootstrap[0:12])
	case TypeBoolean:
		return v.bootstrap[0] == v2.bootstrap[0]
	case TypeRegex:
		return v.Regex().Equal(v2.Regex())
	case TypeDBPointer:
		return v.DBPointer().Equal(v2.DBPointer())
	case TypeJavaScript:
		return v.JavaScript() == v2.JavaScript()
	case TypeSymbol:
		return v.Symbol() == v2.Symbol()
	case TypeCodeWithScope:
		return v.CodeWithScope().Equal(v2.CodeWithScope())
	case TypeInt32:
		return v.Int32() == v2.Int32()
	case TypeTimestamp:
		return v.Timestamp().Equal(v2.Timestamp())
	case TypeInt64:
		return v.Int64() == v2.Int64()
	case TypeDecimal128:
		h, l := v.Decimal128().GetBytes()
		h2, l2 := v2.Decimal128().GetBytes()
		return h == h2 && l == l2
	default:
		return true
	}
}

func (v Value) embeddedEqual(v2 Value) bool {
	switch tt := v.primitive.(type) {
	case *Document:
		doc2, ok := v2.DocumentOK()
		return ok && tt.Equal(doc2)
	case DBRef:
		ref2, ok := v2.DBRefOK()
		return ok && tt.Equal(ref2)
	case Raw:
		r2, ok := v2.RawOK()
		return ok && bytes.Equal(tt, r2)
	default:
		return false
	}
}

// String implements the fmt.Stringer interface.
func (v Value) String() string {
	switch v.t {
	case TypeString:
		return fmt.Sprintf(`"%s"`, v.StringValue())
	case Type(0):
		return "<empty>"
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}
