// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package extjson

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ikmak/bsonstream/bson"
)

const rfc3339Milli = "2006-01-02T15:04:05.999Z07:00"

// maxValidDateTimeMS is the number of milliseconds at 9999-12-31T23:59:59.999Z,
// the last instant the relaxed $date string form can represent.
const maxValidDateTimeMS = 253402300799999

// Bounds of the range in which an int64 survives a round trip through a
// double-width JSON number.
const (
	maxSafeInt64 = int64(1)<<53 - 1
	minSafeInt64 = -maxSafeInt64
)

// appendValue writes the Extended JSON projection of a non-container value to
// buf. Documents, arrays, DBRefs, raw documents, and scoped code are handled
// by the stream's frame stack instead; a code with scope value only reaches
// this function when its scope is nil.
func appendValue(buf *bytes.Buffer, v bson.Value, opts *EncodeOptions) error {
	switch v.Type() {
	case bson.TypeDouble:
		appendDouble(buf, v.Double(), opts)
	case bson.TypeString:
		writeEscapedString(buf, v.StringValue())
	case bson.TypeBinary:
		appendBinary(buf, v.Binary(), opts)
	case bson.TypeUndefined:
		buf.WriteString(`{"$undefined":true}`)
	case bson.TypeObjectID:
		buf.WriteString(`{"$oid":"`)
		buf.WriteString(v.ObjectID().Hex())
		buf.WriteString(`"}`)
	case bson.TypeBoolean:
		if v.Boolean() {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case bson.TypeDateTime:
		appendDateTime(buf, v.DateTime(), opts)
	case bson.TypeNull:
		buf.WriteString("null")
	case bson.TypeRegex:
		appendRegex(buf, v.Regex(), opts)
	case bson.TypeDBPointer:
		dbp := v.DBPointer()
		buf.WriteString(`{"$dbPointer":{"$ref":`)
		writeEscapedString(buf, dbp.DB)
		buf.WriteString(`,"$id":{"$oid":"`)
		buf.WriteString(dbp.Pointer.Hex())
		buf.WriteString(`"}}}`)
	case bson.TypeJavaScript:
		buf.WriteString(`{"$code":`)
		writeEscapedString(buf, string(v.JavaScript()))
		buf.WriteString(`}`)
	case bson.TypeCodeWithScope:
		buf.WriteString(`{"$code":`)
		writeEscapedString(buf, v.CodeWithScope().Code)
		buf.WriteString(`}`)
	case bson.TypeSymbol:
		buf.WriteString(`{"$symbol":`)
		writeEscapedString(buf, string(v.Symbol()))
		buf.WriteString(`}`)
	case bson.TypeInt32:
		i := v.Int32()
		if opts.Canonical {
			buf.WriteString(`{"$numberInt":"`)
			buf.WriteString(strconv.FormatInt(int64(i), 10))
			buf.WriteString(`"}`)
		} else {
			buf.WriteString(strconv.FormatInt(int64(i), 10))
		}
	case bson.TypeTimestamp:
		ts := v.Timestamp()
		buf.WriteString(`{"$timestamp":{"t":`)
		buf.WriteString(strconv.FormatUint(uint64(ts.T), 10))
		buf.WriteString(`,"i":`)
		buf.WriteString(strconv.FormatUint(uint64(ts.I), 10))
		buf.WriteString(`}}`)
	case bson.TypeInt64:
		i := v.Int64()
		if !opts.Canonical && i >= minSafeInt64 && i <= maxSafeInt64 {
			buf.WriteString(strconv.FormatInt(i, 10))
		} else {
			buf.WriteString(`{"$numberLong":"`)
			buf.WriteString(strconv.FormatInt(i, 10))
			buf.WriteString(`"}`)
		}
	case bson.TypeDecimal128:
		buf.WriteString(`{"$numberDecimal":"`)
		buf.WriteString(v.Decimal128().String())
		buf.WriteString(`"}`)
	case bson.TypeMinKey:
		buf.WriteString(`{"$minKey":1}`)
	case bson.TypeMaxKey:
		buf.WriteString(`{"$maxKey":1}`)
	default:
		return errors.Errorf("cannot encode BSON type %s as Extended JSON", v.Type())
	}
	return nil
}

func appendDouble(buf *bytes.Buffer, f float64, opts *EncodeOptions) {
	if !opts.Canonical && !math.IsNaN(f) && !math.IsInf(f, 0) {
		buf.WriteString(formatDouble(f))
		return
	}
	buf.WriteString(`{"$numberDouble":"`)
	buf.WriteString(formatDouble(f))
	buf.WriteString(`"}`)
}

// formatDouble renders f the way the canonical Extended JSON corpus expects:
// non-finite values by name, exponents in capital-E form, and integral values
// with a trailing ".0".
func formatDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	s := strconv.FormatFloat(f, 'G', -1, 64)
	if !strings.ContainsAny(s, "E.") {
		s += ".0"
	}
	return s
}

func appendDateTime(buf *bytes.Buffer, ms int64, opts *EncodeOptions) {
	if !opts.Canonical && ms >= 0 && ms <= maxValidDateTimeMS {
		t := msToTime(ms)
		buf.WriteString(`{"$date":"`)
		buf.WriteString(t.Format(rfc3339Milli))
		buf.WriteString(`"}`)
		return
	}
	buf.WriteString(`{"$date":{"$numberLong":"`)
	buf.WriteString(strconv.FormatInt(ms, 10))
	buf.WriteString(`"}}`)
}

func appendBinary(buf *bytes.Buffer, b bson.Binary, opts *EncodeOptions) {
	b64 := base64.StdEncoding.EncodeToString(b.Data)
	sub := hex.EncodeToString([]byte{b.Subtype})
	if opts.Legacy {
		buf.WriteString(`{"$binary":"`)
		buf.WriteString(b64)
		buf.WriteString(`","$type":"`)
		buf.WriteString(sub)
		buf.WriteString(`"}`)
		return
	}
	buf.WriteString(`{"$binary":{"base64":"`)
	buf.WriteString(b64)
	buf.WriteString(`","subType":"`)
	buf.WriteString(sub)
	buf.WriteString(`"}}`)
}

func appendRegex(buf *bytes.Buffer, rx bson.Regex, opts *EncodeOptions) {
	if opts.Legacy {
		buf.WriteString(`{"$regex":`)
		writeEscapedString(buf, rx.Pattern)
		buf.WriteString(`,"$options":`)
		writeEscapedString(buf, rx.Options)
		buf.WriteString(`}`)
		return
	}
	buf.WriteString(`{"$regularExpression":{"pattern":`)
	writeEscapedString(buf, rx.Pattern)
	buf.WriteString(`,"options":`)
	writeEscapedString(buf, rx.Options)
	buf.WriteString(`}}`)
}

func msToTime(ms int64) time.Time {
	return time.Unix(ms/1000, ms%1000*1000000).UTC()
}

const hexChars = "0123456789abcdef"

// writeEscapedString writes s as a JSON string literal. Control characters
// are escaped, valid UTF-8 passes through untouched.
func writeEscapedString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			continue
		}
		buf.WriteString(s[start:i])
		switch c {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			buf.WriteString(`\u00`)
			buf.WriteByte(hexChars[c>>4])
			buf.WriteByte(hexChars[c&0xF])
		}
		start = i + 1
	}
	buf.WriteString(s[start:])
	buf.WriteByte('"')
}
