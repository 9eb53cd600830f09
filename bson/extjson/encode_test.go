// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package extjson_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/pretty"

	"github.com/ikmak/bsonstream/bson"
	"github.com/ikmak/bsonstream/bson/decimal"
	"github.com/ikmak/bsonstream/bson/extjson"
	"github.com/ikmak/bsonstream/bson/objectid"
)

var testOID = objectid.ObjectID{0x5a, 0x93, 0x4e, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}

func marshalValue(t *testing.T, v bson.Value, opts *extjson.EncodeOptions) string {
	t.Helper()
	out, err := extjson.Marshal(v, opts)
	require.NoError(t, err)
	return out
}

func TestMarshalSimpleDocument(t *testing.T) {
	doc := bson.NewDocument(
		bson.EC.Int32("a", 1),
		bson.EC.String("b", "hello"),
		bson.EC.Boolean("c", true),
	)
	out, err := extjson.MarshalDocument(doc, nil)
	require.NoError(t, err)
	require.Equal(t, `{"a":1,"b":"hello","c":true}`, out)
}

func TestMarshalProjections(t *testing.T) {
	canonical := &extjson.EncodeOptions{Canonical: true}
	relaxed := extjson.NewEncodeOptions()
	legacy := &extjson.EncodeOptions{Legacy: true}
	d128, err := decimal.ParseDecimal128("1.5E+3")
	require.NoError(t, err)
	uuid, err := bson.ParseUUID("00112233-4455-6677-8899-aabbccddeeff")
	require.NoError(t, err)

	cases := []struct {
		name string
		v    bson.Value
		opts *extjson.EncodeOptions
		want string
	}{
		{"int32 canonical", bson.VC.Int32(42), canonical, `{"$numberInt":"42"}`},
		{"int32 relaxed", bson.VC.Int32(42), relaxed, `42`},
		{"int64 canonical", bson.VC.Int64(42), canonical, `{"$numberLong":"42"}`},
		{"int64 relaxed safe", bson.VC.Int64(42), relaxed, `42`},
		{"int64 relaxed unsafe", bson.VC.Int64(1 << 60), relaxed, `{"$numberLong":"1152921504606846976"}`},
		{"double canonical", bson.VC.Double(3), canonical, `{"$numberDouble":"3.0"}`},
		{"double canonical fraction", bson.VC.Double(1.5), canonical, `{"$numberDouble":"1.5"}`},
		{"double relaxed", bson.VC.Double(1.5), relaxed, `1.5`},
		{"double relaxed integral", bson.VC.Double(3), relaxed, `3.0`},
		{"double NaN relaxed", bson.VC.Double(math.NaN()), relaxed, `{"$numberDouble":"NaN"}`},
		{"double Infinity canonical", bson.VC.Double(math.Inf(1)), canonical, `{"$numberDouble":"Infinity"}`},
		{"double -Infinity relaxed", bson.VC.Double(math.Inf(-1)), relaxed, `{"$numberDouble":"-Infinity"}`},
		{"decimal128", bson.VC.Decimal128(d128), canonical, `{"$numberDecimal":"1.5E+3"}`},
		{"objectID", bson.VC.ObjectID(testOID), relaxed, `{"$oid":"5a934e000102030405060708"}`},
		{"binary", bson.VC.BinaryWithSubtype([]byte{1, 2, 3}, 0x80), canonical,
			`{"$binary":{"base64":"AQID","subType":"80"}}`},
		{"binary legacy", bson.VC.BinaryWithSubtype([]byte{1, 2, 3}, 0x80), legacy,
			`{"$binary":"AQID","$type":"80"}`},
		{"uuid", bson.VC.UUID(uuid), relaxed,
			`{"$binary":{"base64":"ABEiM0RVZneImaq7zN3u/w==","subType":"04"}}`},
		{"date relaxed", bson.VC.DateTime(1672531200000), relaxed, `{"$date":"2023-01-01T00:00:00Z"}`},
		{"date relaxed millis", bson.VC.DateTime(1672531200123), relaxed, `{"$date":"2023-01-01T00:00:00.123Z"}`},
		{"date canonical", bson.VC.DateTime(1672531200000), canonical, `{"$date":{"$numberLong":"1672531200000"}}`},
		{"date before epoch", bson.VC.DateTime(-1), relaxed, `{"$date":{"$numberLong":"-1"}}`},
		{"date beyond year 9999", bson.VC.DateTime(253402300800000), relaxed, `{"$date":{"$numberLong":"253402300800000"}}`},
		{"timestamp", bson.VC.Timestamp(4294967295, 1), relaxed, `{"$timestamp":{"t":4294967295,"i":1}}`},
		{"regex", bson.VC.Regex("^a\\d", "im"), canonical,
			`{"$regularExpression":{"pattern":"^a\\d","options":"im"}}`},
		{"regex legacy", bson.VC.Regex("^a", "i"), legacy, `{"$regex":"^a","$options":"i"}`},
		{"minKey", bson.VC.MinKey(), relaxed, `{"$minKey":1}`},
		{"maxKey", bson.VC.MaxKey(), relaxed, `{"$maxKey":1}`},
		{"symbol", bson.VC.Symbol("sym"), relaxed, `{"$symbol":"sym"}`},
		{"code", bson.VC.JavaScript("var x = 1;"), relaxed, `{"$code":"var x = 1;"}`},
		{"code with scope", bson.VC.CodeWithScope("f()", bson.NewDocument(bson.EC.Int32("y", 2))), relaxed,
			`{"$code":"f()","$scope":{"y":2}}`},
		{"undefined", bson.VC.Undefined(), relaxed, `{"$undefined":true}`},
		{"null", bson.VC.Null(), relaxed, `null`},
		{"dbPointer", bson.VC.DBPointer("db.coll", testOID), relaxed,
			`{"$dbPointer":{"$ref":"db.coll","$id":{"$oid":"5a934e000102030405060708"}}}`},
		{"dbref", bson.VC.DBRef(bson.DBRef{
			Collection: "things",
			ID:         bson.VC.ObjectID(testOID),
			Database:   "prod",
			Extra:      bson.NewDocument(bson.EC.Int32("weight", 7)),
		}), relaxed,
			`{"$ref":"things","$id":{"$oid":"5a934e000102030405060708"},"$db":"prod","weight":7}`},
		{"string escaping", bson.VC.String("a\"b\\c\nd\x01e"), relaxed, `"a\"b\\c\nd\u0001e"`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, marshalValue(t, tc.v, tc.opts))
		})
	}
}

func TestMarshalDateScenario(t *testing.T) {
	doc := bson.NewDocument(bson.EC.DateTime("date", 1672531200000))

	relaxedOut, err := extjson.MarshalDocument(doc, nil)
	require.NoError(t, err)
	require.Equal(t, `{"date":{"$date":"2023-01-01T00:00:00Z"}}`, relaxedOut)

	canonicalOut, err := extjson.MarshalDocument(doc, &extjson.EncodeOptions{Canonical: true})
	require.NoError(t, err)
	require.Equal(t, `{"date":{"$date":{"$numberLong":"1672531200000"}}}`, canonicalOut)
}

func TestMarshalIndent(t *testing.T) {
	doc := bson.NewDocument(
		bson.EC.Int32("a", 1),
		bson.EC.SubDocument("b", bson.NewDocument(bson.EC.Int32("c", 2))),
		bson.EC.Array("d", bson.NewArray(bson.VC.Int32(1), bson.VC.Int32(2))),
		bson.EC.SubDocument("e", bson.NewDocument()),
	)

	out, err := extjson.MarshalDocument(doc, &extjson.EncodeOptions{Indent: extjson.IndentSpaces(2)})
	require.NoError(t, err)

	want := "{\n" +
		"  \"a\": 1,\n" +
		"  \"b\": {\n" +
		"    \"c\": 2\n" +
		"  },\n" +
		"  \"d\": [\n" +
		"    1,\n" +
		"    2\n" +
		"  ],\n" +
		"  \"e\": {}\n" +
		"}"
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("indented output mismatch (-want +got):\n%s", diff)
	}

	compact, err := extjson.MarshalDocument(doc, nil)
	require.NoError(t, err)
	require.Equal(t, compact, string(pretty.Ugly([]byte(out))))
}

func TestMarshalIndentCap(t *testing.T) {
	require.Equal(t, "          ", extjson.IndentSpaces(12))
	require.Equal(t, "", extjson.IndentSpaces(-1))
}

func TestMarshalReplacer(t *testing.T) {
	t.Run("function drops document entries", func(t *testing.T) {
		doc := bson.NewDocument(
			bson.EC.Int32("keep", 1),
			bson.EC.Int32("drop", 2),
		)
		opts := &extjson.EncodeOptions{
			Replacer: func(key string, v bson.Value) (bson.Value, bool) {
				if key == "drop" {
					return bson.Value{}, false
				}
				return v, true
			},
		}
		out, err := extjson.MarshalDocument(doc, opts)
		require.NoError(t, err)
		require.Equal(t, `{"keep":1}`, out)
	})
	t.Run("function rewrites values", func(t *testing.T) {
		doc := bson.NewDocument(bson.EC.Int32("n", 1))
		opts := &extjson.EncodeOptions{
			Replacer: func(key string, v bson.Value) (bson.Value, bool) {
				return bson.VC.Int32(v.Int32() * 10), true
			},
		}
		out, err := extjson.MarshalDocument(doc, opts)
		require.NoError(t, err)
		require.Equal(t, `{"n":10}`, out)
	})
	t.Run("omitted array elements become null", func(t *testing.T) {
		doc := bson.NewDocument(bson.EC.Array("a",
			bson.NewArray(bson.VC.Int32(1), bson.VC.Int32(2), bson.VC.Int32(3))))
		opts := &extjson.EncodeOptions{
			Replacer: func(key string, v bson.Value) (bson.Value, bool) {
				if key == "1" {
					return bson.Value{}, false
				}
				return v, true
			},
		}
		out, err := extjson.MarshalDocument(doc, opts)
		require.NoError(t, err)
		require.Equal(t, `{"a":[1,null,3]}`, out)
	})
	t.Run("all entries dropped renders empty object", func(t *testing.T) {
		doc := bson.NewDocument(bson.EC.Int32("a", 1))
		opts := &extjson.EncodeOptions{
			Replacer: func(string, bson.Value) (bson.Value, bool) { return bson.Value{}, false },
		}
		out, err := extjson.MarshalDocument(doc, opts)
		require.NoError(t, err)
		require.Equal(t, `{}`, out)
	})
}

func TestMarshalKeepKeys(t *testing.T) {
	doc := bson.NewDocument(
		bson.EC.Int32("a", 1),
		bson.EC.SubDocument("b", bson.NewDocument(
			bson.EC.Int32("a", 2),
			bson.EC.Int32("x", 3),
		)),
		bson.EC.Int32("c", 4),
	)
	opts := &extjson.EncodeOptions{KeepKeys: []string{"c", "a", "b"}}
	out, err := extjson.MarshalDocument(doc, opts)
	require.NoError(t, err)
	// keys stay in insertion order and the allow-list applies at every level
	require.Equal(t, `{"a":1,"b":{"a":2},"c":4}`, out)
}

func TestMarshalCycleDetection(t *testing.T) {
	t.Run("self referencing document", func(t *testing.T) {
		doc := bson.NewDocument()
		doc.Append("self", bson.VC.Document(doc))
		_, err := extjson.MarshalDocument(doc, nil)
		require.Error(t, err)
		require.Contains(t, err.Error(), "Converting circular structure")
	})
	t.Run("array cycle through document", func(t *testing.T) {
		arr := bson.NewArray()
		doc := bson.NewDocument(bson.EC.Array("a", arr))
		arr.Append(bson.VC.Document(doc))
		_, err := extjson.MarshalDocument(doc, nil)
		require.Error(t, err)
		require.Contains(t, err.Error(), "Converting circular structure")
	})
	t.Run("shared siblings are not cycles", func(t *testing.T) {
		shared := bson.NewDocument(bson.EC.Int32("v", 1))
		doc := bson.NewDocument(
			bson.EC.SubDocument("first", shared),
			bson.EC.SubDocument("second", shared),
		)
		out, err := extjson.MarshalDocument(doc, nil)
		require.NoError(t, err)
		require.Equal(t, `{"first":{"v":1},"second":{"v":1}}`, out)
	})
}

func TestMarshalRawValues(t *testing.T) {
	raw := bson.Raw{0x0C, 0x00, 0x00, 0x00, 0x10, 'x', 0x00, 0x07, 0x00, 0x00, 0x00, 0x00}
	doc := bson.NewDocument(bson.Element{Key: "r", Value: bson.VC.Raw(raw)})
	out, err := extjson.MarshalDocument(doc, nil)
	require.NoError(t, err)
	require.Equal(t, `{"r":{"x":7}}`, out)
}
