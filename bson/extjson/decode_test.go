// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package extjson_test

import (
	"math"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"github.com/ikmak/bsonstream/bson"
	"github.com/ikmak/bsonstream/bson/extjson"
	"github.com/ikmak/bsonstream/bson/internal/llbson"
)

func TestUnmarshalScalars(t *testing.T) {
	doc, err := extjson.Unmarshal([]byte(`{"s":"text","t":true,"f":false,"n":null,"i":5,"big":9007199254740993,"d":2.5}`))
	require.NoError(t, err)

	require.Equal(t, "text", doc.Lookup("s").StringValue())
	require.True(t, doc.Lookup("t").Boolean())
	require.False(t, doc.Lookup("f").Boolean())
	require.Equal(t, bson.TypeNull, doc.Lookup("n").Type())
	require.Equal(t, int32(5), doc.Lookup("i").Int32())
	require.Equal(t, int64(9007199254740993), doc.Lookup("big").Int64())
	require.Equal(t, 2.5, doc.Lookup("d").Double())
}

func TestUnmarshalWrappers(t *testing.T) {
	in := `{
		"oid": {"$oid": "5a934e000102030405060708"},
		"sym": {"$symbol": "sym"},
		"i32": {"$numberInt": "-27"},
		"i64": {"$numberLong": "1152921504606846976"},
		"dbl": {"$numberDouble": "1.5"},
		"dec": {"$numberDecimal": "1.5E+3"},
		"bin": {"$binary": {"base64": "AQID", "subType": "80"}},
		"code": {"$code": "f()"},
		"cws": {"$code": "f()", "$scope": {"y": 2}},
		"ts": {"$timestamp": {"t": 4294967295, "i": 1}},
		"re": {"$regularExpression": {"pattern": "^a", "options": "im"}},
		"dbp": {"$dbPointer": {"$ref": "db.coll", "$id": {"$oid": "5a934e000102030405060708"}}},
		"dateStr": {"$date": "2023-01-01T00:00:00.123Z"},
		"dateNum": {"$date": {"$numberLong": "-62135596800000"}},
		"min": {"$minKey": 1},
		"max": {"$maxKey": 1},
		"undef": {"$undefined": true}
	}`
	doc, err := extjson.Unmarshal([]byte(in))
	require.NoError(t, err)

	require.Equal(t, testOID, doc.Lookup("oid").ObjectID())
	require.Equal(t, bson.Symbol("sym"), doc.Lookup("sym").Symbol())
	require.Equal(t, int32(-27), doc.Lookup("i32").Int32())
	require.Equal(t, int64(1)<<60, doc.Lookup("i64").Int64())
	require.Equal(t, 1.5, doc.Lookup("dbl").Double())
	require.Equal(t, "1.5E+3", doc.Lookup("dec").Decimal128().String())
	require.Equal(t, bson.Binary{Subtype: 0x80, Data: []byte{1, 2, 3}}, doc.Lookup("bin").Binary())
	require.Equal(t, bson.JavaScriptCode("f()"), doc.Lookup("code").JavaScript())

	cws := doc.Lookup("cws").CodeWithScope()
	require.Equal(t, "f()", cws.Code)
	require.Equal(t, int32(2), cws.Scope.Lookup("y").Int32())

	require.Equal(t, bson.Timestamp{T: 4294967295, I: 1}, doc.Lookup("ts").Timestamp())
	require.Equal(t, bson.Regex{Pattern: "^a", Options: "im"}, doc.Lookup("re").Regex())

	dbp := doc.Lookup("dbp").DBPointer()
	require.Equal(t, "db.coll", dbp.DB)
	require.Equal(t, testOID, dbp.Pointer)

	require.Equal(t, int64(1672531200123), doc.Lookup("dateStr").DateTime())
	require.Equal(t, int64(-62135596800000), doc.Lookup("dateNum").DateTime())
	require.Equal(t, bson.TypeMinKey, doc.Lookup("min").Type())
	require.Equal(t, bson.TypeMaxKey, doc.Lookup("max").Type())
	require.Equal(t, bson.TypeUndefined, doc.Lookup("undef").Type())
}

func TestUnmarshalNonFiniteDoubles(t *testing.T) {
	doc, err := extjson.Unmarshal([]byte(
		`{"nan":{"$numberDouble":"NaN"},"inf":{"$numberDouble":"Infinity"},"ninf":{"$numberDouble":"-Infinity"}}`))
	require.NoError(t, err)
	require.True(t, math.IsNaN(doc.Lookup("nan").Double()))
	require.True(t, math.IsInf(doc.Lookup("inf").Double(), 1))
	require.True(t, math.IsInf(doc.Lookup("ninf").Double(), -1))
}

func TestUnmarshalDBRef(t *testing.T) {
	t.Run("nested", func(t *testing.T) {
		doc, err := extjson.Unmarshal([]byte(
			`{"link":{"$ref":"things","$id":{"$oid":"5a934e000102030405060708"},"$db":"prod","weight":7}}`))
		require.NoError(t, err)
		ref, ok := doc.Lookup("link").DBRefOK()
		require.True(t, ok)
		require.Equal(t, "things", ref.Collection)
		require.Equal(t, "prod", ref.Database)
		require.Equal(t, testOID, ref.ID.ObjectID())
		require.Equal(t, int32(7), ref.Extra.Lookup("weight").Int32())
	})
	t.Run("extra dollar key disqualifies", func(t *testing.T) {
		doc, err := extjson.Unmarshal([]byte(
			`{"link":{"$ref":"things","$id":1,"$extra":2}}`))
		require.NoError(t, err)
		_, ok := doc.Lookup("link").DBRefOK()
		require.False(t, ok)
	})
	t.Run("root object stays a document", func(t *testing.T) {
		doc, err := extjson.Unmarshal([]byte(`{"$ref":"things","$id":1}`))
		require.NoError(t, err)
		require.Equal(t, "things", doc.Lookup("$ref").StringValue())
	})
	t.Run("root value is recognized", func(t *testing.T) {
		v, err := extjson.UnmarshalValue([]byte(`{"$ref":"things","$id":1}`))
		require.NoError(t, err)
		ref, ok := v.DBRefOK()
		require.True(t, ok)
		require.Equal(t, "things", ref.Collection)
	})
}

func TestUnmarshalMalformedWrappers(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"oid not a string", `{"v":{"$oid":5}}`},
		{"oid bad hex", `{"v":{"$oid":"zz"}}`},
		{"numberInt overflow", `{"v":{"$numberInt":"3000000000"}}`},
		{"numberInt not a string", `{"v":{"$numberInt":42}}`},
		{"binary missing subType", `{"v":{"$binary":{"base64":"AQID"}}}`},
		{"binary stray key", `{"v":{"$binary":{"base64":"AQID","subType":"00","extra":1}}}`},
		{"timestamp missing i", `{"v":{"$timestamp":{"t":1}}}`},
		{"timestamp negative", `{"v":{"$timestamp":{"t":-1,"i":1}}}`},
		{"timestamp stray key", `{"v":{"$timestamp":{"t":1,"i":1,"x":1}}}`},
		{"regex missing options", `{"v":{"$regularExpression":{"pattern":"^a"}}}`},
		{"minKey wrong value", `{"v":{"$minKey":2}}`},
		{"undefined false", `{"v":{"$undefined":false}}`},
		{"date bad string", `{"v":{"$date":"not-a-date"}}`},
		{"date stray key", `{"v":{"$date":{"$numberLong":"1","x":2}}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := extjson.Unmarshal([]byte(tc.in))
			require.Error(t, err)
		})
	}
}

func TestUnmarshalArrays(t *testing.T) {
	doc, err := extjson.Unmarshal([]byte(`{"a":[1,"two",{"$numberLong":"3"},[4]]}`))
	require.NoError(t, err)
	arr := doc.Lookup("a").Array()
	require.Equal(t, 4, arr.Len())
	require.Equal(t, int32(1), arr.Index(0).Int32())
	require.Equal(t, "two", arr.Index(1).StringValue())
	require.Equal(t, int64(3), arr.Index(2).Int64())
	inner := arr.Index(3).Array()
	require.Equal(t, int32(4), inner.Index(0).Int32())
}

func TestUnmarshalTopLevelMustBeObject(t *testing.T) {
	_, err := extjson.Unmarshal([]byte(`[1,2,3]`))
	require.Error(t, err)
	_, err = extjson.Unmarshal([]byte(`42`))
	require.Error(t, err)
}

func TestWireToTextRoundTrip(t *testing.T) {
	scope := llbson.BuildDocument(llbson.AppendInt32Element(nil, "y", 2))
	wire := llbson.BuildDocument(
		llbson.AppendStringElement(nil, "s", "hello"),
		llbson.AppendInt32Element(nil, "i", -5),
		llbson.AppendInt64Element(nil, "l", 1<<60),
		llbson.AppendDoubleElement(nil, "d", 2.5),
		llbson.AppendObjectIDElement(nil, "oid", testOID),
		llbson.AppendBooleanElement(nil, "b", false),
		llbson.AppendDateTimeElement(nil, "when", 1234567890123),
		llbson.AppendTimestampElement(nil, "ts", 42, 7),
		llbson.AppendBinaryElement(nil, "bin", 0x00, []byte{1, 2}),
		llbson.AppendRegexElement(nil, "re", "^a", "i"),
		llbson.AppendNullElement(nil, "n"),
		llbson.AppendDocumentElement(nil, "sub", scope),
		llbson.AppendArrayElement(nil, "arr", llbson.BuildDocument(
			llbson.AppendInt32Element(nil, "0", 1),
			llbson.AppendStringElement(nil, "1", "two"),
		)),
	)

	opts := bson.NewDecodeOptions()
	opts.BSONRegExp = true
	doc, err := bson.ReadDocumentWithOptions(wire, opts)
	require.NoError(t, err)

	text, err := extjson.MarshalDocument(doc, &extjson.EncodeOptions{Canonical: true})
	require.NoError(t, err)

	reparsed, err := extjson.Unmarshal([]byte(text))
	require.NoError(t, err)

	if !doc.Equal(reparsed) {
		t.Fatalf("wire-to-text round trip changed the document:\ndecoded: %sreparsed: %s",
			spew.Sdump(doc), spew.Sdump(reparsed))
	}
}

func TestCanonicalRoundTrip(t *testing.T) {
	doc := deepTestDocument()
	// the compiled-regex and promoted forms do not survive a textual round
	// trip, so this tree holds wrapper forms only
	out, err := extjson.MarshalDocument(doc, &extjson.EncodeOptions{Canonical: true})
	require.NoError(t, err)

	decoded, err := extjson.Unmarshal([]byte(out))
	require.NoError(t, err)

	if !doc.Equal(decoded) {
		t.Fatalf("canonical round trip changed the document:\noriginal: %sdecoded: %s",
			spew.Sdump(doc), spew.Sdump(decoded))
	}
}
