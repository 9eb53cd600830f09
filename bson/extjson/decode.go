// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package extjson

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"

	"github.com/ikmak/bsonstream/bson"
	"github.com/ikmak/bsonstream/bson/decimal"
	"github.com/ikmak/bsonstream/bson/objectid"
)

// Unmarshal parses Extended JSON (canonical or relaxed) into a Document. The
// top level of the input must be a JSON object; it is returned as a plain
// document even when it matches the DBRef shape. Use UnmarshalValue to
// recognize a root-level DBRef.
func Unmarshal(data []byte) (*bson.Document, error) {
	return parseDocument(data)
}

// UnmarshalValue parses Extended JSON into a Value. The top level of the
// input must be a JSON object.
func UnmarshalValue(data []byte) (bson.Value, error) {
	entries, err := objectEntries(data)
	if err != nil {
		return bson.Value{}, err
	}
	return parseObject(entries)
}

type jsonEntry struct {
	key   string
	value []byte
	vt    jsonparser.ValueType
}

func objectEntries(data []byte) ([]jsonEntry, error) {
	var entries []jsonEntry
	err := jsonparser.ObjectEach(data, func(key []byte, value []byte, vt jsonparser.ValueType, _ int) error {
		entries = append(entries, jsonEntry{key: string(key), value: value, vt: vt})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// parseDocument builds a plain document from the entries of a JSON object,
// without wrapper recognition at the top level.
func parseDocument(data []byte) (*bson.Document, error) {
	entries, err := objectEntries(data)
	if err != nil {
		return nil, err
	}
	doc := bson.NewDocument()
	for _, e := range entries {
		v, err := parseValue(e.value, e.vt)
		if err != nil {
			return nil, err
		}
		doc.Set(bson.Element{Key: e.key, Value: v})
	}
	return doc, nil
}

// parseObject interprets a JSON object as either a typed wrapper or a plain
// document.
func parseObject(entries []jsonEntry) (bson.Value, error) {
	if v, ok, err := parseWrapper(entries); ok || err != nil {
		return v, err
	}

	doc := bson.NewDocument()
	dbrefPossible := true
	for _, e := range entries {
		v, err := parseValue(e.value, e.vt)
		if err != nil {
			return bson.Value{}, err
		}
		if dbrefPossible && strings.HasPrefix(e.key, "$") &&
			e.key != "$ref" && e.key != "$id" && e.key != "$db" {
			dbrefPossible = false
		}
		doc.Set(bson.Element{Key: e.key, Value: v})
	}

	if dbrefPossible {
		if ref, ok := dbrefFromDocument(doc); ok {
			return bson.VC.DBRef(ref), nil
		}
	}
	return bson.VC.Document(doc), nil
}

func dbrefFromDocument(doc *bson.Document) (bson.DBRef, bool) {
	refVal, err := doc.LookupErr("$ref")
	if err != nil {
		return bson.DBRef{}, false
	}
	collection, ok := refVal.StringValueOK()
	if !ok {
		return bson.DBRef{}, false
	}
	idVal, err := doc.LookupErr("$id")
	if err != nil {
		return bson.DBRef{}, false
	}

	var db string
	if dbVal, err := doc.LookupErr("$db"); err == nil {
		if db, ok = dbVal.StringValueOK(); !ok {
			return bson.DBRef{}, false
		}
	}

	extra := bson.NewDocument()
	for i := 0; i < doc.Len(); i++ {
		elem, _ := doc.ElementAt(uint(i))
		switch elem.Key {
		case "$ref", "$id", "$db":
		default:
			extra.AppendElements(elem)
		}
	}
	return bson.DBRef{Collection: collection, ID: idVal, Database: db, Extra: extra}, true
}

// parseWrapper recognizes the $-keyed wrapper objects. It reports ok=false
// when the entries describe a plain document instead.
func parseWrapper(entries []jsonEntry) (bson.Value, bool, error) {
	if len(entries) == 0 || !strings.HasPrefix(entries[0].key, "$") {
		return bson.Value{}, false, nil
	}

	first := entries[0]
	if len(entries) == 1 {
		switch first.key {
		case "$oid":
			oid, err := parseObjectID(first.value, first.vt)
			return bson.VC.ObjectID(oid), true, err
		case "$symbol":
			s, err := parseWrappedString("$symbol", first.value, first.vt)
			return bson.VC.Symbol(s), true, err
		case "$numberInt":
			i, err := parseInt32(first.value, first.vt)
			return bson.VC.Int32(i), true, err
		case "$numberLong":
			i, err := parseInt64(first.value, first.vt)
			return bson.VC.Int64(i), true, err
		case "$numberDouble":
			f, err := parseDouble(first.value, first.vt)
			return bson.VC.Double(f), true, err
		case "$numberDecimal":
			d, err := parseDecimal(first.value, first.vt)
			return bson.VC.Decimal128(d), true, err
		case "$binary":
			b, subtype, err := parseBinary(first.value, first.vt)
			return bson.VC.BinaryWithSubtype(b, subtype), true, err
		case "$code":
			code, err := parseWrappedString("$code", first.value, first.vt)
			return bson.VC.JavaScript(code), true, err
		case "$timestamp":
			t, i, err := parseTimestamp(first.value, first.vt)
			return bson.VC.Timestamp(t, i), true, err
		case "$regularExpression":
			pattern, options, err := parseRegex(first.value, first.vt)
			return bson.VC.Regex(pattern, options), true, err
		case "$dbPointer":
			ns, oid, err := parseDBPointer(first.value, first.vt)
			return bson.VC.DBPointer(ns, oid), true, err
		case "$date":
			ms, err := parseDatetime(first.value, first.vt)
			return bson.VC.DateTime(ms), true, err
		case "$minKey":
			err := parseKeyMarker("$minKey", first.value, first.vt)
			return bson.VC.MinKey(), true, err
		case "$maxKey":
			err := parseKeyMarker("$maxKey", first.value, first.vt)
			return bson.VC.MaxKey(), true, err
		case "$undefined":
			err := parseUndefined(first.value, first.vt)
			return bson.VC.Undefined(), true, err
		}
		return bson.Value{}, false, nil
	}

	// $code with $scope is the only wrapper spanning two keys; DBRef shapes
	// are handled by the document path.
	if len(entries) == 2 {
		var code, scope *jsonEntry
		for i := range entries {
			switch entries[i].key {
			case "$code":
				code = &entries[i]
			case "$scope":
				scope = &entries[i]
			}
		}
		if code != nil && scope != nil {
			codeStr, err := parseWrappedString("$code", code.value, code.vt)
			if err != nil {
				return bson.Value{}, true, err
			}
			if scope.vt != jsonparser.Object {
				return bson.Value{}, true, fmt.Errorf("$scope value should be object, but instead is %s", scope.vt)
			}
			scopeDoc, err := parseDocument(scope.value)
			if err != nil {
				return bson.Value{}, true, err
			}
			return bson.VC.CodeWithScope(codeStr, scopeDoc), true, nil
		}
	}

	return bson.Value{}, false, nil
}

func parseValue(value []byte, vt jsonparser.ValueType) (bson.Value, error) {
	switch vt {
	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return bson.Value{}, fmt.Errorf("invalid escaping in string: %s", string(value))
		}
		return bson.VC.String(s), nil

	case jsonparser.Number:
		if i, err := jsonparser.ParseInt(value); err == nil {
			if i >= math.MinInt32 && i <= math.MaxInt32 {
				return bson.VC.Int32(int32(i)), nil
			}
			return bson.VC.Int64(i), nil
		}
		f, err := jsonparser.ParseFloat(value)
		if err != nil {
			return bson.Value{}, fmt.Errorf("invalid JSON number: %s", string(value))
		}
		return bson.VC.Double(f), nil

	case jsonparser.Object:
		entries, err := objectEntries(value)
		if err != nil {
			return bson.Value{}, err
		}
		return parseObject(entries)

	case jsonparser.Array:
		arr := bson.NewArray()
		var innerErr error
		_, err := jsonparser.ArrayEach(value, func(item []byte, ivt jsonparser.ValueType, _ int, _ error) {
			if innerErr != nil {
				return
			}
			v, err := parseValue(item, ivt)
			if err != nil {
				innerErr = err
				return
			}
			arr.Append(v)
		})
		if err != nil {
			return bson.Value{}, err
		}
		if innerErr != nil {
			return bson.Value{}, innerErr
		}
		return bson.VC.Array(arr), nil

	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(value)
		if err != nil {
			return bson.Value{}, fmt.Errorf("invalid JSON boolean: %s", string(value))
		}
		return bson.VC.Boolean(b), nil

	case jsonparser.Null:
		return bson.VC.Null(), nil

	default:
		return bson.Value{}, fmt.Errorf("unsupported JSON value: %s", string(value))
	}
}

func parseObjectID(data []byte, vt jsonparser.ValueType) (objectid.ObjectID, error) {
	if vt != jsonparser.String {
		return objectid.ObjectID{}, fmt.Errorf("$oid value should be string, but instead is %s", vt)
	}
	oid, err := objectid.FromHex(string(data))
	if err != nil {
		return objectid.ObjectID{}, fmt.Errorf("invalid $oid value string: %s", string(data))
	}
	return oid, nil
}

func parseWrappedString(wrapper string, data []byte, vt jsonparser.ValueType) (string, error) {
	if vt != jsonparser.String {
		return "", fmt.Errorf("%s value should be string, but instead is %s", wrapper, vt)
	}
	str, err := jsonparser.ParseString(data)
	if err != nil {
		return "", fmt.Errorf("invalid escaping in %s string: %s", wrapper, string(data))
	}
	return str, nil
}

func parseInt32(data []byte, vt jsonparser.ValueType) (int32, error) {
	if vt != jsonparser.String {
		return 0, fmt.Errorf("$numberInt value should be string, but instead is %s", vt)
	}
	i, err := jsonparser.ParseInt(data)
	if err != nil {
		return 0, fmt.Errorf("invalid $numberInt number value: %s", string(data))
	}
	if i < math.MinInt32 || i > math.MaxInt32 {
		return 0, fmt.Errorf("$numberInt value should be int32 but instead is int64: %d", i)
	}
	return int32(i), nil
}

func parseInt64(data []byte, vt jsonparser.ValueType) (int64, error) {
	if vt != jsonparser.String {
		return 0, fmt.Errorf("$numberLong value should be string, but instead is %s", vt)
	}
	i, err := jsonparser.ParseInt(data)
	if err != nil {
		return 0, fmt.Errorf("invalid $numberLong number value: %s", string(data))
	}
	return i, nil
}

func parseDouble(data []byte, vt jsonparser.ValueType) (float64, error) {
	if vt != jsonparser.String {
		return 0, fmt.Errorf("$numberDouble value should be string, but instead is %s", vt)
	}
	switch string(data) {
	case "Infinity":
		return math.Inf(1), nil
	case "-Infinity":
		return math.Inf(-1), nil
	case "NaN":
		return math.NaN(), nil
	}
	f, err := jsonparser.ParseFloat(data)
	if err != nil {
		return 0, fmt.Errorf("invalid $numberDouble number value: %s", string(data))
	}
	return f, nil
}

func parseDecimal(data []byte, vt jsonparser.ValueType) (decimal.Decimal128, error) {
	if vt != jsonparser.String {
		return decimal.Decimal128{}, fmt.Errorf("$numberDecimal value should be string, but instead is %s", vt)
	}
	d, err := decimal.ParseDecimal128(string(data))
	if err != nil {
		return decimal.Decimal128{}, fmt.Errorf("invalid $numberDecimal string: %s", string(data))
	}
	return d, nil
}

func parseBinary(data []byte, vt jsonparser.ValueType) ([]byte, byte, error) {
	if vt != jsonparser.Object {
		return nil, 0, fmt.Errorf("$binary value should be object, but instead is %s", vt)
	}

	var b []byte
	var subType *int64

	err := jsonparser.ObjectEach(data, func(key []byte, value []byte, vvt jsonparser.ValueType, _ int) error {
		switch string(key) {
		case "base64":
			if b != nil {
				return fmt.Errorf("duplicate base64 key in $binary: %s", string(data))
			}
			if vvt != jsonparser.String {
				return fmt.Errorf("$binary base64 value should be string, but instead is %s", vvt)
			}
			base64Bytes, err := base64.StdEncoding.DecodeString(string(value))
			if err != nil {
				return fmt.Errorf("invalid $binary base64 string: %s", string(value))
			}
			b = base64Bytes
		case "subType":
			if subType != nil {
				return fmt.Errorf("duplicate subType key in $binary: %s", string(data))
			}
			if vvt != jsonparser.String {
				return fmt.Errorf("$binary subType value should be string, but instead is %s", vvt)
			}
			i, err := strconv.ParseInt(string(value), 16, 64)
			if err != nil {
				return fmt.Errorf("invalid $binary subtype string: %s", string(value))
			}
			subType = &i
		default:
			return fmt.Errorf("invalid key in $binary object: %s", string(key))
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	if b == nil {
		return nil, 0, fmt.Errorf("missing base64 field in $binary object: %s", string(data))
	}
	if subType == nil {
		return nil, 0, fmt.Errorf("missing subType field in $binary object: %s", string(data))
	}

	return b, byte(*subType), nil
}

func parseTimestamp(data []byte, vt jsonparser.ValueType) (uint32, uint32, error) {
	if vt != jsonparser.Object {
		return 0, 0, fmt.Errorf("$timestamp value should be object, but instead is %s", vt)
	}

	var t *uint32
	var inc *uint32

	parseField := func(name string, value []byte, vvt jsonparser.ValueType) (uint32, error) {
		if vvt != jsonparser.Number {
			return 0, fmt.Errorf("$timestamp %s value should be number, but instead is %s", name, vvt)
		}
		i, err := jsonparser.ParseInt(value)
		if err != nil {
			return 0, fmt.Errorf("invalid $timestamp %s number: %s", name, string(value))
		}
		if i < 0 || i > math.MaxUint32 {
			return 0, fmt.Errorf("$timestamp %s number should be uint32: %s", name, string(value))
		}
		return uint32(i), nil
	}

	err := jsonparser.ObjectEach(data, func(key []byte, value []byte, vvt jsonparser.ValueType, _ int) error {
		switch string(key) {
		case "t":
			if t != nil {
				return fmt.Errorf("duplicate t key in $timestamp: %s", string(data))
			}
			u, err := parseField("t", value, vvt)
			if err != nil {
				return err
			}
			t = &u
		case "i":
			if inc != nil {
				return fmt.Errorf("duplicate i key in $timestamp: %s", string(data))
			}
			u, err := parseField("i", value, vvt)
			if err != nil {
				return err
			}
			inc = &u
		default:
			return fmt.Errorf("invalid key in $timestamp object: %s", string(key))
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	if t == nil {
		return 0, 0, fmt.Errorf("missing t field in $timestamp object: %s", string(data))
	}
	if inc == nil {
		return 0, 0, fmt.Errorf("missing i field in $timestamp object: %s", string(data))
	}

	return *t, *inc, nil
}

func parseRegex(data []byte, vt jsonparser.ValueType) (string, string, error) {
	if vt != jsonparser.Object {
		return "", "", fmt.Errorf("$regularExpression value should be object, but instead is %s", vt)
	}

	var pattern *string
	var options *string

	err := jsonparser.ObjectEach(data, func(key []byte, value []byte, vvt jsonparser.ValueType, _ int) error {
		switch string(key) {
		case "pattern":
			if pattern != nil {
				return fmt.Errorf("duplicate pattern key in $regularExpression: %s", string(data))
			}
			if vvt != jsonparser.String {
				return fmt.Errorf("$regularExpression pattern value should be string, but instead is %s", vvt)
			}
			str, err := jsonparser.ParseString(value)
			if err != nil {
				return fmt.Errorf("invalid escaped $regularExpression pattern: %s", string(value))
			}
			pattern = &str
		case "options":
			if options != nil {
				return fmt.Errorf("duplicate options key in $regularExpression: %s", string(data))
			}
			if vvt != jsonparser.String {
				return fmt.Errorf("$regularExpression options value should be string, but instead is %s", vvt)
			}
			str, err := jsonparser.ParseString(value)
			if err != nil {
				return fmt.Errorf("invalid escaped $regularExpression options: %s", string(value))
			}
			options = &str
		default:
			return fmt.Errorf("invalid key in $regularExpression object: %s", string(key))
		}
		return nil
	})
	if err != nil {
		return "", "", err
	}

	if pattern == nil {
		return "", "", fmt.Errorf("missing pattern field in $regularExpression object: %s", string(data))
	}
	if options == nil {
		return "", "", fmt.Errorf("missing options field in $regularExpression object: %s", string(data))
	}

	return *pattern, *options, nil
}

func parseDBPointer(data []byte, vt jsonparser.ValueType) (string, objectid.ObjectID, error) {
	var oid objectid.ObjectID
	var ns *string
	oidFound := false

	if vt != jsonparser.Object {
		return "", oid, fmt.Errorf("$dbPointer value should be object, but instead is %s", vt)
	}

	err := jsonparser.ObjectEach(data, func(key []byte, value []byte, vvt jsonparser.ValueType, _ int) error {
		switch string(key) {
		case "$ref":
			if ns != nil {
				return fmt.Errorf("duplicate $ref key in $dbPointer: %s", string(data))
			}
			if vvt != jsonparser.String {
				return fmt.Errorf("$dbPointer $ref value should be string, but instead is %s", vvt)
			}
			str, err := jsonparser.ParseString(value)
			if err != nil {
				return fmt.Errorf("invalid escaping in $dbPointer $ref string: %s", string(value))
			}
			ns = &str
		case "$id":
			if oidFound {
				return fmt.Errorf("duplicate $id key in $dbPointer: %s", string(data))
			}
			if vvt != jsonparser.Object {
				return fmt.Errorf("$dbPointer $id value should be object, but instead is %s", vvt)
			}
			idValue, idType, _, err := jsonparser.Get(value, "$oid")
			if err != nil {
				return fmt.Errorf("missing $oid field in $dbPointer $id object: %s", string(value))
			}
			oid, err = parseObjectID(idValue, idType)
			if err != nil {
				return fmt.Errorf("invalid $dbPointer $id $oid value: %s", err)
			}
			oidFound = true
		default:
			return fmt.Errorf("invalid key in $dbPointer object: %s", string(key))
		}
		return nil
	})
	if err != nil {
		return "", oid, err
	}

	if ns == nil {
		return "", oid, fmt.Errorf("missing $ref field in $dbPointer object: %s", string(data))
	}
	if !oidFound {
		return "", oid, fmt.Errorf("missing $id field in $dbPointer object: %s", string(data))
	}

	return *ns, oid, nil
}

func parseDatetime(data []byte, vt jsonparser.ValueType) (int64, error) {
	switch vt {
	case jsonparser.String:
		t, err := time.Parse(rfc3339Milli, string(data))
		if err != nil {
			return 0, fmt.Errorf("invalid $date value string: %s", string(data))
		}
		return t.Unix()*1000 + int64(t.Nanosecond()/1000000), nil
	case jsonparser.Object:
		var ms *int64
		err := jsonparser.ObjectEach(data, func(key []byte, value []byte, vvt jsonparser.ValueType, _ int) error {
			switch string(key) {
			case "$numberLong":
				if ms != nil {
					return fmt.Errorf("duplicate $numberLong key in $date: %s", string(data))
				}
				i, err := parseInt64(value, vvt)
				if err != nil {
					return err
				}
				ms = &i
			default:
				return fmt.Errorf("invalid key in $date object: %s", string(key))
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
		if ms == nil {
			return 0, fmt.Errorf("missing $numberLong field in $date object: %s", string(data))
		}
		return *ms, nil
	}
	return 0, fmt.Errorf("$date value should be string or object, but instead is %s", vt)
}

func parseKeyMarker(wrapper string, data []byte, vt jsonparser.ValueType) error {
	if vt != jsonparser.Number {
		return fmt.Errorf("%s value should be number, but instead is %s", wrapper, vt)
	}
	i, err := jsonparser.ParseInt(data)
	if err != nil {
		return fmt.Errorf("%s value number is invalid integer: %s", wrapper, string(data))
	}
	if i != 1 {
		return fmt.Errorf("%s value must be 1, but instead is %d", wrapper, i)
	}
	return nil
}

func parseUndefined(data []byte, vt jsonparser.ValueType) error {
	if vt != jsonparser.Boolean {
		return fmt.Errorf("$undefined value should be boolean, but instead is %s", vt)
	}
	b, err := jsonparser.ParseBoolean(data)
	if err != nil {
		return fmt.Errorf("$undefined value boolean is invalid: %s", string(data))
	}
	if !b {
		return fmt.Errorf("$undefined value boolean should be true, but instead is %v", b)
	}
	return nil
}
