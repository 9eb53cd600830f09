// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package objectid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	a := New()
	b := New()
	require.False(t, a.IsZero())
	require.NotEqual(t, a, b)
}

func TestFromHex(t *testing.T) {
	oid := New()
	parsed, err := FromHex(oid.Hex())
	require.NoError(t, err)
	require.Equal(t, oid, parsed)

	_, err = FromHex("deadbeef")
	require.Equal(t, ErrInvalidHex, err)

	_, err = FromHex("zzzzzzzzzzzzzzzzzzzzzzzz")
	require.Error(t, err)
}

func TestTimestamp(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	oid := NewFromTimestamp(now)
	require.True(t, now.UTC().Equal(oid.Timestamp()))
}

func TestString(t *testing.T) {
	oid := ObjectID{0x5a, 0x93, 0x4e, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	require.Equal(t, "5a934e000102030405060708", oid.Hex())
	require.Equal(t, `ObjectID("5a934e000102030405060708")`, oid.String())
}

func TestCounterIncrements(t *testing.T) {
	ts := time.Unix(1500000000, 0)
	a := NewFromTimestamp(ts)
	b := NewFromTimestamp(ts)
	require.Equal(t, a[:9], b[:9])
	require.NotEqual(t, a[9:], b[9:])
}

func TestMarshalText(t *testing.T) {
	oid := ObjectID{0x5a, 0x93, 0x4e, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	text, err := oid.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "5a934e000102030405060708", string(text))

	var decoded ObjectID
	require.NoError(t, decoded.UnmarshalText(text))
	require.Equal(t, oid, decoded)
}
