// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package decimal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAndString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"12345", "12345"},
		{"-12345", "-12345"},
		{"0", "0"},
		{"-0", "0"}, // the textual sign is lost during significand parsing
		{"1.5", "1.5"},
		{"-1.5", "-1.5"},
		{"0.001", "0.001"},
		{"1.5E+3", "1.5E+3"},
		{"1.5E3", "1.5E+3"},
		{"15E2", "1.5E+3"},
		{"1E-6", "0.000001"},
		{"1E-7", "1E-7"},
		{"9999999999999999999999999999999999", "9999999999999999999999999999999999"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			d, err := ParseDecimal128(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, d.String())
		})
	}
}

func TestParseSpecialValues(t *testing.T) {
	d, err := ParseDecimal128("NaN")
	require.NoError(t, err)
	require.True(t, d.IsNaN())
	require.Equal(t, "NaN", d.String())

	d, err = ParseDecimal128("Infinity")
	require.NoError(t, err)
	require.Equal(t, 1, d.IsInf())
	require.Equal(t, "Infinity", d.String())

	d, err = ParseDecimal128("-Inf")
	require.NoError(t, err)
	require.Equal(t, -1, d.IsInf())
	require.Equal(t, "-Infinity", d.String())
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "abc", "1.2.3", "1e", "--1"} {
		_, err := ParseDecimal128(in)
		require.Error(t, err, "input %q", in)
	}
}

func TestGetBytesRoundTrip(t *testing.T) {
	d, err := ParseDecimal128("1.5E+3")
	require.NoError(t, err)
	h, l := d.GetBytes()
	require.Equal(t, d, NewDecimal128(h, l))
}

func TestKnownBitPatterns(t *testing.T) {
	// 12345 = significand 12345, exponent 0
	d, err := ParseDecimal128("12345")
	require.NoError(t, err)
	h, l := d.GetBytes()
	require.Equal(t, uint64(0x3040000000000000), h)
	require.Equal(t, uint64(12345), l)
}
