// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import "github.com/google/uuid"

// UUID is the BSON UUID type. It is the promoted form of a binary value with
// subtype 0x04.
type UUID [16]byte

// NilUUID is the zero value for UUID.
var NilUUID UUID

// NewUUID returns a Version 4 UUID or panics.
func NewUUID() UUID {
	return UUID(uuid.New())
}

// ParseUUID decodes s into a UUID or returns an error. The standard form
// xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx is accepted as well as the raw hex
// encoding.
func ParseUUID(s string) (UUID, error) {
	u, err := uuid.Parse(s)
	return UUID(u), err
}

// String returns the string form of the UUID,
// xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx.
func (id UUID) String() string {
	return uuid.UUID(id).String()
}

// IsZero returns true if id is the empty UUID.
func (id UUID) IsZero() bool {
	return id == NilUUID
}
