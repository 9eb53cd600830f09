// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package bson implements the BSON wire format: a single-pass deserializer
// that reconstructs a tree of typed values from a byte buffer, together with
// the ordered Document and Array types that make up that tree.
//
// ReadDocument and ReadDocumentWithOptions decode a buffer into a *Document.
// The DecodeOptions record controls numeric promotion, UTF-8 validation, raw
// passthrough of embedded documents, and recognition of native regular
// expressions. Values are accessed through the typed getters on Value or
// through Interface, which surfaces each value as the Go type the promotion
// options selected.
//
// Values and documents are constructed with the VC and EC namespaces:
//
//	doc := bson.NewDocument(
//		bson.EC.String("greeting", "hello"),
//		bson.EC.Int32("count", 42),
//	)
//
// The extjson subpackage projects value trees to and from MongoDB Extended
// JSON, including a streaming encoder that yields output in chunks.
package bson
