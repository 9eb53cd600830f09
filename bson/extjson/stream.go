// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package extjson

import (
	"bytes"
	"io"
	"strconv"

	"github.com/ikmak/bsonstream/bson"
)

// chunkSize is the soft threshold at which Next yields the accumulated
// output. A chunk may run past the threshold by one value token; it is never
// cut inside one.
const chunkSize = 64 * 1024

type frameKind byte

const (
	frameDocument frameKind = iota
	frameArray
)

// frame is one level of the traversal stack: a cursor into a document's
// elements or an array's values, plus the bytes to emit once the container
// closes.
type frame struct {
	kind    frameKind
	doc     *bson.Document
	arr     *bson.Array
	idx     int
	emitted int
	trailer string
}

// Stream encodes a value tree as Extended JSON one chunk at a time. It is a
// finite, non-restartable sequence: each call to Next runs the traversal
// forward to the next chunk boundary and returns the text produced since the
// previous call. The concatenation of every chunk equals the non-streaming
// encoding of the same value with the same options.
//
// The stream holds read-only references into the value tree for its
// lifetime. Abandoning a partially consumed stream requires no cleanup.
type Stream struct {
	opts  EncodeOptions
	buf   bytes.Buffer
	stack []frame
	seen  map[interface{}]bool
	err   error
	done  bool
}

// NewStream returns a Stream producing the Extended JSON encoding of v. A
// nil opts is equivalent to NewEncodeOptions().
func NewStream(v bson.Value, opts *EncodeOptions) *Stream {
	s := &Stream{seen: make(map[interface{}]bool)}
	if opts != nil {
		s.opts = *opts
	}
	if err := s.writeValue(v); err != nil {
		s.err = err
	}
	return s
}

// NewDocumentStream returns a Stream producing the Extended JSON encoding of
// doc.
func NewDocumentStream(doc *bson.Document, opts *EncodeOptions) *Stream {
	return NewStream(bson.VC.Document(doc), opts)
}

// Next returns the next chunk of output. It returns io.EOF once the sequence
// is exhausted. After a non-EOF error the sequence is terminated; chunks
// already returned remain valid but the overall output is incomplete.
func (s *Stream) Next() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.done && s.buf.Len() == 0 {
		return "", io.EOF
	}

	for len(s.stack) > 0 && s.buf.Len() < chunkSize {
		if err := s.advance(); err != nil {
			s.err = err
			return "", err
		}
	}
	if len(s.stack) == 0 {
		s.done = true
	}

	chunk := s.buf.String()
	s.buf.Reset()
	return chunk, nil
}

// advance processes a single entry of the topmost frame, or closes the frame
// when its entries are exhausted.
func (s *Stream) advance() error {
	f := &s.stack[len(s.stack)-1]
	switch f.kind {
	case frameDocument:
		for f.idx < f.doc.Len() {
			elem, err := f.doc.ElementAt(uint(f.idx))
			if err != nil {
				return err
			}
			f.idx++
			if !s.keepKey(elem.Key) {
				continue
			}
			val := elem.Value
			if s.opts.Replacer != nil {
				replaced, ok := s.opts.Replacer(elem.Key, val)
				if !ok {
					continue
				}
				val = replaced
			}
			if f.emitted > 0 {
				s.buf.WriteByte(',')
			}
			f.emitted++
			s.writeEntryPrefix()
			writeEscapedString(&s.buf, elem.Key)
			s.writeColon()
			return s.writeValue(val)
		}
		return s.closeFrame()

	default: // frameArray
		if f.idx < f.arr.Len() {
			val := f.arr.Index(uint(f.idx))
			omitted := false
			if s.opts.Replacer != nil {
				replaced, ok := s.opts.Replacer(strconv.Itoa(f.idx), val)
				if ok {
					val = replaced
				} else {
					omitted = true
				}
			}
			f.idx++
			if f.emitted > 0 {
				s.buf.WriteByte(',')
			}
			f.emitted++
			s.writeEntryPrefix()
			if omitted {
				s.buf.WriteString("null")
				return nil
			}
			return s.writeValue(val)
		}
		return s.closeFrame()
	}
}

// writeValue routes a value either to the leaf projector or, for container
// shapes, onto the frame stack.
func (s *Stream) writeValue(v bson.Value) error {
	switch v.Type() {
	case bson.TypeEmbeddedDocument:
		if ref, ok := v.DBRefOK(); ok {
			return s.pushDocument(dbrefDocument(ref), "")
		}
		if raw, ok := v.RawOK(); ok {
			doc, err := raw.Document()
			if err != nil {
				return err
			}
			return s.pushDocument(doc, "")
		}
		return s.pushDocument(v.Document(), "")

	case bson.TypeArray:
		return s.pushArray(v.Array())

	case bson.TypeCodeWithScope:
		cws := v.CodeWithScope()
		if cws.Scope == nil {
			return appendValue(&s.buf, v, &s.opts)
		}
		s.buf.WriteString(`{"$code":`)
		writeEscapedString(&s.buf, cws.Code)
		s.buf.WriteString(`,"$scope":`)
		return s.pushDocument(cws.Scope, "}")

	default:
		return appendValue(&s.buf, v, &s.opts)
	}
}

func (s *Stream) pushDocument(doc *bson.Document, trailer string) error {
	if s.seen[doc] {
		return ErrCircularStructure
	}
	s.seen[doc] = true
	s.buf.WriteByte('{')
	s.stack = append(s.stack, frame{kind: frameDocument, doc: doc, trailer: trailer})
	return nil
}

func (s *Stream) pushArray(arr *bson.Array) error {
	if s.seen[arr] {
		return ErrCircularStructure
	}
	s.seen[arr] = true
	s.buf.WriteByte('[')
	s.stack = append(s.stack, frame{kind: frameArray, arr: arr})
	return nil
}

func (s *Stream) closeFrame() error {
	f := s.stack[len(s.stack)-1]
	if f.emitted > 0 && s.opts.Indent != "" {
		s.buf.WriteByte('\n')
		for i := 0; i < len(s.stack)-1; i++ {
			s.buf.WriteString(s.opts.Indent)
		}
	}
	if f.kind == frameDocument {
		s.buf.WriteByte('}')
		delete(s.seen, f.doc)
	} else {
		s.buf.WriteByte(']')
		delete(s.seen, f.arr)
	}
	if f.trailer != "" {
		s.buf.WriteString(f.trailer)
	}
	s.stack = s.stack[:len(s.stack)-1]
	return nil
}

// writeEntryPrefix writes the newline and per-depth indentation that precede
// an entry when indentation is enabled.
func (s *Stream) writeEntryPrefix() {
	if s.opts.Indent == "" {
		return
	}
	s.buf.WriteByte('\n')
	for i := 0; i < len(s.stack); i++ {
		s.buf.WriteString(s.opts.Indent)
	}
}

func (s *Stream) writeColon() {
	if s.opts.Indent == "" {
		s.buf.WriteByte(':')
		return
	}
	s.buf.WriteString(": ")
}

func (s *Stream) keepKey(key string) bool {
	if s.opts.KeepKeys == nil {
		return true
	}
	for _, k := range s.opts.KeepKeys {
		if k == key {
			return true
		}
	}
	return false
}

// dbrefDocument renders a DBRef back into its document form for projection.
func dbrefDocument(ref bson.DBRef) *bson.Document {
	doc := bson.NewDocument(
		bson.EC.String("$ref", ref.Collection),
		bson.Element{Key: "$id", Value: ref.ID},
	)
	if ref.Database != "" {
		doc.Append("$db", bson.VC.String(ref.Database))
	}
	for i := 0; i < ref.Extra.Len(); i++ {
		elem, err := ref.Extra.ElementAt(uint(i))
		if err != nil {
			break
		}
		doc.AppendElements(elem)
	}
	return doc
}
