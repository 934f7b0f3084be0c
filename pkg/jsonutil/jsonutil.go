// Package jsonutil wraps github.com/go-json-experiment/json for the
// scanner's JSON surfaces: the scan API, the CLI's JSON output and the
// response inspection done by checks.
//
// Usage:
//
//	err := jsonutil.Decode(r.Body, &req)
//	keys, err := jsonutil.ObjectKeys(body, 40)
package jsonutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// ErrNotObject is returned by ObjectKeys for JSON that is not an object.
var ErrNotObject = errors.New("jsonutil: value is not an object")

// Unmarshal parses the JSON-encoded data and stores the result in v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Marshal returns the JSON encoding of v.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// MarshalIndent returns the indented JSON encoding of v.
func MarshalIndent(v any, indent string) ([]byte, error) {
	return json.Marshal(v, jsontext.WithIndent(indent))
}

// Decode reads one JSON value from r into v. Object members that v has no
// field for are rejected.
func Decode(r io.Reader, v any) error {
	return json.UnmarshalRead(r, v, json.RejectUnknownMembers(true))
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return jsontext.Value(data).IsValid()
}

// ObjectKeys returns up to limit member names of the top-level object in
// data, in document order. Nested values are skipped without decoding.
// A limit <= 0 returns every name.
func ObjectKeys(data []byte, limit int) ([]string, error) {
	dec := jsontext.NewDecoder(bytes.NewReader(data))
	tok, err := dec.ReadToken()
	if err != nil {
		return nil, err
	}
	if tok.Kind() != '{' {
		return nil, fmt.Errorf("%w: starts with %v", ErrNotObject, tok.Kind())
	}

	var keys []string
	for dec.PeekKind() != '}' {
		name, err := dec.ReadToken()
		if err != nil {
			return keys, err
		}
		if limit <= 0 || len(keys) < limit {
			keys = append(keys, name.String())
		}
		if err := dec.SkipValue(); err != nil {
			return keys, err
		}
	}
	return keys, nil
}

// Encoder writes newline-terminated JSON values to a stream.
type Encoder struct {
	w      io.Writer
	indent string
}

// NewStreamEncoder creates an encoder that writes to w.
func NewStreamEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes the JSON encoding of v followed by a newline.
func (e *Encoder) Encode(v any) error {
	var err error
	if e.indent != "" {
		err = json.MarshalWrite(e.w, v, jsontext.WithIndent(e.indent))
	} else {
		err = json.MarshalWrite(e.w, v)
	}
	if err != nil {
		return err
	}
	_, err = e.w.Write([]byte{'\n'})
	return err
}

// SetIndent formats each subsequent value with indent.
func (e *Encoder) SetIndent(indent string) {
	e.indent = indent
}
