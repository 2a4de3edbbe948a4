package caaml

import (
	"errors"
	"fmt"
)

// ErrMissingLocRef marks a document without a usable locRef anchor (the
// element plus its gml:id). Every SnowPilot export carries one; a document
// without it has no pit identity and cannot be ingested.
var ErrMissingLocRef = errors.New("no usable locRef anchor")

// MalformedDocumentError reports a document the decoder could not read at
// all, or one missing the locRef anchor. File is empty when the document
// came from a bare reader.
type MalformedDocumentError struct {
	File string
	Err  error
}

func (e *MalformedDocumentError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("malformed caaml document: %v", e.Err)
	}
	return fmt.Sprintf("malformed caaml document %s: %v", e.File, e.Err)
}

func (e *MalformedDocumentError) Unwrap() error { return e.Err }

// FieldCoercionError reports a measured element whose text would not parse
// as a number. Element names the offending element so the document region
// is identifiable without re-reading the file.
type FieldCoercionError struct {
	File    string
	Element string
	Text    string
	Err     error
}

func (e *FieldCoercionError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("coerce %s value %q: %v", e.Element, e.Text, e.Err)
	}
	return fmt.Sprintf("%s: coerce %s value %q: %v", e.File, e.Element, e.Text, e.Err)
}

func (e *FieldCoercionError) Unwrap() error { return e.Err }
