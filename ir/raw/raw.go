package raw

import (
	"context"
	"fmt"
	"io"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
}

// DocumentMetadata mirrors the standard Info dictionary fields plus any
// custom entries the producer added.
type DocumentMetadata struct {
	Title        string
	Author       string
	Subject      string
	Keywords     string
	Creator      string
	Producer     string
	CreationDate string
	ModDate      string
	Custom       map[string]string
}

// Document is the root container for raw PDF objects.
type Document struct {
	Objects  map[ObjectRef]Object
	Trailer  *DictObj
	Version  string // header version marker, e.g. "1.7"
	Info     *DictObj
	InfoRef  ObjectRef
	Metadata DocumentMetadata
}

// Root returns the catalog reference from the trailer.
func (d *Document) Root() (ObjectRef, bool) {
	if d.Trailer == nil {
		return ObjectRef{}, false
	}
	obj, ok := d.Trailer.Get("Root")
	if !ok {
		return ObjectRef{}, false
	}
	ref, ok := obj.(RefObj)
	if !ok {
		return ObjectRef{}, false
	}
	return ref.R, true
}

// Resolve follows an indirect reference; non-references pass through.
func (d *Document) Resolve(obj Object) Object {
	for i := 0; i < 32; i++ {
		ref, ok := obj.(RefObj)
		if !ok {
			return obj
		}
		next, ok := d.Objects[ref.R]
		if !ok {
			return NullObj{}
		}
		obj = next
	}
	return NullObj{}
}

// ResolveDict resolves obj and returns it as a dictionary, if it is one.
func (d *Document) ResolveDict(obj Object) *DictObj {
	dict, _ := d.Resolve(obj).(*DictObj)
	return dict
}

// Parser converts bytes into a raw.Document.
type Parser interface {
	Parse(ctx context.Context, r io.ReaderAt) (*Document, error)
}
