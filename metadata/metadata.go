package metadata

import (
	"pdfcensor/ir/raw"
)

// identifyingKeys are the standard Info entries that name people, tools, or
// times. Anything else in Info is treated as custom and cleared too, except
// the entries listed in structuralKeys.
var structuralKeys = map[string]bool{
	"Trapped": true,
}

// Scrub removes identifying metadata from the document, unconditionally:
// the Info dictionary (standard and custom keys alike) and the catalog's
// XMP metadata stream. The PDF version marker is untouched. Structural
// Info entries such as /Trapped survive.
func Scrub(doc *raw.Document) {
	if doc.Info != nil {
		for _, key := range doc.Info.Keys() {
			if !structuralKeys[key] {
				doc.Info.Delete(key)
			}
		}
		if doc.Info.Len() == 0 {
			doc.Trailer.Delete("Info")
			doc.Info = nil
		}
	} else {
		doc.Trailer.Delete("Info")
	}
	doc.Metadata = raw.DocumentMetadata{}

	if rootRef, ok := doc.Root(); ok {
		if catalog := doc.ResolveDict(raw.RefObj{R: rootRef}); catalog != nil {
			catalog.Delete("Metadata")
			catalog.Delete("PieceInfo")
		}
	}
}
