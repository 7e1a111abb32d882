package server

import (
	"github.com/garland-lang/garland/engine"
	"github.com/garland-lang/garland/manifest"
)

// ---------------------------------------------------------------------------
// Wire messages
// ---------------------------------------------------------------------------

// GetClassRequest asks for a class digest by fully qualified name or by
// hex-encoded content hash. Hash wins when both are set.
type GetClassRequest struct {
	Name string `cbor:"name,omitempty"`
	Hash string `cbor:"hash,omitempty"`
}

// GetClassResponse carries the requested digest.
type GetClassResponse struct {
	Digest *engine.ClassDigest `cbor:"digest"`
}

// GetMetadataRequest asks for one side of a committed class's metadata.
type GetMetadataRequest struct {
	Name string `cbor:"name"`
	Side string `cbor:"side"` // "static" or "instance"
}

// GetMetadataResponse carries the metadata wire record.
type GetMetadataResponse struct {
	Metadata *engine.WireMetadata `cbor:"metadata"`
}

// ListClassesRequest lists all committed classes.
type ListClassesRequest struct{}

// ListClassesResponse carries the sorted fully qualified names.
type ListClassesResponse struct {
	Names []string `cbor:"names,omitempty"`
}

// DefineClassRequest submits one class declaration for definition.
type DefineClassRequest struct {
	Class manifest.ClassDecl `cbor:"class"`
}

// DefineClassResponse carries the committed class's digest.
type DefineClassResponse struct {
	Digest *engine.ClassDigest `cbor:"digest"`
}
