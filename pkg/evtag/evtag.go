// Package evtag computes and verifies extended tag checksums: a single
// SHA-512 digest over the full transitive content of a commit, including the
// commits that nested sub-projects are checked out to.
//
// The digest is the hash of a stream of framed objects, visited depth first
// in pre-order:
//
//	commit, tree, entries of tree in stored order (blob | subtree | sub-project commit), ...
//
// where every object contributes "<kind> <len>" NUL <raw bytes>. The stream
// therefore reproduces from raw object bytes alone.
package evtag

import (
	"context"
	"errors"

	"github.com/odvcencio/evtag/pkg/object"
)

// Sentinels wrapped by Database implementations.
var (
	ErrRefNotFound        = errors.New("reference not found")
	ErrNoCheckout         = errors.New("no checked-out commit")
	ErrSubprojectNotFound = errors.New("sub-project not configured")
)

// Database is the object database the engine traverses. Implementations are
// read-only views of one repository.
type Database interface {
	// Location identifies the repository, e.g. its absolute path.
	Location() string

	// ResolveRef maps a full reference name to an object id.
	ResolveRef(name string) (object.Hash, error)

	// ReadObject returns the kind and raw content of an object.
	ReadObject(h object.Hash) (object.ObjectType, []byte, error)

	// TreeEntries lists a tree in stored order.
	TreeEntries(h object.Hash) ([]object.TreeEntry, error)

	// OpenSubproject opens the nested repository linked at path, relative
	// to this repository's root.
	OpenSubproject(path string) (Database, error)

	// Head returns the commit the repository's working copy is checked out
	// to.
	Head() (object.Hash, error)
}

// SignatureVerifier checks the signature attached to an annotated tag.
type SignatureVerifier interface {
	VerifySignature(ctx context.Context, tag object.Hash) error
}
