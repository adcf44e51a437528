package evtag

import (
	"fmt"

	"github.com/odvcencio/evtag/pkg/object"
)

// UnknownTagError reports a tag name with no reference behind it.
type UnknownTagError struct {
	Tag string
	Err error
}

func (e *UnknownTagError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unknown tag %q: %v", e.Tag, e.Err)
	}
	return fmt.Sprintf("unknown tag %q", e.Tag)
}

func (e *UnknownTagError) Unwrap() error { return e.Err }

// NotAnAnnotatedTagError reports a tag reference that does not point at a
// tag object, so it has neither a message nor a signature.
type NotAnAnnotatedTagError struct {
	Tag    string
	Object object.Hash
	Kind   object.ObjectType
}

func (e *NotAnAnnotatedTagError) Error() string {
	return fmt.Sprintf("tag %q is not an annotated tag: %s is a %s", e.Tag, e.Object, e.Kind)
}

// SignatureToolError reports that the signature verifier could not run.
type SignatureToolError struct {
	Tag object.Hash
	Err error
}

func (e *SignatureToolError) Error() string {
	return fmt.Sprintf("signature check of %s could not run: %v", e.Tag, e.Err)
}

func (e *SignatureToolError) Unwrap() error { return e.Err }

// SignatureVerificationError reports a signature that did not verify.
type SignatureVerificationError struct {
	Tag    object.Hash
	Detail string
	Err    error
}

func (e *SignatureVerificationError) Error() string {
	msg := fmt.Sprintf("signature verification of %s failed", e.Tag)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SignatureVerificationError) Unwrap() error { return e.Err }

// ObjectLookupError reports an id or sub-project that the database could not
// resolve.
type ObjectLookupError struct {
	ID   object.Hash
	Path string
	Err  error
}

func (e *ObjectLookupError) Error() string {
	switch {
	case e.ID != "" && e.Path != "":
		return fmt.Sprintf("lookup %s at %q: %v", e.ID, e.Path, e.Err)
	case e.ID != "":
		return fmt.Sprintf("lookup %s: %v", e.ID, e.Err)
	default:
		return fmt.Sprintf("lookup sub-project %q: %v", e.Path, e.Err)
	}
}

func (e *ObjectLookupError) Unwrap() error { return e.Err }

// MalformedGraphError reports an object graph the engine cannot interpret:
// unknown entry kinds, objects of the wrong kind, cycles and runaway depth.
type MalformedGraphError struct {
	ID     object.Hash
	Path   string
	Reason string
}

func (e *MalformedGraphError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("malformed object graph at %s (%q): %s", e.ID, e.Path, e.Reason)
	}
	return fmt.Sprintf("malformed object graph at %s: %s", e.ID, e.Reason)
}

// DetachedSubprojectError reports a sub-project link whose nested repository
// has no checked-out commit.
type DetachedSubprojectError struct {
	Path string
	Err  error
}

func (e *DetachedSubprojectError) Error() string {
	return fmt.Sprintf("sub-project %q has no checked-out commit: %v", e.Path, e.Err)
}

func (e *DetachedSubprojectError) Unwrap() error { return e.Err }

// NoChecksumFoundError reports a tag message (or supplied line) without a
// checksum line.
type NoChecksumFoundError struct {
	Tag string
}

func (e *NoChecksumFoundError) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("no line starting with %s", ChecksumPrefix)
	}
	return fmt.Sprintf("tag %q has no line starting with %s", e.Tag, ChecksumPrefix)
}

// ChecksumMismatchError reports a checksum line that does not match the
// computed digest. Expected is the computed value, Found the embedded one.
type ChecksumMismatchError struct {
	Expected string
	Found    string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected %s but found %s", e.Expected, e.Found)
}
