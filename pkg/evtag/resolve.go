package evtag

import (
	"errors"
	"fmt"

	"github.com/odvcencio/evtag/pkg/object"
)

// maxTagChain bounds tag-of-tag peeling.
const maxTagChain = 16

// ResolveCommit resolves rev to a commit id. rev may be a full hex id, a full
// reference name, or a short tag or branch name; annotated tags are peeled.
func ResolveCommit(db Database, rev string) (object.Hash, error) {
	if rev == "" {
		rev = "HEAD"
	}

	id, err := resolveRev(db, rev)
	if err != nil {
		return "", err
	}

	for i := 0; i < maxTagChain; i++ {
		kind, data, err := db.ReadObject(id)
		if err != nil {
			return "", &ObjectLookupError{ID: id, Err: err}
		}
		switch kind {
		case object.TypeCommit:
			return id, nil
		case object.TypeTag:
			tag, err := object.UnmarshalTag(data)
			if err != nil {
				return "", &MalformedGraphError{ID: id, Reason: err.Error()}
			}
			id = tag.Object
		default:
			return "", &MalformedGraphError{ID: id, Reason: fmt.Sprintf("%s names a %s, not a commit", rev, kind)}
		}
	}
	return "", &MalformedGraphError{ID: id, Reason: fmt.Sprintf("tag chain of %s is longer than %d", rev, maxTagChain)}
}

func resolveRev(db Database, rev string) (object.Hash, error) {
	if h, err := object.ParseHash(rev); err == nil {
		return h, nil
	}
	candidates := []string{rev, "refs/tags/" + rev, "refs/heads/" + rev, "refs/remotes/" + rev}
	for _, name := range candidates {
		h, err := db.ResolveRef(name)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, ErrRefNotFound) {
			return "", fmt.Errorf("resolve %s: %w", rev, err)
		}
	}
	return "", fmt.Errorf("resolve %s: %w", rev, ErrRefNotFound)
}
