package evtag

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"path"

	"github.com/rs/zerolog"

	"github.com/odvcencio/evtag/pkg/object"
)

// DefaultMaxDepth bounds nesting of trees and sub-projects combined.
const DefaultMaxDepth = 256

// Options tunes a checksum computation. The zero value is usable.
type Options struct {
	// MaxDepth bounds recursion; zero means DefaultMaxDepth.
	MaxDepth int

	// Stream, if set, receives a copy of every byte fed to the hash.
	Stream io.Writer

	Logger *zerolog.Logger
}

// Stats counts what a computation hashed.
type Stats struct {
	Commits     int
	Trees       int
	Blobs       int
	Subprojects int
	Bytes       uint64
}

func (s Stats) String() string {
	return fmt.Sprintf("commits=%d trees=%d blobs=%d subprojects=%d bytes=%d",
		s.Commits, s.Trees, s.Blobs, s.Subprojects, s.Bytes)
}

// Result is the outcome of Compute.
type Result struct {
	Digest []byte
	Stats  Stats
}

// Hex returns the lowercase hex digest.
func (r *Result) Hex() string {
	return hex.EncodeToString(r.Digest)
}

// Line returns the checksum line for the digest.
func (r *Result) Line() string {
	return FormatLine(r.Hex())
}

// Compute walks the object graph rooted at commit and returns its digest.
func Compute(ctx context.Context, db Database, commit object.Hash, opts Options) (*Result, error) {
	c := newChecksummer(ctx, opts)
	root := scope{db: db}
	c.chain = append(c.chain, chainLink{location: db.Location(), commit: commit})
	if err := c.commit(root, commit, ""); err != nil {
		return nil, err
	}

	c.log.Debug().
		Str("commit", string(commit)).
		Int("commits", c.stats.Commits).
		Int("trees", c.stats.Trees).
		Int("blobs", c.stats.Blobs).
		Int("subprojects", c.stats.Subprojects).
		Uint64("bytes", c.stats.Bytes).
		Msg("checksum computed")

	return &Result{Digest: c.hash.Sum(nil), Stats: c.stats}, nil
}

// scope is one repository in the traversal. prefix is the path of the
// repository's root relative to the top-level repository.
type scope struct {
	db     Database
	prefix string
}

func (s scope) display(rel string) string {
	return path.Join(s.prefix, rel)
}

type chainLink struct {
	location string
	commit   object.Hash
}

// checksummer owns the running hash for one Compute call.
type checksummer struct {
	ctx      context.Context
	hash     hash.Hash
	w        io.Writer
	stats    Stats
	chain    []chainLink
	depth    int
	maxDepth int
	log      zerolog.Logger
}

func newChecksummer(ctx context.Context, opts Options) *checksummer {
	h := sha512.New()
	c := &checksummer{
		ctx:      ctx,
		hash:     h,
		w:        h,
		maxDepth: opts.MaxDepth,
		log:      zerolog.Nop(),
	}
	if opts.Stream != nil {
		c.w = io.MultiWriter(h, opts.Stream)
	}
	if c.maxDepth <= 0 {
		c.maxDepth = DefaultMaxDepth
	}
	if opts.Logger != nil {
		c.log = *opts.Logger
	}
	return c
}

// checksumObject feeds "<kind> <len>\0<data>" for id into the hash.
func (c *checksummer) checksumObject(s scope, id object.Hash, rel string) (object.ObjectType, []byte, error) {
	if err := c.ctx.Err(); err != nil {
		return "", nil, err
	}
	kind, data, err := s.db.ReadObject(id)
	if err != nil {
		return "", nil, &ObjectLookupError{ID: id, Path: s.display(rel), Err: err}
	}

	header := object.Header(kind, len(data))
	if _, err := io.WriteString(c.w, header); err != nil {
		return "", nil, fmt.Errorf("checksum %s: %w", id, err)
	}
	if _, err := c.w.Write([]byte{0}); err != nil {
		return "", nil, fmt.Errorf("checksum %s: %w", id, err)
	}
	if _, err := c.w.Write(data); err != nil {
		return "", nil, fmt.Errorf("checksum %s: %w", id, err)
	}

	switch kind {
	case object.TypeCommit:
		c.stats.Commits++
	case object.TypeTree:
		c.stats.Trees++
	case object.TypeBlob:
		c.stats.Blobs++
	}
	c.stats.Bytes += uint64(len(data))

	c.log.Trace().
		Str("object", string(id)).
		Str("kind", string(kind)).
		Int("size", len(data)).
		Str("path", s.display(rel)).
		Msg("hashed object")
	return kind, data, nil
}

func (c *checksummer) enter(id object.Hash, display string) error {
	c.depth++
	if c.depth > c.maxDepth {
		return &MalformedGraphError{
			ID:     id,
			Path:   display,
			Reason: fmt.Sprintf("recursion depth exceeds %d", c.maxDepth),
		}
	}
	return nil
}

func (c *checksummer) leave() {
	c.depth--
}

func (c *checksummer) commit(s scope, id object.Hash, rel string) error {
	kind, data, err := c.checksumObject(s, id, rel)
	if err != nil {
		return err
	}
	if kind != object.TypeCommit {
		return &MalformedGraphError{ID: id, Path: s.display(rel), Reason: fmt.Sprintf("expected a commit, found a %s", kind)}
	}
	parsed, err := object.UnmarshalCommit(data)
	if err != nil {
		return &MalformedGraphError{ID: id, Path: s.display(rel), Reason: err.Error()}
	}
	return c.tree(s, parsed.TreeHash, rel)
}

func (c *checksummer) tree(s scope, id object.Hash, rel string) error {
	if err := c.enter(id, s.display(rel)); err != nil {
		return err
	}
	defer c.leave()

	kind, _, err := c.checksumObject(s, id, rel)
	if err != nil {
		return err
	}
	if kind != object.TypeTree {
		return &MalformedGraphError{ID: id, Path: s.display(rel), Reason: fmt.Sprintf("expected a tree, found a %s", kind)}
	}

	entries, err := s.db.TreeEntries(id)
	if err != nil {
		return &ObjectLookupError{ID: id, Path: s.display(rel), Err: err}
	}
	for _, e := range entries {
		entryPath := path.Join(rel, e.Name)
		switch e.Kind() {
		case object.TypeBlob:
			if _, _, err := c.checksumObject(s, e.Hash, entryPath); err != nil {
				return err
			}
		case object.TypeTree:
			if err := c.tree(s, e.Hash, entryPath); err != nil {
				return err
			}
		case object.TypeCommit:
			if err := c.subproject(s, e, entryPath); err != nil {
				return err
			}
		case object.TypeTag:
			// tag links carry no content
		default:
			return &MalformedGraphError{
				ID:     id,
				Path:   s.display(entryPath),
				Reason: fmt.Sprintf("entry %q has unknown mode %q", e.Name, e.Mode),
			}
		}
	}
	return nil
}

func (c *checksummer) subproject(s scope, e object.TreeEntry, rel string) error {
	display := s.display(rel)
	if err := c.enter(e.Hash, display); err != nil {
		return err
	}
	defer c.leave()

	sub, err := s.db.OpenSubproject(rel)
	if err != nil {
		if errors.Is(err, ErrNoCheckout) {
			return &DetachedSubprojectError{Path: display, Err: err}
		}
		return &ObjectLookupError{Path: display, Err: err}
	}
	head, err := sub.Head()
	if err != nil {
		if errors.Is(err, ErrNoCheckout) {
			return &DetachedSubprojectError{Path: display, Err: err}
		}
		return &ObjectLookupError{Path: display, Err: err}
	}

	link := chainLink{location: sub.Location(), commit: head}
	for _, l := range c.chain {
		if l == link {
			return &MalformedGraphError{
				ID:     head,
				Path:   display,
				Reason: fmt.Sprintf("sub-project cycle through %s", link.location),
			}
		}
	}
	c.chain = append(c.chain, link)
	defer func() { c.chain = c.chain[:len(c.chain)-1] }()

	if head != e.Hash {
		c.log.Warn().
			Str("path", display).
			Str("recorded", string(e.Hash)).
			Str("checkout", string(head)).
			Msg("sub-project checkout differs from recorded commit")
	}
	c.log.Debug().
		Str("path", display).
		Str("commit", string(head)).
		Str("location", link.location).
		Msg("entering sub-project")

	c.stats.Subprojects++
	return c.commit(scope{db: sub, prefix: display}, head, "")
}
