// Package repo provides the object databases the checksum engine walks: Repo,
// an on-disk git repository read through go-git, and Memory, an in-memory
// repository over object.Store.
package repo

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	gitobject "github.com/go-git/go-git/v5/plumbing/object"

	"github.com/odvcencio/evtag/pkg/evtag"
	"github.com/odvcencio/evtag/pkg/object"
)

// Repo is an opened git repository.
type Repo struct {
	RootDir string // working tree root; empty for bare repositories

	location string
	git      *git.Repository
}

var _ evtag.Database = (*Repo)(nil)

// Open opens the repository containing path, searching parent directories
// the way git does.
func Open(path string) (*Repo, error) {
	r, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	return newRepo(r, path)
}

// openExact opens the repository rooted at dir without searching upward, so
// an uninitialized sub-project never resolves to its parent.
func openExact(dir string) (*Repo, error) {
	r, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{EnableDotGitCommonDir: true})
	if err != nil {
		return nil, err
	}
	return newRepo(r, dir)
}

func newRepo(r *git.Repository, path string) (*Repo, error) {
	out := &Repo{git: r}
	if wt, err := r.Worktree(); err == nil {
		out.RootDir = wt.Filesystem.Root()
	} else if !errors.Is(err, git.ErrIsBareRepository) {
		return nil, fmt.Errorf("open repository %s: worktree: %w", path, err)
	}

	loc := out.RootDir
	if loc == "" {
		loc = path
	}
	abs, err := filepath.Abs(loc)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	out.location = abs
	return out, nil
}

// Location returns the absolute, symlink-resolved repository path.
func (r *Repo) Location() string {
	return r.location
}

// ResolveRef resolves a full reference name, following symbolic refs.
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	ref, err := r.git.Reference(plumbing.ReferenceName(name), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", fmt.Errorf("resolve ref %s: %w", name, evtag.ErrRefNotFound)
		}
		return "", fmt.Errorf("resolve ref %s: %w", name, err)
	}
	return object.Hash(ref.Hash().String()), nil
}

// ReadObject reads a loose or packed object.
func (r *Repo) ReadObject(h object.Hash) (object.ObjectType, []byte, error) {
	id, err := toPlumbingHash(h)
	if err != nil {
		return "", nil, err
	}
	obj, err := r.git.Storer.EncodedObject(plumbing.AnyObject, id)
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return "", nil, fmt.Errorf("object read %s: %w", h, object.ErrNotFound)
		}
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}

	rd, err := obj.Reader()
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	defer rd.Close()
	data, err := io.ReadAll(rd)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	if int64(len(data)) != obj.Size() {
		return "", nil, fmt.Errorf("object read %s: length mismatch (header=%d, actual=%d)", h, obj.Size(), len(data))
	}
	return object.ObjectType(obj.Type().String()), data, nil
}

// TreeEntries lists a tree in the order git stored it.
func (r *Repo) TreeEntries(h object.Hash) ([]object.TreeEntry, error) {
	id, err := toPlumbingHash(h)
	if err != nil {
		return nil, err
	}
	tree, err := gitobject.GetTree(r.git.Storer, id)
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, fmt.Errorf("tree read %s: %w", h, object.ErrNotFound)
		}
		return nil, fmt.Errorf("tree read %s: %w", h, err)
	}

	entries := make([]object.TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		entries = append(entries, object.TreeEntry{
			Name: e.Name,
			Mode: strconv.FormatUint(uint64(e.Mode), 8),
			Hash: object.Hash(e.Hash.String()),
		})
	}
	return entries, nil
}

// Head returns the commit the working copy is checked out to.
func (r *Repo) Head() (object.Hash, error) {
	ref, err := r.git.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", fmt.Errorf("head of %s: %w", r.location, evtag.ErrNoCheckout)
		}
		return "", fmt.Errorf("head of %s: %w", r.location, err)
	}
	return object.Hash(ref.Hash().String()), nil
}

// OpenSubproject opens the submodule checked out at path.
func (r *Repo) OpenSubproject(path string) (evtag.Database, error) {
	if r.RootDir == "" {
		return nil, fmt.Errorf("open sub-project %s: bare repository: %w", path, evtag.ErrSubprojectNotFound)
	}
	mod, err := r.submodule(path)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(r.RootDir, filepath.FromSlash(mod.Path))
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("open sub-project %s: %w: %v", path, evtag.ErrNoCheckout, err)
	}
	sub, err := openExact(dir)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("open sub-project %s: not initialized: %w", path, evtag.ErrNoCheckout)
		}
		return nil, fmt.Errorf("open sub-project %s: %w", path, err)
	}
	return sub, nil
}

func toPlumbingHash(h object.Hash) (plumbing.Hash, error) {
	parsed, err := object.ParseHash(string(h))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("object read: %w", err)
	}
	if len(parsed) != 2*len(plumbing.ZeroHash) {
		return plumbing.ZeroHash, fmt.Errorf("object read %s: unsupported object format", h)
	}
	return plumbing.NewHash(string(parsed)), nil
}
