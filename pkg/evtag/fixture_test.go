package evtag_test

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/evtag/pkg/evtag"
	"github.com/odvcencio/evtag/pkg/object"
	"github.com/odvcencio/evtag/pkg/repo"
)

const testAuthor = "Test Author <test@example.com> 1700000000 +0000"

// fixture builds object graphs in an in-memory repository.
type fixture struct {
	t    *testing.T
	repo *repo.Memory
}

func newFixture(t *testing.T, name string) *fixture {
	t.Helper()
	return &fixture{t: t, repo: repo.NewMemory(name)}
}

func (f *fixture) blob(content string) object.Hash {
	f.t.Helper()
	h, err := f.repo.Store.WriteBlob([]byte(content))
	require.NoError(f.t, err)
	return h
}

func (f *fixture) tree(entries ...object.TreeEntry) object.Hash {
	f.t.Helper()
	h, err := f.repo.Store.WriteTree(&object.TreeObj{Entries: entries})
	require.NoError(f.t, err)
	return h
}

func (f *fixture) commit(tree object.Hash, message string, parents ...object.Hash) object.Hash {
	f.t.Helper()
	h, err := f.repo.Store.WriteCommit(&object.CommitObj{
		TreeHash: tree,
		Parents:  parents,
		Author:   testAuthor,
		Message:  message,
	})
	require.NoError(f.t, err)
	return h
}

// checkout commits tree and checks the commit out.
func (f *fixture) checkout(tree object.Hash, message string) object.Hash {
	f.t.Helper()
	c := f.commit(tree, message)
	f.repo.Checkout(c)
	return c
}

func (f *fixture) tag(name string, target object.Hash, message string) object.Hash {
	f.t.Helper()
	h, err := f.repo.Store.WriteTag(&object.TagObj{
		Object:  target,
		Type:    object.TypeCommit,
		Tag:     name,
		Tagger:  testAuthor,
		Message: message,
	})
	require.NoError(f.t, err)
	f.repo.SetRef("refs/tags/"+name, h)
	return h
}

func (f *fixture) compute(commit object.Hash) string {
	f.t.Helper()
	res, err := evtag.Compute(f.t.Context(), f.repo, commit, evtag.Options{})
	require.NoError(f.t, err)
	return res.Hex()
}

func file(name string, h object.Hash) object.TreeEntry {
	return object.TreeEntry{Name: name, Mode: object.TreeModeFile, Hash: h}
}

func dir(name string, h object.Hash) object.TreeEntry {
	return object.TreeEntry{Name: name, Mode: object.TreeModeDir, Hash: h}
}

func gitlink(name string, h object.Hash) object.TreeEntry {
	return object.TreeEntry{Name: name, Mode: object.TreeModeGitlink, Hash: h}
}

// streamDigest hashes objects framed the way the engine frames them.
func streamDigest(t *testing.T, db evtag.Database, ids ...object.Hash) string {
	t.Helper()
	h := sha512.New()
	for _, id := range ids {
		kind, data, err := db.ReadObject(id)
		require.NoError(t, err)
		fmt.Fprintf(h, "%s %d\x00", kind, len(data))
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// countingDB counts object reads on the wrapped database.
type countingDB struct {
	evtag.Database
	reads int
}

func (c *countingDB) ReadObject(h object.Hash) (object.ObjectType, []byte, error) {
	c.reads++
	return c.Database.ReadObject(h)
}
