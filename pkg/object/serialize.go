package object

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// TreeObj
// ---------------------------------------------------------------------------

// MarshalTree serializes a TreeObj in git's binary tree format. Each entry is
//
//	<mode> SP <name> NUL <raw object id>
//
// Entries are written in git canonical order: byte order on the name, where
// directories compare as if their name had a trailing "/".
func MarshalTree(tr *TreeObj) []byte {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return canonicalName(sorted[i]) < canonicalName(sorted[j])
	})
	return marshalTreeEntries(sorted)
}

// MarshalTreeOrdered serializes entries exactly in the order given. Git never
// writes such trees; it exists so callers can construct non-canonical input.
func MarshalTreeOrdered(tr *TreeObj) []byte {
	return marshalTreeEntries(tr.Entries)
}

func marshalTreeEntries(entries []TreeEntry) []byte {
	var buf bytes.Buffer
	for _, e := range entries {
		buf.WriteString(treeModeOrDefault(e))
		buf.WriteByte(' ')
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.Write(e.Hash.Bytes())
	}
	return buf.Bytes()
}

func canonicalName(e TreeEntry) string {
	if e.Mode == TreeModeDir {
		return e.Name + "/"
	}
	return e.Name
}

func treeModeOrDefault(e TreeEntry) string {
	if strings.TrimSpace(e.Mode) == "" {
		return TreeModeFile
	}
	return e.Mode
}

// UnmarshalTree parses a SHA-1 format tree, keeping entries in stored order.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	return UnmarshalTreeWithIDSize(data, hexLenSHA1/2)
}

// UnmarshalTreeWithIDSize parses a tree whose raw object ids are idSize bytes
// long (20 for SHA-1, 32 for SHA-256).
func UnmarshalTreeWithIDSize(data []byte, idSize int) (*TreeObj, error) {
	tr := &TreeObj{}
	for len(data) > 0 {
		sp := bytes.IndexByte(data, ' ')
		if sp <= 0 {
			return nil, fmt.Errorf("unmarshal tree: malformed mode at entry %d", len(tr.Entries))
		}
		mode := string(data[:sp])
		data = data[sp+1:]

		nul := bytes.IndexByte(data, 0)
		if nul < 0 {
			return nil, fmt.Errorf("unmarshal tree: unterminated name after mode %s", mode)
		}
		name := string(data[:nul])
		data = data[nul+1:]

		if len(data) < idSize {
			return nil, fmt.Errorf("unmarshal tree: truncated object id for %q", name)
		}
		id := fmt.Sprintf("%x", data[:idSize])
		data = data[idSize:]

		tr.Entries = append(tr.Entries, TreeEntry{
			Name: name,
			Mode: normalizeMode(mode),
			Hash: Hash(id),
		})
	}
	return tr, nil
}

// normalizeMode strips the leading zero some writers emit for directories.
func normalizeMode(mode string) string {
	if mode == "040000" {
		return TreeModeDir
	}
	return mode
}

// ---------------------------------------------------------------------------
// CommitObj
// ---------------------------------------------------------------------------

// MarshalCommit serializes a CommitObj:
//
//	tree H
//	parent H       (zero or more)
//	author A
//	committer C
//	<extra headers>
//
//	message
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.TreeHash)
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "author %s\n", c.Author)
	committer := c.Committer
	if committer == "" {
		committer = c.Author
	}
	fmt.Fprintf(&buf, "committer %s\n", committer)
	for _, h := range c.Headers {
		buf.WriteString(h)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses a CommitObj from its serialized form.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	header, message := splitHeader(data)

	c := &CommitObj{Message: string(message)}
	for _, line := range strings.Split(string(header), "\n") {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, " ") {
			// continuation of a multi-line header such as gpgsig
			continue
		}
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: malformed header line %q", line)
		}
		switch key {
		case "tree":
			c.TreeHash = Hash(val)
		case "parent":
			c.Parents = append(c.Parents, Hash(val))
		case "author":
			c.Author = val
		case "committer":
			c.Committer = val
		default:
			c.Headers = append(c.Headers, line)
		}
	}
	if c.TreeHash == "" {
		return nil, fmt.Errorf("unmarshal commit: missing tree header")
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// TagObj
// ---------------------------------------------------------------------------

// MarshalTag serializes an annotated tag:
//
//	object H
//	type T
//	tag NAME
//	tagger T   (optional)
//
//	message
//	<signature>  (optional)
func MarshalTag(t *TagObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "object %s\n", t.Object)
	fmt.Fprintf(&buf, "type %s\n", t.Type)
	fmt.Fprintf(&buf, "tag %s\n", t.Tag)
	if t.Tagger != "" {
		fmt.Fprintf(&buf, "tagger %s\n", t.Tagger)
	}
	buf.WriteByte('\n')
	buf.WriteString(t.Message)
	buf.WriteString(t.Signature)
	return buf.Bytes()
}

// UnmarshalTag parses an annotated tag object.
func UnmarshalTag(data []byte) (*TagObj, error) {
	header, body := splitHeader(data)

	t := &TagObj{}
	for _, line := range strings.Split(string(header), "\n") {
		if line == "" || strings.HasPrefix(line, " ") {
			continue
		}
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal tag: malformed header line %q", line)
		}
		switch key {
		case "object":
			t.Object = Hash(val)
		case "type":
			t.Type = ObjectType(val)
		case "tag":
			t.Tag = val
		case "tagger":
			t.Tagger = val
		}
	}
	if t.Object == "" {
		return nil, fmt.Errorf("unmarshal tag: missing object header")
	}
	if !t.Type.Valid() {
		return nil, fmt.Errorf("unmarshal tag: invalid target type %q", t.Type)
	}

	sigStart := signatureOffset(body)
	t.Message = string(body[:sigStart])
	t.Signature = string(body[sigStart:])
	t.Payload = make([]byte, len(data)-len(body)+sigStart)
	copy(t.Payload, data)
	return t, nil
}

// splitHeader separates header lines from the message at the first blank
// line. Objects without a blank line are all header.
func splitHeader(data []byte) (header, body []byte) {
	if bytes.HasPrefix(data, []byte("\n")) {
		return nil, data[1:]
	}
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return data, data[len(data):]
	}
	return data[:idx], data[idx+2:]
}
