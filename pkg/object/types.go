package object

// Hash is a lowercase hex-encoded git object id.
type Hash string

// ObjectType identifies the kind of object stored. The string value is the
// kind name used in git object headers.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
	TypeTag    ObjectType = "tag"

	// TypeUnknown is reported for tree entries whose mode does not map to
	// any object kind.
	TypeUnknown ObjectType = ""
)

// Valid reports whether t is one of the four git object kinds.
func (t ObjectType) Valid() bool {
	switch t {
	case TypeBlob, TypeTree, TypeCommit, TypeTag:
		return true
	}
	return false
}

const (
	// Tree mode constants, in git's canonical mode strings.
	TreeModeDir        = "40000"
	TreeModeFile       = "100644"
	TreeModeExecutable = "100755"
	TreeModeSymlink    = "120000"
	TreeModeGitlink    = "160000"

	// treeModeGroupWritable appears in trees written by very old git.
	treeModeGroupWritable = "100664"
)

// TreeEntry is one entry in a tree object.
type TreeEntry struct {
	Name string
	Mode string
	Hash Hash

	// Type overrides the kind derived from Mode. Git trees never carry it;
	// backends that can express tag-link entries set it to TypeTag.
	Type ObjectType
}

// Kind reports the object kind the entry points at.
func (e TreeEntry) Kind() ObjectType {
	if e.Type != TypeUnknown {
		return e.Type
	}
	return KindForMode(e.Mode)
}

// KindForMode maps a git tree mode to the kind of object it references.
func KindForMode(mode string) ObjectType {
	switch mode {
	case TreeModeDir:
		return TypeTree
	case TreeModeFile, TreeModeExecutable, TreeModeSymlink, treeModeGroupWritable:
		return TypeBlob
	case TreeModeGitlink:
		return TypeCommit
	}
	return TypeUnknown
}

// TreeObj holds tree entries in stored order.
type TreeObj struct {
	Entries []TreeEntry
}

// CommitObj represents a commit pointing to a tree with metadata.
type CommitObj struct {
	TreeHash  Hash
	Parents   []Hash
	Author    string // "Name <email> unix tz"
	Committer string
	Headers   []string // extra header lines (gpgsig continuation lines excluded)
	Message   string
}

// TagObj is a parsed annotated tag.
type TagObj struct {
	Object  Hash
	Type    ObjectType
	Tag     string
	Tagger  string
	Message string // message with any trailing signature block removed

	// Signature is the armored signature block appended to the tag, if any.
	Signature string

	// Payload is the exact byte range covered by Signature.
	Payload []byte
}
