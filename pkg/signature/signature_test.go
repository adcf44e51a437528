package signature

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/odvcencio/evtag/pkg/evtag"
	"github.com/odvcencio/evtag/pkg/object"
	"github.com/odvcencio/evtag/pkg/repo"
)

func newSigner(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)
	return signer
}

// armorSSHSIG signs payload the way `ssh-keygen -Y sign` does.
func armorSSHSIG(t *testing.T, signer ssh.Signer, namespace, hashAlg string, payload []byte) string {
	t.Helper()
	digest, err := hashPayload(hashAlg, payload)
	require.NoError(t, err)
	signed := append([]byte(sshsigMagic), ssh.Marshal(sshsigSigned{
		Namespace:     namespace,
		HashAlgorithm: hashAlg,
		Hash:          digest,
	})...)
	sig, err := signer.Sign(rand.Reader, signed)
	require.NoError(t, err)

	blob := append([]byte(sshsigMagic), ssh.Marshal(sshsigBlob{
		Version:       sshsigVersion,
		PublicKey:     signer.PublicKey().Marshal(),
		Namespace:     namespace,
		HashAlgorithm: hashAlg,
		Signature:     ssh.Marshal(*sig),
	})...)
	b64 := base64.StdEncoding.EncodeToString(blob)

	var sb strings.Builder
	sb.WriteString(object.SSHSignatureMarker + "\n")
	for len(b64) > 70 {
		sb.WriteString(b64[:70] + "\n")
		b64 = b64[70:]
	}
	sb.WriteString(b64 + "\n")
	sb.WriteString(sshsigEndMarker + "\n")
	return sb.String()
}

// writeSignedTag stores a tag whose signature covers its payload.
func writeSignedTag(t *testing.T, m *repo.Memory, sign func(payload []byte) string) object.Hash {
	t.Helper()
	tree, err := m.Store.WriteTree(&object.TreeObj{})
	require.NoError(t, err)
	commit, err := m.Store.WriteCommit(&object.CommitObj{
		TreeHash: tree,
		Author:   "A <a@example.com> 1700000000 +0000",
		Message:  "c\n",
	})
	require.NoError(t, err)

	tag := &object.TagObj{
		Object:  commit,
		Type:    object.TypeCommit,
		Tag:     "v1",
		Tagger:  "A <a@example.com> 1700000000 +0000",
		Message: "v1\n\n" + evtag.FormatLine(strings.Repeat("0", 128)) + "\n",
	}
	if sign != nil {
		tag.Signature = sign(object.MarshalTag(tag))
	}
	id, err := m.Store.WriteTag(tag)
	require.NoError(t, err)
	return id
}

func allowedKey(signer ssh.Signer, namespaces ...string) AllowedSigner {
	return AllowedSigner{Principals: []string{"a@example.com"}, Namespaces: namespaces, Key: signer.PublicKey()}
}

func TestSSHAcceptsValidSignature(t *testing.T) {
	signer := newSigner(t)
	m := repo.NewMemory("top")

	for _, alg := range []string{"sha512", "sha256"} {
		id := writeSignedTag(t, m, func(p []byte) string { return armorSSHSIG(t, signer, "git", alg, p) })
		v := &SSH{Objects: m, Allowed: []AllowedSigner{allowedKey(signer, "git")}}
		require.NoError(t, v.VerifySignature(t.Context(), id), alg)
	}
}

func TestSSHRejectsTamperedPayload(t *testing.T) {
	signer := newSigner(t)
	m := repo.NewMemory("top")
	id := writeSignedTag(t, m, func(p []byte) string {
		tampered := append([]byte(nil), p...)
		tampered[len(tampered)-2] ^= 1
		return armorSSHSIG(t, signer, "git", "sha512", tampered)
	})

	err := (&SSH{Objects: m, Allowed: []AllowedSigner{allowedKey(signer)}}).VerifySignature(t.Context(), id)
	var sigErr *evtag.SignatureVerificationError
	require.ErrorAs(t, err, &sigErr)
	assert.Equal(t, id, sigErr.Tag)
}

func TestSSHRejectsUnknownKey(t *testing.T) {
	signer := newSigner(t)
	stranger := newSigner(t)
	m := repo.NewMemory("top")
	id := writeSignedTag(t, m, func(p []byte) string { return armorSSHSIG(t, stranger, "git", "sha512", p) })

	err := (&SSH{Objects: m, Allowed: []AllowedSigner{allowedKey(signer)}}).VerifySignature(t.Context(), id)
	var sigErr *evtag.SignatureVerificationError
	require.ErrorAs(t, err, &sigErr)
	assert.Contains(t, err.Error(), "not an allowed signer")
}

func TestSSHNamespaces(t *testing.T) {
	signer := newSigner(t)
	m := repo.NewMemory("top")
	fileSig := writeSignedTag(t, m, func(p []byte) string { return armorSSHSIG(t, signer, "file", "sha512", p) })

	err := (&SSH{Objects: m, Allowed: []AllowedSigner{allowedKey(signer)}}).VerifySignature(t.Context(), fileSig)
	var sigErr *evtag.SignatureVerificationError
	require.ErrorAs(t, err, &sigErr)

	require.NoError(t, (&SSH{Objects: m, Namespace: "file", Allowed: []AllowedSigner{allowedKey(signer)}}).VerifySignature(t.Context(), fileSig))

	restricted := &SSH{Objects: m, Namespace: "file", Allowed: []AllowedSigner{allowedKey(signer, "git")}}
	require.ErrorAs(t, restricted.VerifySignature(t.Context(), fileSig), &sigErr)
}

func TestSSHUnsignedAndForeignSignatures(t *testing.T) {
	signer := newSigner(t)
	m := repo.NewMemory("top")
	v := &SSH{Objects: m, Allowed: []AllowedSigner{allowedKey(signer)}}

	unsigned := writeSignedTag(t, m, nil)
	var sigErr *evtag.SignatureVerificationError
	require.ErrorAs(t, v.VerifySignature(t.Context(), unsigned), &sigErr)
	assert.Equal(t, "tag is not signed", sigErr.Detail)

	pgp := writeSignedTag(t, m, func([]byte) string {
		return "-----BEGIN PGP SIGNATURE-----\n\nabc\n-----END PGP SIGNATURE-----\n"
	})
	var toolErr *evtag.SignatureToolError
	require.ErrorAs(t, v.VerifySignature(t.Context(), pgp), &toolErr)
}

func TestSSHWithoutAllowedSigners(t *testing.T) {
	m := repo.NewMemory("top")
	id := writeSignedTag(t, m, nil)

	var toolErr *evtag.SignatureToolError
	require.ErrorAs(t, (&SSH{Objects: m}).VerifySignature(t.Context(), id), &toolErr)
}

func TestParseAllowedSigners(t *testing.T) {
	signer := newSigner(t)
	other := newSigner(t)
	authorized := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(signer.PublicKey())))
	otherKey := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(other.PublicKey())))

	data := strings.Join([]string{
		"# release managers",
		"",
		"alice@example.com,bob@example.com namespaces=\"git,file\" " + authorized + " alice",
		otherKey,
		"ca@example.com cert-authority " + otherKey,
	}, "\n")

	signers, err := ParseAllowedSigners([]byte(data))
	require.NoError(t, err)
	require.Len(t, signers, 2)

	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, signers[0].Principals)
	assert.Equal(t, []string{"git", "file"}, signers[0].Namespaces)
	assert.Equal(t, signer.PublicKey().Marshal(), signers[0].Key.Marshal())

	assert.Empty(t, signers[1].Principals)
	assert.Empty(t, signers[1].Namespaces)
	assert.Equal(t, other.PublicKey().Marshal(), signers[1].Key.Marshal())

	_, err = ParseAllowedSigners([]byte("alice@example.com not-a-key\n"))
	require.Error(t, err)
}

func TestLoadAllowedSigners(t *testing.T) {
	signer := newSigner(t)
	path := filepath.Join(t.TempDir(), "allowed_signers")
	line := "alice@example.com " + string(ssh.MarshalAuthorizedKey(signer.PublicKey()))
	require.NoError(t, os.WriteFile(path, []byte(line), 0o600))

	signers, err := LoadAllowedSigners(path)
	require.NoError(t, err)
	require.Len(t, signers, 1)

	_, err = LoadAllowedSigners(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "fake-git")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestGitVerifierAccepts(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	program := writeScript(t, "echo \"$@\" > "+argsFile+"\necho 'Good signature' >&2\nexit 0\n")

	id := object.HashObject(object.TypeTag, []byte("t"))
	g := &Git{Program: program, Dir: "/work/repo"}
	require.NoError(t, g.VerifySignature(t.Context(), id))

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, "-C /work/repo verify-tag "+string(id)+"\n", string(args))
}

func TestGitVerifierRejects(t *testing.T) {
	program := writeScript(t, "echo 'error: no signature found' >&2\nexit 1\n")

	id := object.HashObject(object.TypeTag, []byte("t"))
	err := (&Git{Program: program}).VerifySignature(t.Context(), id)
	var sigErr *evtag.SignatureVerificationError
	require.ErrorAs(t, err, &sigErr)
	assert.Equal(t, "error: no signature found", sigErr.Detail)
	assert.Equal(t, id, sigErr.Tag)
}

func TestGitVerifierMissingProgram(t *testing.T) {
	id := object.HashObject(object.TypeTag, []byte("t"))
	err := (&Git{Program: filepath.Join(t.TempDir(), "no-such-git")}).VerifySignature(t.Context(), id)
	var toolErr *evtag.SignatureToolError
	require.ErrorAs(t, err, &toolErr)
}

func TestSkip(t *testing.T) {
	require.NoError(t, Skip{}.VerifySignature(t.Context(), "anything"))
}
