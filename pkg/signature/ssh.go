package signature

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/odvcencio/evtag/pkg/evtag"
	"github.com/odvcencio/evtag/pkg/object"
)

const (
	sshsigMagic      = "SSHSIG"
	sshsigVersion    = 1
	sshsigEndMarker  = "-----END SSH SIGNATURE-----"
	defaultNamespace = "git"
)

// ObjectReader reads raw objects.
type ObjectReader interface {
	ReadObject(h object.Hash) (object.ObjectType, []byte, error)
}

// SSH verifies SSHSIG signatures on tags against a set of allowed signers
// without running any external program.
type SSH struct {
	Objects ObjectReader
	Allowed []AllowedSigner

	// Namespace the signature must be made for; defaults to "git".
	Namespace string

	Logger *zerolog.Logger
}

var _ evtag.SignatureVerifier = (*SSH)(nil)

// sshsigBlob is the wire form of an armored SSH signature after the magic.
type sshsigBlob struct {
	Version       uint32
	PublicKey     []byte
	Namespace     string
	Reserved      string
	HashAlgorithm string
	Signature     []byte
}

// sshsigSigned is the data the signature covers, after the magic.
type sshsigSigned struct {
	Namespace     string
	Reserved      string
	HashAlgorithm string
	Hash          []byte
}

// VerifySignature checks the SSH signature appended to the tag's message.
func (s *SSH) VerifySignature(ctx context.Context, tag object.Hash) error {
	if err := ctx.Err(); err != nil {
		return &evtag.SignatureToolError{Tag: tag, Err: err}
	}
	if s.Objects == nil {
		return &evtag.SignatureToolError{Tag: tag, Err: errors.New("no object reader configured")}
	}
	if len(s.Allowed) == 0 {
		return &evtag.SignatureToolError{Tag: tag, Err: errors.New("no allowed signers configured")}
	}

	kind, data, err := s.Objects.ReadObject(tag)
	if err != nil {
		return &evtag.SignatureToolError{Tag: tag, Err: err}
	}
	if kind != object.TypeTag {
		return &evtag.SignatureToolError{Tag: tag, Err: fmt.Errorf("%s is a %s, not a tag", tag, kind)}
	}
	parsed, err := object.UnmarshalTag(data)
	if err != nil {
		return &evtag.SignatureToolError{Tag: tag, Err: err}
	}

	switch {
	case parsed.Signature == "":
		return &evtag.SignatureVerificationError{Tag: tag, Detail: "tag is not signed"}
	case !strings.HasPrefix(parsed.Signature, object.SSHSignatureMarker):
		return &evtag.SignatureToolError{Tag: tag, Err: errors.New("tag carries a non-SSH signature; use the git signature mode")}
	}

	key, err := s.verify(parsed.Payload, parsed.Signature)
	if err != nil {
		return &evtag.SignatureVerificationError{Tag: tag, Err: err}
	}
	if s.Logger != nil {
		s.Logger.Debug().Str("tag", string(tag)).Str("key", ssh.FingerprintSHA256(key)).Msg("signature accepted")
	}
	return nil
}

// verify checks armored against payload and returns the signing key.
func (s *SSH) verify(payload []byte, armored string) (ssh.PublicKey, error) {
	blob, err := dearmor(armored)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(blob, []byte(sshsigMagic)) {
		return nil, errors.New("missing SSHSIG magic")
	}
	var sig sshsigBlob
	if err := ssh.Unmarshal(blob[len(sshsigMagic):], &sig); err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	if sig.Version != sshsigVersion {
		return nil, fmt.Errorf("unsupported signature version %d", sig.Version)
	}

	namespace := s.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}
	if sig.Namespace != namespace {
		return nil, fmt.Errorf("signature namespace %q, want %q", sig.Namespace, namespace)
	}

	pub, err := ssh.ParsePublicKey(sig.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	if !s.allowed(pub, namespace) {
		return nil, fmt.Errorf("key %s is not an allowed signer", ssh.FingerprintSHA256(pub))
	}

	digest, err := hashPayload(sig.HashAlgorithm, payload)
	if err != nil {
		return nil, err
	}
	signed := append([]byte(sshsigMagic), ssh.Marshal(sshsigSigned{
		Namespace:     sig.Namespace,
		Reserved:      sig.Reserved,
		HashAlgorithm: sig.HashAlgorithm,
		Hash:          digest,
	})...)

	var inner ssh.Signature
	if err := ssh.Unmarshal(sig.Signature, &inner); err != nil {
		return nil, fmt.Errorf("decode signature body: %w", err)
	}
	if err := pub.Verify(signed, &inner); err != nil {
		return nil, fmt.Errorf("bad signature from %s: %w", ssh.FingerprintSHA256(pub), err)
	}
	return pub, nil
}

func (s *SSH) allowed(pub ssh.PublicKey, namespace string) bool {
	want := pub.Marshal()
	for _, a := range s.Allowed {
		if bytes.Equal(a.Key.Marshal(), want) && a.allowsNamespace(namespace) {
			return true
		}
	}
	return false
}

func hashPayload(alg string, payload []byte) ([]byte, error) {
	switch alg {
	case "sha512":
		sum := sha512.Sum512(payload)
		return sum[:], nil
	case "sha256":
		sum := sha256.Sum256(payload)
		return sum[:], nil
	}
	return nil, fmt.Errorf("unsupported hash algorithm %q", alg)
}

// dearmor decodes the base64 body of an armored SSH signature.
func dearmor(armored string) ([]byte, error) {
	body := strings.TrimSpace(armored)
	if !strings.HasPrefix(body, object.SSHSignatureMarker) {
		return nil, errors.New("missing signature header")
	}
	body = strings.TrimPrefix(body, object.SSHSignatureMarker)
	end := strings.Index(body, sshsigEndMarker)
	if end < 0 {
		return nil, errors.New("missing signature footer")
	}
	b64 := strings.Join(strings.Fields(body[:end]), "")
	blob, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode armor: %w", err)
	}
	return blob, nil
}
