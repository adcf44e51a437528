package evtag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/odvcencio/evtag/pkg/object"
)

const tagRefPrefix = "refs/tags/"

// Verifier runs the tag verification protocol against one repository.
type Verifier struct {
	DB         Database
	Signatures SignatureVerifier
	Options    Options
}

// Verification describes a successfully verified tag.
type Verification struct {
	TagName  string
	Tag      object.Hash
	Target   object.Hash
	Checksum string
	Line     string
	Stats    Stats
}

// Verify resolves tagName, checks its signature unless skipSignature is set,
// computes the checksum of its target and compares it with the first
// checksum line of the tag message.
func (v *Verifier) Verify(ctx context.Context, tagName string, skipSignature bool) (*Verification, error) {
	log := zerolog.Nop()
	if v.Options.Logger != nil {
		log = *v.Options.Logger
	}

	tagID, tag, err := v.resolve(tagName)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("tag", tagName).Str("object", string(tagID)).Str("target", string(tag.Object)).Msg("resolved tag")

	if !skipSignature {
		if err := v.checkSignature(ctx, tagID); err != nil {
			return nil, err
		}
		log.Debug().Str("tag", tagName).Msg("signature verified")
	}

	result, err := Compute(ctx, v.DB, tag.Object, v.Options)
	if err != nil {
		return nil, err
	}
	computed := result.Hex()

	found, line, ok := FindChecksum(tag.Message)
	if !ok {
		return nil, &NoChecksumFoundError{Tag: tagName}
	}
	if err := CompareChecksum(computed, found); err != nil {
		return nil, err
	}

	log.Info().Str("tag", tagName).Str("checksum", computed).Msg("tag verified")
	return &Verification{
		TagName:  tagName,
		Tag:      tagID,
		Target:   tag.Object,
		Checksum: computed,
		Line:     line,
		Stats:    result.Stats,
	}, nil
}

func (v *Verifier) resolve(tagName string) (object.Hash, *object.TagObj, error) {
	ref, err := TagRef(tagName)
	if err != nil {
		return "", nil, &UnknownTagError{Tag: tagName, Err: err}
	}
	id, err := v.DB.ResolveRef(ref)
	if err != nil {
		if errors.Is(err, ErrRefNotFound) {
			return "", nil, &UnknownTagError{Tag: tagName}
		}
		return "", nil, fmt.Errorf("resolve tag %q: %w", tagName, err)
	}

	kind, data, err := v.DB.ReadObject(id)
	if err != nil {
		return "", nil, &ObjectLookupError{ID: id, Err: err}
	}
	if kind != object.TypeTag {
		return "", nil, &NotAnAnnotatedTagError{Tag: tagName, Object: id, Kind: kind}
	}
	tag, err := object.UnmarshalTag(data)
	if err != nil {
		return "", nil, &MalformedGraphError{ID: id, Reason: err.Error()}
	}
	return id, tag, nil
}

func (v *Verifier) checkSignature(ctx context.Context, tagID object.Hash) error {
	if v.Signatures == nil {
		return &SignatureToolError{Tag: tagID, Err: errors.New("no signature verifier configured")}
	}
	err := v.Signatures.VerifySignature(ctx, tagID)
	if err == nil {
		return nil
	}
	var toolErr *SignatureToolError
	var sigErr *SignatureVerificationError
	if errors.As(err, &toolErr) || errors.As(err, &sigErr) {
		return err
	}
	return &SignatureVerificationError{Tag: tagID, Err: err}
}

// TagRef expands a tag name to its full reference name.
func TagRef(name string) (string, error) {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, tagRefPrefix)
	if err := validateTagName(name); err != nil {
		return "", err
	}
	return tagRefPrefix + name, nil
}

func validateTagName(name string) error {
	if name == "" {
		return fmt.Errorf("tag name is required")
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return fmt.Errorf("invalid tag name %q", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("invalid tag name %q", name)
	}
	if strings.ContainsAny(name, " \t\n\r") {
		return fmt.Errorf("invalid tag name %q", name)
	}
	return nil
}
