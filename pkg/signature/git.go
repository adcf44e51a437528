// Package signature checks the signature carried by an annotated tag, either
// by delegating to git or by verifying an SSH signature in process.
package signature

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/odvcencio/evtag/pkg/evtag"
	"github.com/odvcencio/evtag/pkg/object"
)

// Git verifies tags with `git verify-tag`, so whatever signing backend the
// user's git is configured for (gpg, ssh, x509) applies.
type Git struct {
	Program string // defaults to "git"
	Dir     string // repository directory passed with -C
	Logger  *zerolog.Logger
}

var _ evtag.SignatureVerifier = (*Git)(nil)

// VerifySignature runs `git verify-tag` on the tag object.
func (g *Git) VerifySignature(ctx context.Context, tag object.Hash) error {
	program := g.Program
	if program == "" {
		program = "git"
	}
	args := []string{"verify-tag", string(tag)}
	if strings.TrimSpace(g.Dir) != "" {
		args = append([]string{"-C", g.Dir}, args...)
	}

	log := zerolog.Nop()
	if g.Logger != nil {
		log = *g.Logger
	}
	log.Debug().Str("program", program).Strs("args", args).Msg("executing signature check")

	cmd := exec.CommandContext(ctx, program, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err == nil {
		log.Debug().Str("tag", string(tag)).Str("output", strings.TrimSpace(stderr.String())).Msg("signature accepted")
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &evtag.SignatureToolError{Tag: tag, Err: ctxErr}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return &evtag.SignatureVerificationError{Tag: tag, Detail: msg, Err: err}
	}
	return &evtag.SignatureToolError{Tag: tag, Err: fmt.Errorf("%s verify-tag: %w", program, err)}
}

// Skip accepts every tag.
type Skip struct{}

// VerifySignature always succeeds.
func (Skip) VerifySignature(context.Context, object.Hash) error { return nil }
