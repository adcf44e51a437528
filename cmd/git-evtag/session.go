package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/odvcencio/evtag/pkg/config"
	"github.com/odvcencio/evtag/pkg/evtag"
	"github.com/odvcencio/evtag/pkg/logging"
	"github.com/odvcencio/evtag/pkg/repo"
	"github.com/odvcencio/evtag/pkg/signature"
)

type globalOptions struct {
	dir        string
	configPath string
	logLevel   string
	logFormat  string
}

// session is the repository, settings and logger one command runs with.
type session struct {
	repo *repo.Repo
	cfg  *config.Config
	log  zerolog.Logger
}

func (o *globalOptions) open(cmd *cobra.Command) (*session, error) {
	r, err := repo.Open(o.dir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(o.configPath, r.RootDir)
	if err != nil {
		return nil, err
	}

	level, format := cfg.Log.Level, cfg.Log.Format
	if strings.TrimSpace(o.logLevel) != "" {
		level = o.logLevel
	}
	if strings.TrimSpace(o.logFormat) != "" {
		format = o.logFormat
	}
	log, err := logging.New(level, format, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("repository", r.Location()).
		Str("config", cfg.Source).
		Msg("opened repository")
	return &session{repo: r, cfg: cfg, log: log}, nil
}

func (s *session) options(stream io.Writer) evtag.Options {
	return evtag.Options{
		MaxDepth: s.cfg.Checksum.MaxDepth,
		Stream:   stream,
		Logger:   &s.log,
	}
}

// signatures builds the verifier for mode. An empty allowedSigners falls
// back to the configured file.
func (s *session) signatures(mode, allowedSigners string) (evtag.SignatureVerifier, error) {
	switch mode {
	case config.ModeGit:
		dir := s.repo.RootDir
		if dir == "" {
			dir = s.repo.Location()
		}
		return &signature.Git{Program: s.cfg.Signature.Program, Dir: dir, Logger: &s.log}, nil
	case config.ModeSSH:
		if allowedSigners == "" {
			allowedSigners = s.cfg.Signature.AllowedSigners
		}
		if allowedSigners == "" {
			return nil, fmt.Errorf("ssh signature mode needs --allowed-signers or signature.allowed_signers")
		}
		allowed, err := signature.LoadAllowedSigners(allowedSigners)
		if err != nil {
			return nil, err
		}
		return &signature.SSH{
			Objects:   s.repo,
			Allowed:   allowed,
			Namespace: s.cfg.Signature.Namespace,
			Logger:    &s.log,
		}, nil
	case config.ModeNone:
		return signature.Skip{}, nil
	}
	return nil, fmt.Errorf("unknown signature mode %q", mode)
}
