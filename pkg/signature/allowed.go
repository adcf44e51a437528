package signature

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// AllowedSigner is one entry of an allowed signers file.
type AllowedSigner struct {
	Principals []string
	Namespaces []string // empty allows every namespace
	Key        ssh.PublicKey
}

func (a AllowedSigner) allowsNamespace(ns string) bool {
	if len(a.Namespaces) == 0 {
		return true
	}
	for _, n := range a.Namespaces {
		if n == ns {
			return true
		}
	}
	return false
}

// LoadAllowedSigners reads an allowed signers file. A leading "~/" is
// expanded to the home directory.
func LoadAllowedSigners(path string) ([]AllowedSigner, error) {
	resolved, err := expandUserPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("read allowed signers %q: %w", resolved, err)
	}
	signers, err := ParseAllowedSigners(data)
	if err != nil {
		return nil, fmt.Errorf("parse allowed signers %q: %w", resolved, err)
	}
	return signers, nil
}

// ParseAllowedSigners parses the ssh-keygen allowed signers format:
//
//	principals [options] keytype base64-key [comment]
//
// Lines that start directly with a key type are accepted as
// authorized_keys entries with no principals. Certificate authority
// entries are skipped.
func ParseAllowedSigners(data []byte) ([]AllowedSigner, error) {
	var out []AllowedSigner
	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var principals []string
		if !looksLikeKeyType(line) {
			first, rest, ok := strings.Cut(line, " ")
			if !ok {
				return nil, fmt.Errorf("line %d: missing key", lineNo)
			}
			principals = strings.Split(first, ",")
			line = strings.TrimSpace(rest)
		}

		key, _, options, _, err := ssh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		signer := AllowedSigner{Principals: principals, Key: key}
		skip := false
		for _, opt := range options {
			name, value, _ := strings.Cut(opt, "=")
			switch strings.ToLower(name) {
			case "cert-authority":
				skip = true
			case "namespaces":
				for _, ns := range strings.Split(strings.Trim(value, `"`), ",") {
					if ns = strings.TrimSpace(ns); ns != "" {
						signer.Namespaces = append(signer.Namespaces, ns)
					}
				}
			}
		}
		if !skip {
			out = append(out, signer)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func looksLikeKeyType(line string) bool {
	for _, p := range []string{"ssh-", "ecdsa-sha2-", "sk-ssh-", "sk-ecdsa-"} {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

func expandUserPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
