package evtag

import (
	"strings"
)

// ChecksumPrefix names the algorithm and framing version of the checksum
// line. A change to either requires a new prefix.
const ChecksumPrefix = "Git-EVTag-v0-SHA512:"

// FormatLine renders the checksum line for a hex digest.
func FormatLine(hexDigest string) string {
	return ChecksumPrefix + " " + hexDigest
}

// FindChecksum returns the value and full text of the first line in message
// starting with ChecksumPrefix.
func FindChecksum(message string) (value, line string, ok bool) {
	for _, l := range strings.Split(message, "\n") {
		l = strings.TrimSuffix(l, "\r")
		if !strings.HasPrefix(l, ChecksumPrefix) {
			continue
		}
		return strings.TrimSpace(l[len(ChecksumPrefix):]), l, true
	}
	return "", "", false
}

// CompareChecksum compares an embedded checksum against the computed hex
// digest. The embedded value is lowercased first.
func CompareChecksum(computed, found string) error {
	if strings.ToLower(found) != computed {
		return &ChecksumMismatchError{Expected: computed, Found: found}
	}
	return nil
}

// VerifyLine checks a caller-supplied checksum line against the computed hex
// digest.
func VerifyLine(line, computed string) error {
	line = strings.TrimRight(line, " \t\r\n")
	if !strings.HasPrefix(line, ChecksumPrefix) {
		return &NoChecksumFoundError{}
	}
	return CompareChecksum(computed, strings.TrimSpace(line[len(ChecksumPrefix):]))
}
