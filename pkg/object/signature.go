package object

import "bytes"

// Armor headers that open a signature block appended to a tag message.
var signatureMarkers = [][]byte{
	[]byte("-----BEGIN PGP SIGNATURE-----"),
	[]byte("-----BEGIN PGP MESSAGE-----"),
	[]byte("-----BEGIN SSH SIGNATURE-----"),
	[]byte("-----BEGIN SIGNED MESSAGE-----"),
}

// SSHSignatureMarker opens an armored SSHSIG block.
const SSHSignatureMarker = "-----BEGIN SSH SIGNATURE-----"

// signatureOffset returns the offset of the last line in body that opens a
// signature block, or len(body) when the body is unsigned.
func signatureOffset(body []byte) int {
	match := len(body)
	for pos := 0; pos < len(body); {
		if hasSignatureMarker(body[pos:]) {
			match = pos
		}
		eol := bytes.IndexByte(body[pos:], '\n')
		if eol < 0 {
			break
		}
		pos += eol + 1
	}
	return match
}

func hasSignatureMarker(line []byte) bool {
	for _, m := range signatureMarkers {
		if bytes.HasPrefix(line, m) {
			return true
		}
	}
	return false
}
