package security

import "crypto/subtle"

// CSRFTokenEqual performs constant-time comparison of the X-CSRF-TOKEN header
// value with the csrf claim embedded in the refresh token. Returns true only
// if both are non-empty and equal.
func CSRFTokenEqual(header, claim string) bool {
	if header == "" || claim == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(claim)) == 1
}
