package token

// minPlausibleLen is the shortest contiguous run that can be an opaque
// bearer token. Short status codes and truncated UUIDs fall under it.
const minPlausibleLen = 20

// Plausible reports whether s contains a contiguous run of at least 20
// characters drawn from [A-Za-z0-9_.-]. It is the gate every capture path
// runs before treating a string as a token.
func Plausible(s string) bool {
	run := 0
	for i := 0; i < len(s); i++ {
		if isTokenByte(s[i]) {
			run++
			if run >= minPlausibleLen {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

func isTokenByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z':
		return true
	case b >= 'A' && b <= 'Z':
		return true
	case b >= '0' && b <= '9':
		return true
	case b == '_' || b == '-' || b == '.':
		return true
	}
	return false
}
