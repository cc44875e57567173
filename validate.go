package sessioncore

// ValidateEmail reports whether s has the local@domain.tld shape: exactly one
// "@", non-empty local part, and a domain with a non-empty label before and
// after its last dot. No whitespace anywhere. Pure and total: it never fails
// and never touches the network, so rejecting malformed input never consumes
// a gateway request.
func ValidateEmail(s string) bool {
	at := -1
	lastDot := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '@':
			if at >= 0 {
				return false
			}
			at = i
		case '.':
			lastDot = i
		case ' ', '\t', '\r', '\n', '\v', '\f':
			return false
		}
	}
	if at <= 0 || at == len(s)-1 {
		return false
	}
	// domain needs label '.' label after the '@'
	if lastDot <= at+1 || lastDot == len(s)-1 {
		return false
	}
	return true
}

// ValidatePassword reports whether s meets the policy: at least 8 bytes with
// at least one lowercase letter, one uppercase letter, and one digit. Pure
// and total.
func ValidatePassword(s string) bool {
	if len(s) < 8 {
		return false
	}
	var lower, upper, digit bool
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= '0' && c <= '9':
			digit = true
		}
	}
	return lower && upper && digit
}
