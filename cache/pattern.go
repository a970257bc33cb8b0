package cache

import "strings"

// MatchPattern reports whether key matches the glob pattern using the same
// rules as the Redis KEYS and SCAN MATCH commands:
//
//	*      any sequence of bytes, including none and including ':' and '/'
//	?      exactly one byte
//	[abc]  one byte from the set; [^abc] negates, [a-z] is a range
//	\x     the literal byte x
//
// Memory stores use it so that a pattern selects the same keys on every
// backend.
func MatchPattern(pattern, key string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			for len(pattern) > 1 && pattern[1] == '*' {
				pattern = pattern[1:]
			}
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(key); i++ {
				if MatchPattern(pattern[1:], key[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(key) == 0 {
				return false
			}
			pattern, key = pattern[1:], key[1:]
		case '[':
			if len(key) == 0 {
				return false
			}
			ok, rest := matchClass(pattern[1:], key[0])
			if !ok {
				return false
			}
			pattern, key = rest, key[1:]
		case '\\':
			if len(pattern) >= 2 {
				pattern = pattern[1:]
			}
			fallthrough
		default:
			if len(key) == 0 || pattern[0] != key[0] {
				return false
			}
			pattern, key = pattern[1:], key[1:]
		}
	}
	return len(key) == 0
}

// matchClass matches c against the body of a bracket expression and returns
// the pattern remaining after the closing bracket. An unterminated class
// extends to the end of the pattern.
func matchClass(class string, c byte) (bool, string) {
	negate := false
	if len(class) > 0 && class[0] == '^' {
		negate = true
		class = class[1:]
	}

	matched := false
	for len(class) > 0 {
		switch {
		case class[0] == ']':
			class = class[1:]
			if negate {
				return !matched, class
			}
			return matched, class
		case class[0] == '\\' && len(class) >= 2:
			if class[1] == c {
				matched = true
			}
			class = class[2:]
		case len(class) >= 3 && class[1] == '-':
			lo, hi := class[0], class[2]
			if lo > hi {
				lo, hi = hi, lo
			}
			if c >= lo && c <= hi {
				matched = true
			}
			class = class[3:]
		default:
			if class[0] == c {
				matched = true
			}
			class = class[1:]
		}
	}
	if negate {
		return !matched, class
	}
	return matched, class
}

// IsPattern reports whether s contains glob metacharacters.
func IsPattern(s string) bool {
	return strings.ContainsAny(s, `*?[\`)
}
