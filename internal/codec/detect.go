package codec

// IsEncoded reports whether text looks like a complete serialized value. It
// checks the type tag, the length or scalar prefix and the terminator without
// decoding the payload. It never panics and returns false for truncated or
// otherwise malformed prefixes. Leading or trailing whitespace disqualifies
// the text, since PHP's unserialize rejects it as well.
func IsEncoded(text string) bool {
	if text == "N;" {
		return true
	}
	if len(text) < 4 || text[1] != ':' {
		return false
	}
	last := text[len(text)-1]
	switch text[0] {
	case 'b':
		return text == "b:0;" || text == "b:1;"
	case 'i':
		return last == ';' && isIntLexeme(text[2:len(text)-1])
	case 'd':
		return last == ';' && isFloatLexeme(text[2:len(text)-1])
	case 's':
		return last == ';' && quotedLengthMatches(text, 1)
	case 'E':
		return last == ';' && quotedLengthMatches(text, 1)
	case 'a':
		return last == '}' && uintThen(text[2:], ":{")
	case 'O', 'C':
		return last == '}' && quotedPrefixOK(text)
	case 'r', 'R':
		return last == ';' && isUint(text[2:len(text)-1])
	}
	return false
}

// quotedLengthMatches checks <tag>:<n>:"<n bytes>" followed by exactly
// suffix more bytes.
func quotedLengthMatches(text string, suffix int) bool {
	n, rest, ok := splitLength(text[2:])
	if !ok || len(rest) < 2 || rest[0] != '"' {
		return false
	}
	body := rest[1:]
	if len(body) != n+1+suffix {
		return false
	}
	return body[n] == '"'
}

// quotedPrefixOK checks O:<n>:"<class>":<count>:{ or C:<n>:"<class>":<len>:{.
func quotedPrefixOK(text string) bool {
	n, rest, ok := splitLength(text[2:])
	if !ok || len(rest) < n+3 || rest[0] != '"' || rest[n+1] != '"' || rest[n+2] != ':' {
		return false
	}
	return uintThen(rest[n+3:], ":{")
}

// splitLength parses a decimal length followed by ':' and returns the rest.
func splitLength(s string) (int, string, bool) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ':' {
			if i == 0 {
				return 0, "", false
			}
			return n, s[i+1:], true
		}
		if c < '0' || c > '9' || i >= 18 {
			return 0, "", false
		}
		n = n*10 + int(c-'0')
	}
	return 0, "", false
}

func uintThen(s, lit string) bool {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 || len(s)-i < len(lit) {
		return false
	}
	return s[i:i+len(lit)] == lit
}
