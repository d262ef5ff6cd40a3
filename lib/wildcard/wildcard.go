package wildcard

// Pattern represents a compiled glob pattern.
// Only '?' (exactly one byte) and '*' (any run of bytes, including none) are special,
// every other byte, '[' and '\' included, matches itself.
type Pattern struct {
	src []byte
	// matchAll is set for patterns made only of '*'
	matchAll bool
}

// CompilePattern convert wildcard string to Pattern
func CompilePattern(src string) *Pattern {
	p := &Pattern{src: []byte(src), matchAll: len(src) > 0}
	for i := 0; i < len(src); i++ {
		if src[i] != '*' {
			p.matchAll = false
			break
		}
	}
	return p
}

// IsMatch returns whether the given string matches pattern
func (p *Pattern) IsMatch(s string) bool {
	if p.matchAll {
		return true
	}
	return Match([]byte(s), p.src)
}

// IsMatchBytes is IsMatch over raw bytes
func (p *Pattern) IsMatchBytes(s []byte) bool {
	if p.matchAll {
		return true
	}
	return Match(s, p.src)
}

// Match reports whether text matches pattern.
// It advances greedily and on a mismatch backtracks to the most recent '*',
// letting it absorb one more byte of text.
func Match(text, pattern []byte) bool {
	ti, pi := 0, 0
	starPi, starTi := -1, 0
	for ti < len(text) {
		if pi < len(pattern) {
			switch c := pattern[pi]; {
			case c == '*':
				starPi, starTi = pi, ti
				pi++
				continue
			case c == '?' || c == text[ti]:
				ti++
				pi++
				continue
			}
		}
		if starPi < 0 {
			return false
		}
		starTi++
		ti = starTi
		pi = starPi + 1
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}
