package utils

// ToCmdLine convert strings to [][]byte
func ToCmdLine(cmd ...string) [][]byte {
	args := make([][]byte, len(cmd))
	for i, s := range cmd {
		args[i] = []byte(s)
	}
	return args
}

// ToCmdLine2 convert commandName and string-type argument to [][]byte
func ToCmdLine2(commandName string, args ...string) [][]byte {
	result := make([][]byte, len(args)+1)
	result[0] = []byte(commandName)
	for i, s := range args {
		result[i+1] = []byte(s)
	}
	return result
}

// BytesEquals check whether the given bytes is equal
func BytesEquals(a []byte, b []byte) bool {
	if (a == nil && b != nil) || (a != nil && b == nil) {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ParseInt reads a base-10 int64 from raw bytes.
// Only an optional leading '-' followed by ASCII digits is accepted, overflow is rejected.
func ParseInt(b []byte) (int64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	neg := false
	if b[0] == '-' {
		neg = true
		b = b[1:]
		if len(b) == 0 {
			return 0, false
		}
	}
	// accumulate as a negative number so that math.MinInt64 fits
	var n int64
	const cutoff = -(1 << 63) / 10
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		if n < cutoff {
			return 0, false
		}
		n *= 10
		d := int64(c - '0')
		if n < -(1<<63)+d {
			return 0, false
		}
		n -= d
	}
	if neg {
		return n, true
	}
	if n == -(1 << 63) {
		return 0, false
	}
	return -n, true
}
