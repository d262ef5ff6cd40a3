package utils

import "testing"

func TestParseInt(t *testing.T) {
	valid := map[string]int64{
		"0":                    0,
		"42":                   42,
		"-7":                   -7,
		"007":                  7,
		"9223372036854775807":  9223372036854775807,
		"-9223372036854775808": -9223372036854775808,
	}
	for s, expected := range valid {
		n, ok := ParseInt([]byte(s))
		if !ok {
			t.Errorf("%q should be parsed", s)
			continue
		}
		if n != expected {
			t.Errorf("%q: expected %d, actually %d", s, expected, n)
		}
	}
	invalid := []string{"", "-", "+1", " 1", "1 ", "1a", "0x10", "1.5", "9223372036854775808", "-9223372036854775809"}
	for _, s := range invalid {
		if _, ok := ParseInt([]byte(s)); ok {
			t.Errorf("%q should be rejected", s)
		}
	}
}

func TestBytesEquals(t *testing.T) {
	if !BytesEquals([]byte("abc"), []byte("abc")) {
		t.Error("expect true actually false")
	}
	if BytesEquals([]byte("abc"), []byte("abd")) {
		t.Error("expect false actually true")
	}
	if BytesEquals(nil, []byte{}) {
		t.Error("nil and empty slice should differ")
	}
}
