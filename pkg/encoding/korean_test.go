package encoding

import (
	"bytes"
	"testing"
)

func TestEUCKRRoundTrip(t *testing.T) {
	tests := []string{
		"wall.bmp",
		`data\texture\텍스쳐\wall.bmp`,
		"",
	}
	for _, s := range tests {
		encoded := UTF8ToEUCKR(s)
		if got := EUCKRToUTF8(encoded); got != s {
			t.Errorf("round trip of %q = %q", s, got)
		}
	}
}

func TestEUCKRBytes(t *testing.T) {
	// 텍 is 0xC5 0xD8 in KS X 1001.
	got := UTF8ToEUCKR("텍")
	if !bytes.Equal(got, []byte{0xC5, 0xD8}) {
		t.Errorf("UTF8ToEUCKR(텍) = % x", got)
	}
}

func TestFixedString(t *testing.T) {
	field := UTF8ToFixedString("텍스쳐.bmp", 40)
	if len(field) != 40 {
		t.Fatalf("field length = %d, want 40", len(field))
	}
	if field[39] != 0 {
		t.Error("field is not NUL padded")
	}
	if got := FixedStringToUTF8(field); got != "텍스쳐.bmp" {
		t.Errorf("FixedStringToUTF8 = %q", got)
	}

	// No terminator: the whole field is used.
	if got := FixedStringToUTF8([]byte("abcd")); got != "abcd" {
		t.Errorf("FixedStringToUTF8(abcd) = %q", got)
	}

	cut := UTF8ToFixedString("abcdefgh", 4)
	if string(cut) != "abcd" {
		t.Errorf("UTF8ToFixedString cut = %q", cut)
	}
}
