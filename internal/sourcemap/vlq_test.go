package sourcemap

import (
	"fmt"
	"testing"
)

func TestVLQEncode(t *testing.T) {
	tests := []struct {
		value    int
		expected string
	}{
		{0, "A"},
		{1, "C"},
		{-1, "D"},
		{15, "e"},
		{16, "gB"},
		{-16, "hB"},
		{31, "+B"},
		{-31, "/B"},
		{100, "oG"},
		{1000, "w+B"},
		{-1000, "x+B"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("value_%d", tt.value), func(t *testing.T) {
			if got := EncodeVLQ(tt.value); got != tt.expected {
				t.Errorf("EncodeVLQ(%d) = %q, want %q", tt.value, got, tt.expected)
			}
		})
	}
}

func TestVLQDecode(t *testing.T) {
	for _, v := range []int{0, 1, -1, 31, -32, 1024, -65535, 1 << 20} {
		enc := EncodeVLQ(v)
		got, n, err := DecodeVLQ(enc + "A")
		if err != nil {
			t.Fatalf("DecodeVLQ(%q): %v", enc, err)
		}
		if got != v || n != len(enc) {
			t.Errorf("DecodeVLQ(%q) = (%d, %d), want (%d, %d)", enc, got, n, v, len(enc))
		}
	}
}

func TestVLQDecodeErrors(t *testing.T) {
	if _, _, err := DecodeVLQ("g"); err == nil {
		t.Error("expected error for truncated value")
	}
	if _, _, err := DecodeVLQ("!"); err == nil {
		t.Error("expected error for invalid digit")
	}
	if _, err := DecodeVLQSegment("AA*A"); err == nil {
		t.Error("expected error for invalid segment")
	}
}

func TestVLQSegment(t *testing.T) {
	values, err := DecodeVLQSegment("AAgBC")
	if err != nil {
		t.Fatal(err)
	}
	want := []int{0, 0, 16, 1}
	if fmt.Sprint(values) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", values, want)
	}
}
