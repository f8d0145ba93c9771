package sizeutil

import "testing"

func TestByteSizeString(t *testing.T) {
	tests := []struct {
		value    uint64
		expected string
	}{
		{0, "0 B"},
		{999, "999 B"},
		{1000, "1 KB"},
		{1999, "1 KB"},
		{1_000_000, "1 MB"},
		{1_500_000, "1 MB"},
		{1_000_000_000, "1 GB"},
		{1_000_000_000_000, "1 TB"},
		{2_500_000_000_000, "2 TB"},
	}

	for _, test := range tests {
		s := ByteSize(test.value)
		if got := s.String(); got != test.expected {
			t.Errorf("ByteSize(%d).String() = %q, expected %q", test.value, got, test.expected)
		}
	}
}

func TestByteSizeAdd(t *testing.T) {
	var s ByteSize
	s.Add(1000)
	s.Add(2000)
	if s.Uint64() != 3000 {
		t.Errorf("accumulated size = %d, expected 3000", s.Uint64())
	}
}
