package api

import "testing"

func TestValidateSkip(t *testing.T) {
	cases := map[int]int{-5: 0, 0: 0, 10: 10}
	for in, want := range cases {
		if got := ValidateSkip(in); got != want {
			t.Errorf("ValidateSkip(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestValidateLimit(t *testing.T) {
	cases := map[int]int{-1: 100, 0: 100, 50: 50, 5000: 1000}
	for in, want := range cases {
		if got := ValidateLimit(in); got != want {
			t.Errorf("ValidateLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
