package matcher

import "testing"

func TestWeightedRatio(t *testing.T) {
	tc := []struct {
		a, b string
		want int
	}{
		{a: "hey jude", b: "hey jude", want: 100},
		{a: "the beatles", b: "cover band", want: 38},
		{a: "hey jude", b: "hey joe", want: 80},
		{a: "the beatles", b: "beatles", want: 90},
		{a: "under pressure", b: "pressure under", want: 95},
		{a: "jimi hendrix", b: "the jimi hendrix experience", want: 90},
		{a: "coldplay", b: "radiohead", want: 24},
		{a: "", b: "anything", want: 0},
		{a: "!!!", b: "???", want: 0},
	}

	for _, tt := range tc {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			if got := WeightedRatio(tt.a, tt.b); got != tt.want {
				t.Errorf("WeightedRatio(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := WeightedRatio(tt.b, tt.a); got != tt.want {
				t.Errorf("WeightedRatio should be symmetric: (%q, %q) = %d", tt.b, tt.a, got)
			}
		})
	}
}

func TestRatio(t *testing.T) {
	if got := Ratio("abcd", "abcd"); got != 100 {
		t.Errorf("Ratio() identical = %v", got)
	}
	if got := Ratio("", ""); got != 100 {
		t.Errorf("Ratio() empty = %v", got)
	}
	if got := Ratio("ab", "cd"); got != 0 {
		t.Errorf("Ratio() disjoint = %v", got)
	}
}

func TestPartialRatio(t *testing.T) {
	if got := PartialRatio("jude", "hey jude"); got != 100 {
		t.Errorf("PartialRatio() substring = %v", got)
	}
	if got := PartialRatio("", "abc"); got != 0 {
		t.Errorf("PartialRatio() empty = %v", got)
	}
}

func TestTokenSetRatio(t *testing.T) {
	if got := TokenSetRatio([]string{"queen"}, []string{"queen", "david", "bowie"}); got != 100 {
		t.Errorf("TokenSetRatio() subset = %v", got)
	}
	if got := TokenSetRatio([]string{"a", "b"}, []string{"b", "a"}); got != 100 {
		t.Errorf("TokenSetRatio() reordered = %v", got)
	}
}
