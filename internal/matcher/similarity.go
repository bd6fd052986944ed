package matcher

import (
	"math"
	"slices"
	"strings"

	"github.com/desertthunder/plexlist/internal/canon"
	"github.com/hbollon/go-edlib"
)

// Scorer returns the similarity of two canonical strings in [0,100].
type Scorer func(a, b string) int

// WeightedRatio is a token-order-insensitive blend of full, partial, token-sort and token-set ratios.
//
// Similar-length strings are compared whole; when one string is much longer the partial
// ratios take over, scaled down so a short substring hit never scores like an exact match.
func WeightedRatio(a, b string) int {
	ta, tb := canon.Tokens(a), canon.Tokens(b)
	a, b = strings.Join(ta, " "), strings.Join(tb, " ")
	if a == "" || b == "" {
		return 0
	}

	la, lb := float64(len([]rune(a))), float64(len([]rune(b)))
	lenRatio := math.Max(la, lb) / math.Min(la, lb)

	best := Ratio(a, b)
	sortedA, sortedB := sortedJoin(ta), sortedJoin(tb)

	if lenRatio < 1.5 {
		best = math.Max(best, Ratio(sortedA, sortedB)*0.95)
		best = math.Max(best, TokenSetRatio(ta, tb)*0.95)
		return clamp(best)
	}

	scale := 0.9
	if lenRatio >= 8 {
		scale = 0.6
	}
	best = math.Max(best, PartialRatio(a, b)*scale)
	best = math.Max(best, PartialRatio(sortedA, sortedB)*scale*0.95)
	best = math.Max(best, TokenSetRatio(ta, tb)*scale*0.95)
	return clamp(best)
}

// Ratio is the normalized indel similarity of a and b: 200*LCS/(len(a)+len(b)).
func Ratio(a, b string) float64 {
	total := len([]rune(a)) + len([]rune(b))
	if total == 0 {
		return 100
	}
	return 200 * float64(edlib.LCS(a, b)) / float64(total)
}

// PartialRatio is the best [Ratio] of the shorter string against every equally long window of the longer one.
func PartialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(ra) == 0 {
		return 0
	}

	short := string(ra)
	best := 0.0
	for i := 0; i+len(ra) <= len(rb); i++ {
		if r := Ratio(short, string(rb[i:i+len(ra)])); r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

// TokenSetRatio compares the shared tokens of a and b against each side's remainder.
// One token set containing the other scores 100.
func TokenSetRatio(a, b []string) float64 {
	setA, setB := toSet(a), toSet(b)
	var common, onlyA, onlyB []string
	for t := range setA {
		if _, ok := setB[t]; ok {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if _, ok := setA[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	if len(common) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}

	sect := sortedJoin(common)
	withA := joinNonEmpty(sect, sortedJoin(onlyA))
	withB := joinNonEmpty(sect, sortedJoin(onlyB))

	best := Ratio(withA, withB)
	if sect != "" {
		best = math.Max(best, Ratio(sect, withA))
		best = math.Max(best, Ratio(sect, withB))
	}
	return best
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func sortedJoin(tokens []string) string {
	sorted := slices.Clone(tokens)
	slices.Sort(sorted)
	return strings.Join(sorted, " ")
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

func clamp(f float64) int {
	n := int(math.Round(f))
	return max(0, min(100, n))
}
