package matcher

import (
	"reflect"
	"strings"
	"testing"

	"github.com/desertthunder/plexlist/internal/models"
)

func candidate(key, artist, album, title string) models.Candidate {
	return models.Candidate{RatingKey: key, Artist: artist, Album: album, Title: title, HasPlayableMedia: true}
}

// fixedScores returns a scorer looking up canonical pairs, defaulting to 100 for equal strings and 0 otherwise.
func fixedScores(table map[[2]string]int) Scorer {
	return func(a, b string) int {
		if v, ok := table[[2]string{a, b}]; ok {
			return v
		}
		if a == b {
			return 100
		}
		return 0
	}
}

func TestMatch(t *testing.T) {
	record := models.TrackRecord{Artist: "The Beatles", Title: "Let It Be", Line: 2}

	t.Run("no candidates", func(t *testing.T) {
		got := Default().Match(record, nil, 70)
		if got.Status != models.StatusUnmatched || got.Reason != ReasonNoResults {
			t.Errorf("got %+v", got)
		}
		if got.Record != record {
			t.Error("result should carry the record")
		}
	})

	t.Run("exact match", func(t *testing.T) {
		got := Default().Match(record, []models.Candidate{candidate("1", "The Beatles", "Let It Be", "Let It Be")}, 70)
		if got.Status != models.StatusMatched || got.RatingKey != "1" || got.Confidence != 100 || got.Reason != "" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("remaster suffix still matches", func(t *testing.T) {
		rec := models.TrackRecord{Artist: "The Beatles", Title: "Hey Jude (Remastered 2015)"}
		got := Default().Match(rec, []models.Candidate{candidate("7", "The Beatles", "", "Hey Jude")}, 90)
		if got.Status != models.StatusMatched || got.Confidence < 90 {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("artist gate excludes cover band", func(t *testing.T) {
		candidates := []models.Candidate{
			candidate("beatles", "The Beatles", "", "Let It Be"),
			// The cover's title scores marginally higher than the original's.
			candidate("cover", "Cover Band", "", "Let It Be!"),
		}
		m := Default()
		m.Score = func(a, b string) int {
			switch {
			case a == "the beatles" && b == "the beatles":
				return 100
			case a == "the beatles" && b == "cover band":
				return 38
			case b == "let it be":
				return 95
			case b == "let it be!":
				return 97
			}
			return 0
		}

		got := m.Match(record, candidates, 70)
		if got.RatingKey != "beatles" {
			t.Errorf("expected the Beatles candidate, got %+v", got)
		}

		ranked := m.Rank(record, candidates)
		if ranked[len(ranked)-1].Candidate.RatingKey != "cover" || !ranked[len(ranked)-1].Gated {
			t.Errorf("cover band should be gated and ranked last: %+v", ranked)
		}
	})

	t.Run("artist gate with real scorer", func(t *testing.T) {
		got := Default().Match(record, []models.Candidate{candidate("cover", "Cover Band", "", "Let It Be")}, 70)
		if got.Status != models.StatusUnmatched || !strings.Contains(got.Reason, "matching artist") {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("below threshold", func(t *testing.T) {
		m := Default()
		m.Score = fixedScores(map[[2]string]int{{"let it be", "let it go"}: 65})
		got := m.Match(record, []models.Candidate{candidate("1", "The Beatles", "", "Let It Go")}, 70)
		if got.Status != models.StatusUnmatched || got.RatingKey != "" {
			t.Fatalf("got %+v", got)
		}
		if got.Reason != "best match 65 below confidence threshold 70" {
			t.Errorf("reason = %q", got.Reason)
		}
		if got.Confidence != 65 {
			t.Errorf("confidence = %d, want 65", got.Confidence)
		}
	})

	t.Run("no playable media", func(t *testing.T) {
		c := candidate("1", "The Beatles", "", "Let It Be")
		c.HasPlayableMedia = false
		got := Default().Match(record, []models.Candidate{c}, 70)
		if got.Status != models.StatusUnmatched || got.Reason != ReasonNoPlayable {
			t.Errorf("got %+v", got)
		}
	})
}

func TestTieBreak(t *testing.T) {
	record := models.TrackRecord{Artist: "Nirvana", Album: "MTV Unplugged in New York", Title: "Lake of Fire"}
	scores := map[[2]string]int{
		{"lake of fire", "lake of fire"}:                           100,
		{"lake of fire", "lake of fire!"}:                          99,
		{"mtv unplugged in new york", "mtv unplugged in new york"}: 100,
		{"mtv unplugged in new york", "live at reading"}:           20,
	}

	t.Run("album breaks a near tie", func(t *testing.T) {
		m := Default()
		m.Score = fixedScores(scores)
		candidates := []models.Candidate{
			candidate("reading", "Nirvana", "Live at Reading", "Lake of Fire"),
			candidate("unplugged", "Nirvana", "MTV Unplugged in New York", "Lake of Fire!"),
		}
		got := m.Match(record, candidates, 70)
		if got.RatingKey != "unplugged" || got.Confidence != 99 {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("playable media breaks an album tie", func(t *testing.T) {
		m := Default()
		m.Score = fixedScores(scores)
		first := candidate("a", "Nirvana", "Live at Reading", "Lake of Fire")
		first.HasPlayableMedia = false
		second := candidate("b", "Nirvana", "Live at Reading", "Lake of Fire")
		got := m.Match(record, []models.Candidate{first, second}, 70)
		if got.RatingKey != "b" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("search order breaks a full tie", func(t *testing.T) {
		m := Default()
		m.Score = fixedScores(scores)
		rec := record
		rec.Album = ""
		got := m.Match(rec, []models.Candidate{
			candidate("first", "Nirvana", "X", "Lake of Fire"),
			candidate("second", "Nirvana", "Y", "Lake of Fire"),
		}, 70)
		if got.RatingKey != "first" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("outside epsilon the best title wins", func(t *testing.T) {
		m := Default()
		m.Score = fixedScores(map[[2]string]int{
			{"lake of fire", "lake of fire"}:  100,
			{"lake of fire", "lake of fire!"}: 90,
		})
		got := m.Match(record, []models.Candidate{
			candidate("worse", "Nirvana", "MTV Unplugged in New York", "Lake of Fire!"),
			candidate("better", "Nirvana", "Other", "Lake of Fire"),
		}, 70)
		if got.RatingKey != "better" {
			t.Errorf("got %+v", got)
		}
	})
}

func TestMatchProperties(t *testing.T) {
	record := models.TrackRecord{Artist: "Queen", Album: "A Night at the Opera", Title: "Bohemian Rhapsody (Remastered 2011)"}
	candidates := []models.Candidate{
		candidate("1", "Queen", "Greatest Hits", "Bohemian Rhapsody"),
		candidate("2", "Queen", "A Night at the Opera", "Bohemian Rhapsody - Remastered 2011"),
		candidate("3", "Panic! At The Disco", "", "Bohemian Rhapsody"),
		candidate("4", "Queen", "Live Aid", "Bohemian Rhapsody / Radio Ga Ga"),
	}
	m := Default()

	t.Run("deterministic", func(t *testing.T) {
		first := m.Match(record, candidates, 70)
		for range 20 {
			if got := m.Match(record, candidates, 70); !reflect.DeepEqual(got, first) {
				t.Fatalf("Match() not deterministic: %+v vs %+v", got, first)
			}
		}
		if first.RatingKey != "2" {
			t.Errorf("expected album tie-break to pick 2, got %+v", first)
		}
	})

	t.Run("threshold monotonic", func(t *testing.T) {
		matchedAt := -1
		for threshold := 100; threshold >= 0; threshold-- {
			got := m.Match(record, candidates, threshold)
			if got.Status == models.StatusMatched && matchedAt < 0 {
				matchedAt = threshold
			}
			if matchedAt >= 0 && got.Status != models.StatusMatched {
				t.Fatalf("matched at %d but not at lower threshold %d", matchedAt, threshold)
			}
		}
		if matchedAt < 0 {
			t.Fatal("expected a match at some threshold")
		}
	})
}
