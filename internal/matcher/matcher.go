// Package matcher picks the library track that best corresponds to an input record.
//
// Candidates are gated on artist similarity, ranked by title similarity and, when
// titles are effectively tied, separated by album similarity, playability and the
// order the library returned them in.
package matcher

import (
	"fmt"
	"sort"

	"github.com/desertthunder/plexlist/internal/canon"
	"github.com/desertthunder/plexlist/internal/models"
)

const (
	DefaultArtistFloor = 40
	DefaultTieEpsilon  = 2
)

// Reasons attached to unmatched results.
const (
	ReasonNoResults  = "no search results"
	ReasonNoPlayable = "matched library item has no playable media"
)

// Scored is a candidate with the scores the matcher computed for it.
type Scored struct {
	Candidate models.Candidate
	Index     int
	Title     int
	Artist    int
	Album     int
	Gated     bool
}

// Matcher scores records against search candidates. The zero value is not usable; see [New].
type Matcher struct {
	ArtistFloor int
	TieEpsilon  int
	Score       Scorer
}

// New returns a Matcher using [WeightedRatio].
func New(artistFloor, tieEpsilon int) *Matcher {
	return &Matcher{ArtistFloor: artistFloor, TieEpsilon: tieEpsilon, Score: WeightedRatio}
}

// Default returns a Matcher with the default artist floor and tie epsilon.
func Default() *Matcher {
	return New(DefaultArtistFloor, DefaultTieEpsilon)
}

// Match decides which candidate, if any, the record refers to.
//
// The result depends only on its arguments. Raising threshold can only turn a
// Matched result into Unmatched, never pick a different candidate.
func (m *Matcher) Match(record models.TrackRecord, candidates []models.Candidate, threshold int) models.MatchResult {
	result := models.MatchResult{Record: record, Status: models.StatusUnmatched}
	if len(candidates) == 0 {
		result.Reason = ReasonNoResults
		return result
	}

	ranked := m.Rank(record, candidates)
	if len(ranked) == 0 || ranked[0].Gated {
		best := 0
		for _, s := range ranked {
			best = max(best, s.Artist)
		}
		result.Reason = fmt.Sprintf("no candidate by a matching artist (best artist similarity %d)", best)
		return result
	}

	winner := ranked[0]
	result.Confidence = winner.Title
	switch {
	case winner.Title < threshold:
		result.Reason = fmt.Sprintf("best match %d below confidence threshold %d", winner.Title, threshold)
	case !winner.Candidate.HasPlayableMedia:
		result.Reason = ReasonNoPlayable
	default:
		result.Status = models.StatusMatched
		result.RatingKey = winner.Candidate.RatingKey
	}
	return result
}

// Rank scores every candidate and orders them best first.
//
// Candidates failing the artist gate are marked Gated and sorted after the rest.
func (m *Matcher) Rank(record models.TrackRecord, candidates []models.Candidate) []Scored {
	score := m.Score
	if score == nil {
		score = WeightedRatio
	}

	title := canon.Canonicalize(record.Title)
	artist := canon.Canonicalize(record.Artist)
	album := canon.Canonicalize(record.Album)

	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		s := Scored{
			Candidate: c,
			Index:     i,
			Title:     score(title, canon.Canonicalize(c.Title)),
			Artist:    score(artist, canon.Canonicalize(c.Artist)),
		}
		if album != "" {
			s.Album = score(album, canon.Canonicalize(c.Album))
		}
		s.Gated = s.Artist < m.ArtistFloor
		scored[i] = s
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Gated != scored[j].Gated {
			return !scored[i].Gated
		}
		return scored[i].Title > scored[j].Title
	})

	m.breakTie(scored, album != "")
	return scored
}

// breakTie reorders the leading candidates whose title scores are within TieEpsilon of the best.
func (m *Matcher) breakTie(scored []Scored, useAlbum bool) {
	if len(scored) < 2 || scored[0].Gated {
		return
	}

	n := 1
	for n < len(scored) && !scored[n].Gated && scored[0].Title-scored[n].Title <= m.TieEpsilon {
		n++
	}
	if n == 1 {
		return
	}

	tied := scored[:n]
	sort.SliceStable(tied, func(i, j int) bool {
		a, b := tied[i], tied[j]
		if useAlbum && a.Album != b.Album {
			return a.Album > b.Album
		}
		if a.Candidate.HasPlayableMedia != b.Candidate.HasPlayableMedia {
			return a.Candidate.HasPlayableMedia
		}
		return a.Index < b.Index
	})
}
