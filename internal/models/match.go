package models

// MatchStatus is the verdict for one record.
type MatchStatus string

const (
	StatusMatched   MatchStatus = "Matched"
	StatusUnmatched MatchStatus = "Unmatched"
)

// MatchResult pairs a record with the library track chosen for it, if any.
type MatchResult struct {
	Record     TrackRecord `json:"record"`
	Status     MatchStatus `json:"status"`
	RatingKey  string      `json:"ratingKey,omitempty"`
	Confidence int         `json:"confidence"`
	Reason     string      `json:"reason,omitempty"`
}

// Matched reports whether the result carries a usable rating key.
func (r MatchResult) Matched() bool {
	return r.Status == StatusMatched && r.RatingKey != ""
}

// ReportEntry is one line of an import report.
type ReportEntry struct {
	Artist string      `json:"artist"`
	Album  string      `json:"album"`
	Title  string      `json:"title"`
	Status MatchStatus `json:"status"`
	Reason string      `json:"reason"`
	Line   int         `json:"line"`
}
