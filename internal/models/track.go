package models

import "fmt"

// TrackRecord is one normalized input row.
//
// Line is the 1-based line of the row in the source text, with the header on line 1.
// Records are compared by position, never by content: two rows naming the same song are distinct.
type TrackRecord struct {
	Artist string `json:"artist"`
	Album  string `json:"album,omitempty"`
	Title  string `json:"title"`
	Line   int    `json:"line"`
}

// String renders the record as "Artist - Title".
func (r TrackRecord) String() string {
	return fmt.Sprintf("%s - %s", r.Artist, r.Title)
}

// Candidate is a library track returned by a catalog search.
type Candidate struct {
	RatingKey        string `json:"ratingKey"`
	Artist           string `json:"artist"`
	Album            string `json:"album,omitempty"`
	Title            string `json:"title"`
	HasPlayableMedia bool   `json:"hasPlayableMedia"`
}

// SearchQuery is what the sync engine asks the catalog for one record.
//
// Album is a hint: implementations may ignore it.
type SearchQuery struct {
	Artist string
	Title  string
	Album  string
}

// Library is a music library section on the media server.
type Library struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Agent string `json:"agent,omitempty"`
}

// PlaylistHandle identifies a playlist on the media server.
//
// A handle with an empty ID refers to a playlist that does not exist yet;
// it is created by the first write.
type PlaylistHandle struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Exists reports whether the playlist is present on the server.
func (h PlaylistHandle) Exists() bool {
	return h.ID != ""
}
