// Package csvload turns CSV exports from arbitrary tools into ordered track records.
//
// Input bytes are decoded (UTF-8, UTF-16 with BOM, or Latin-1 as the last resort),
// the delimiter is sniffed, header names are resolved through an alias table and
// every row is trimmed. Rows missing an artist or title are dropped and counted.
package csvload

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/desertthunder/plexlist/internal/models"
	"github.com/desertthunder/plexlist/internal/shared"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
)

// Field is a logical column of a track listing.
type Field string

const (
	FieldArtist Field = "artist"
	FieldAlbum  Field = "album"
	FieldTitle  Field = "title"
)

// aliases maps normalized header names to the field they hold.
var aliases = map[string]Field{
	"artist":         FieldArtist,
	"artists":        FieldArtist,
	"artist name":    FieldArtist,
	"artist name(s)": FieldArtist,
	"artist names":   FieldArtist,
	"performer":      FieldArtist,
	"track":          FieldTitle,
	"track name":     FieldTitle,
	"track title":    FieldTitle,
	"title":          FieldTitle,
	"song":           FieldTitle,
	"song name":      FieldTitle,
	"song title":     FieldTitle,
	"name":           FieldTitle,
	"album":          FieldAlbum,
	"album name":     FieldAlbum,
	"album title":    FieldAlbum,
	"release":        FieldAlbum,
}

// delimiters are tried in order; earlier entries win ties.
var delimiters = []rune{',', ';', '\t', '|'}

const sampleLines = 20

// Options tune how raw bytes are interpreted.
type Options struct {
	// Encoding is an optional declared encoding: "utf-8", "latin-1"/"iso-8859-1" or "windows-1252".
	Encoding string
}

// Payload is the result of normalizing one input table.
type Payload struct {
	Records   []models.TrackRecord
	Rows      int
	Dropped   int
	Delimiter rune
	Encoding  string
	Columns   map[Field]string
}

// Parse decodes data and returns its track records in source order.
//
// Errors wrap [shared.ErrMalformedInput].
func Parse(data []byte, opts Options) (*Payload, error) {
	text, enc, err := decode(data, opts.Encoding)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: the CSV is empty", shared.ErrMalformedInput)
	}

	delim := sniffDelimiter(text)
	r := newReader(text, delim)

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read header: %v", shared.ErrMalformedInput, err)
	}

	columns, index, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	p := &Payload{Delimiter: delim, Encoding: enc, Columns: columns}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrMalformedInput, err)
		}
		p.Rows++

		line, _ := r.FieldPos(0)
		rec := models.TrackRecord{
			Artist: cell(row, index[FieldArtist]),
			Album:  cell(row, index[FieldAlbum]),
			Title:  cell(row, index[FieldTitle]),
			Line:   line,
		}
		if rec.Artist == "" || rec.Title == "" {
			p.Dropped++
			continue
		}
		p.Records = append(p.Records, rec)
	}

	if len(p.Records) == 0 {
		return nil, fmt.Errorf("%w: no valid tracks found in the CSV", shared.ErrMalformedInput)
	}
	return p, nil
}

// ParseText normalizes CSV text pasted by a user. Only trailing whitespace is trimmed so
// record line numbers match the pasted text.
func ParseText(text string) (*Payload, error) {
	return Parse([]byte(strings.TrimRightFunc(text, unicode.IsSpace)), Options{Encoding: "utf-8"})
}

// NormalizeHeader lowercases and trims a header name and turns underscores into spaces.
func NormalizeHeader(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	return strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(name, "_", " "))), " ")
}

func resolveColumns(header []string) (map[Field]string, map[Field]int, error) {
	columns := make(map[Field]string)
	index := map[Field]int{FieldArtist: -1, FieldAlbum: -1, FieldTitle: -1}

	for i, name := range header {
		field, ok := aliases[NormalizeHeader(name)]
		if !ok || index[field] >= 0 {
			continue
		}
		index[field] = i
		columns[field] = strings.TrimSpace(name)
	}

	var missing []string
	for _, f := range []Field{FieldArtist, FieldTitle} {
		if index[f] < 0 {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, nil, fmt.Errorf("%w: missing required columns: %s", shared.ErrMalformedInput, strings.Join(missing, ", "))
	}
	return columns, index, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func newReader(text string, delim rune) *csv.Reader {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r
}

// sniffDelimiter picks the delimiter giving the same column count (>1) on every sampled record.
// Comma wins whenever it is consistent. Otherwise the widest table wins and remaining ties go
// to the earlier delimiter.
func sniffDelimiter(text string) rune {
	sample := sampleText(text, sampleLines)
	if _, ok := consistentColumns(sample, ','); ok {
		return ','
	}

	best, bestCols := ',', 0
	for _, d := range delimiters {
		cols, ok := consistentColumns(sample, d)
		if ok && cols > bestCols {
			best, bestCols = d, cols
		}
	}
	if bestCols > 0 {
		return best
	}

	// Nothing consistent: fall back to whichever delimiter shows up in the header.
	header, _, _ := strings.Cut(sample, "\n")
	for _, d := range delimiters {
		if strings.ContainsRune(header, d) {
			return d
		}
	}
	return ','
}

func sampleText(text string, n int) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == n {
			break
		}
	}
	return strings.Join(lines, "\n")
}

func consistentColumns(sample string, d rune) (int, bool) {
	r := newReader(sample, d)
	cols := -1
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// The sample may cut a quoted field in half; judge by what parsed cleanly.
			break
		}
		switch {
		case cols < 0:
			cols = len(row)
		case len(row) != cols:
			return 0, false
		}
	}
	return cols, cols > 1
}

// decode converts data to a Go string. The returned name records the encoding that was used.
func decode(data []byte, hint string) (string, string, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}), bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		text, err := decodeWith(xunicode.UTF16(xunicode.BigEndian, xunicode.ExpectBOM), data)
		if err != nil {
			return "", "", fmt.Errorf("%w: invalid UTF-16 input: %v", shared.ErrMalformedInput, err)
		}
		return text, "utf-16", nil
	}

	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(hint), "_", "-")) {
	case "", "utf-8", "utf8", "utf-8-sig":
	case "latin-1", "latin1", "iso-8859-1", "iso8859-1":
		text, err := decodeWith(charmap.ISO8859_1, data)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", shared.ErrMalformedInput, err)
		}
		return text, "latin-1", nil
	case "windows-1252", "cp1252":
		text, err := decodeWith(charmap.Windows1252, data)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", shared.ErrMalformedInput, err)
		}
		return text, "windows-1252", nil
	default:
		return "", "", fmt.Errorf("%w: unsupported encoding %q", shared.ErrMalformedInput, hint)
	}

	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}

	// Latin-1 maps every byte to a rune, so this cannot fail.
	text, err := decodeWith(charmap.ISO8859_1, data)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", shared.ErrMalformedInput, err)
	}
	return text, "latin-1", nil
}

func decodeWith(enc encoding.Encoding, data []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
