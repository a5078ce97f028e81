package library

import "strings"

// Book is the subset of remote catalog metadata needed to place and fetch a
// book's assets.
type Book struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Author       string  `json:"author"`
	Series       string  `json:"series,omitempty"`
	SeriesIndex  float64 `json:"series_index,omitempty"`
	AudioURL     string  `json:"audio_url,omitempty"`
	EbookURL     string  `json:"ebook_url,omitempty"`
	ReadAloudURL string  `json:"readaloud_url,omitempty"`
}

// URL returns the remote location of the given asset kind, trimmed.
func (b Book) URL(kind AssetKind) string {
	switch kind {
	case KindAudio:
		return strings.TrimSpace(b.AudioURL)
	case KindEbook:
		return strings.TrimSpace(b.EbookURL)
	case KindReadAloud:
		return strings.TrimSpace(b.ReadAloudURL)
	default:
		return ""
	}
}

// AssetKind identifies one downloadable file of a book.
type AssetKind string

const (
	KindAudio     AssetKind = "audio"
	KindEbook     AssetKind = "ebook"
	KindReadAloud AssetKind = "readaloud"
)

// AllKinds lists asset kinds in transfer order.
var AllKinds = []AssetKind{KindAudio, KindEbook, KindReadAloud}

// Suffix returns the file name suffix appended to a book's base name.
func (k AssetKind) Suffix() string {
	switch k {
	case KindAudio:
		return ".m4b"
	case KindEbook:
		return ".epub"
	case KindReadAloud:
		return " (readaloud).epub"
	default:
		return ""
	}
}

// Selector chooses which asset kinds to acquire.
type Selector struct {
	Audio     bool
	Ebook     bool
	ReadAloud bool
}

// SelectAll requests every asset kind.
func SelectAll() Selector {
	return Selector{Audio: true, Ebook: true, ReadAloud: true}
}

// Includes reports whether kind is selected.
func (s Selector) Includes(kind AssetKind) bool {
	switch kind {
	case KindAudio:
		return s.Audio
	case KindEbook:
		return s.Ebook
	case KindReadAloud:
		return s.ReadAloud
	default:
		return false
	}
}

// Empty reports whether nothing is selected.
func (s Selector) Empty() bool {
	return !s.Audio && !s.Ebook && !s.ReadAloud
}
