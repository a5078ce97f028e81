package library

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"shelfcast/internal/fileutil"
	"shelfcast/internal/textutil"
)

const unknownAuthor = "Unknown Author"

// Layout computes asset locations under Root.
type Layout struct {
	Root string
}

// Source pairs one remote asset with its local destination.
type Source struct {
	Kind AssetKind
	URL  string
	Dest string
}

// Dir returns {root}/{author}[/{series}] for the book.
func (l Layout) Dir(book Book) string {
	author := textutil.SanitizePathSegment(book.Author)
	if author == "" {
		author = unknownAuthor
	}
	dir := filepath.Join(l.Root, author)
	if series := textutil.SanitizePathSegment(book.Series); series != "" {
		dir = filepath.Join(dir, series)
	}
	return dir
}

// BaseName returns "[{index} - ]{title}" with the series index zero padded to
// two digits. Fractional indices keep their fraction ("02.5").
func (l Layout) BaseName(book Book) string {
	title := textutil.SanitizePathSegment(book.Title)
	if title == "" {
		title = textutil.SanitizePathSegment(book.ID)
	}
	if book.SeriesIndex > 0 {
		return formatSeriesIndex(book.SeriesIndex) + " - " + title
	}
	return title
}

// Path returns the destination file for one asset kind.
func (l Layout) Path(book Book, kind AssetKind) string {
	return filepath.Join(l.Dir(book), l.BaseName(book)+kind.Suffix())
}

// Sources lists the selected assets that have a remote URL, in transfer order.
func (l Layout) Sources(book Book, selector Selector) []Source {
	var out []Source
	for _, kind := range AllKinds {
		if !selector.Includes(kind) {
			continue
		}
		url := book.URL(kind)
		if url == "" {
			continue
		}
		out = append(out, Source{Kind: kind, URL: url, Dest: l.Path(book, kind)})
	}
	return out
}

// Downloaded reports whether the asset exists at its computed path.
func (l Layout) Downloaded(book Book, kind AssetKind) bool {
	return fileutil.Exists(l.Path(book, kind))
}

// Remove deletes every local asset of the book and prunes directories left
// empty. It returns the paths that were removed.
func (l Layout) Remove(book Book) ([]string, error) {
	var removed []string
	var errs []error
	for _, kind := range AllKinds {
		path := l.Path(book, kind)
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
			}
			continue
		}
		removed = append(removed, path)
	}
	fileutil.RemoveEmptyParents(l.Dir(book), l.Root)
	return removed, errors.Join(errs...)
}

func formatSeriesIndex(index float64) string {
	formatted := strconv.FormatFloat(index, 'f', -1, 64)
	whole, frac, _ := strings.Cut(formatted, ".")
	if len(whole) < 2 {
		whole = strings.Repeat("0", 2-len(whole)) + whole
	}
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
