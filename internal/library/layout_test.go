package library

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPathLayout(t *testing.T) {
	layout := Layout{Root: "/books"}
	tests := []struct {
		name string
		book Book
		kind AssetKind
		want string
	}{
		{
			name: "standalone audio",
			book: Book{ID: "1", Title: "Dune", Author: "Frank Herbert"},
			kind: KindAudio,
			want: "/books/Frank Herbert/Dune.m4b",
		},
		{
			name: "series ebook",
			book: Book{ID: "2", Title: "The Gunslinger", Author: "Stephen King", Series: "The Dark Tower", SeriesIndex: 1},
			kind: KindEbook,
			want: "/books/Stephen King/The Dark Tower/01 - The Gunslinger.epub",
		},
		{
			name: "fractional index readaloud",
			book: Book{ID: "3", Title: "Interlude", Author: "A", Series: "S", SeriesIndex: 2.5},
			kind: KindReadAloud,
			want: "/books/A/S/02.5 - Interlude (readaloud).epub",
		},
		{
			name: "three digit index",
			book: Book{ID: "4", Title: "T", Author: "A", Series: "Long", SeriesIndex: 112},
			kind: KindAudio,
			want: "/books/A/Long/112 - T.m4b",
		},
		{
			name: "sanitized segments",
			book: Book{ID: "5", Title: "What? Now: Part 1/2", Author: `AC\DC`, Series: "A|B"},
			kind: KindAudio,
			want: "/books/AC_DC/A_B/What_ Now_ Part 1_2.m4b",
		},
		{
			name: "missing author and title",
			book: Book{ID: "book-9"},
			kind: KindEbook,
			want: "/books/Unknown Author/book-9.epub",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := layout.Path(tt.book, tt.kind)
			if got != filepath.FromSlash(tt.want) {
				t.Fatalf("Path = %q, want %q", got, tt.want)
			}
			if again := layout.Path(tt.book, tt.kind); again != got {
				t.Fatalf("Path not deterministic: %q vs %q", got, again)
			}
		})
	}
}

func TestSourcesSkipsBlankURLs(t *testing.T) {
	layout := Layout{Root: "/books"}
	book := Book{
		ID:           "b",
		Title:        "T",
		Author:       "A",
		AudioURL:     "https://example.test/audio",
		EbookURL:     "   ",
		ReadAloudURL: "https://example.test/readaloud",
	}

	sources := layout.Sources(book, SelectAll())
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d: %+v", len(sources), sources)
	}
	if sources[0].Kind != KindAudio || sources[1].Kind != KindReadAloud {
		t.Fatalf("unexpected order: %+v", sources)
	}
	for _, src := range sources {
		if src.Dest != layout.Path(book, src.Kind) {
			t.Fatalf("dest %q disagrees with Path", src.Dest)
		}
	}

	only := layout.Sources(book, Selector{Ebook: true})
	if len(only) != 0 {
		t.Fatalf("blank ebook url should yield no sources, got %+v", only)
	}
}

func TestDownloadedAndRemove(t *testing.T) {
	root := t.TempDir()
	layout := Layout{Root: root}
	book := Book{ID: "b", Title: "T", Author: "A", Series: "S", SeriesIndex: 3}

	if layout.Downloaded(book, KindAudio) {
		t.Fatal("nothing downloaded yet")
	}
	path := layout.Path(book, KindAudio)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !layout.Downloaded(book, KindAudio) {
		t.Fatal("expected audio downloaded")
	}
	if layout.Downloaded(book, KindEbook) {
		t.Fatal("ebook was not written")
	}

	removed, err := layout.Remove(book)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(removed) != 1 || removed[0] != path {
		t.Fatalf("removed = %v", removed)
	}
	if _, err := os.Stat(filepath.Join(root, "A")); !os.IsNotExist(err) {
		t.Fatalf("empty author dir should be pruned, err=%v", err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Fatalf("root must survive: %v", err)
	}
}

func TestSelector(t *testing.T) {
	if !(Selector{}).Empty() {
		t.Fatal("zero selector should be empty")
	}
	s := Selector{Ebook: true}
	if s.Includes(KindAudio) || !s.Includes(KindEbook) || s.Includes(KindReadAloud) {
		t.Fatalf("unexpected includes for %+v", s)
	}
}
