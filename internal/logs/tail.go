package logs

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	maxLineBytes        = 1024 * 1024
	defaultPollInterval = 250 * time.Millisecond
)

// Filter reports whether a line should be emitted. A nil Filter accepts all.
type Filter func(line string) bool

// Contains builds a Filter that keeps lines containing every non-empty term.
func Contains(terms ...string) Filter {
	var needles []string
	for _, term := range terms {
		if term = strings.TrimSpace(term); term != "" {
			needles = append(needles, term)
		}
	}
	if len(needles) == 0 {
		return nil
	}
	return func(line string) bool {
		for _, needle := range needles {
			if !strings.Contains(line, needle) {
				return false
			}
		}
		return true
	}
}

// ForBook keeps lines tagged with the given book ID in either the console
// layout (component[id]: or book_id=id) or the JSON layout.
func ForBook(id string) Filter {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	markers := []string{
		"[" + id + "]: ",
		"book_id=" + id,
		`"book_id":"` + id + `"`,
	}
	return func(line string) bool {
		for _, marker := range markers {
			if strings.Contains(line, marker) {
				return true
			}
		}
		return false
	}
}

// All combines filters; nil entries are ignored.
func All(filters ...Filter) Filter {
	var active []Filter
	for _, f := range filters {
		if f != nil {
			active = append(active, f)
		}
	}
	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	}
	return func(line string) bool {
		for _, f := range active {
			if !f(line) {
				return false
			}
		}
		return true
	}
}

// Result holds the lines read and the offset to resume from.
type Result struct {
	Lines  []string
	Offset int64
}

// Tail returns up to limit matching lines from the end of path. A limit of 0
// returns every matching line. A missing file yields an empty result.
func Tail(path string, limit int, filter Filter) (Result, error) {
	file, err := openLog(path)
	if err != nil || file == nil {
		return Result{}, err
	}
	defer file.Close()

	var ring []string
	if limit > 0 {
		ring = make([]string, 0, limit)
	}
	offset, err := scanComplete(file, 0, func(line string) {
		if filter != nil && !filter(line) {
			return
		}
		if limit > 0 && len(ring) == limit {
			copy(ring, ring[1:])
			ring = ring[:limit-1]
		}
		ring = append(ring, line)
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Lines: ring, Offset: offset}, nil
}

// ReadFrom returns complete lines written after offset. When the file shrank
// below offset (rotation or truncation) reading restarts at the beginning.
func ReadFrom(path string, offset int64, filter Filter) (Result, error) {
	file, err := openLog(path)
	if err != nil || file == nil {
		return Result{}, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Result{}, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}

	var lines []string
	next, err := scanComplete(file, offset, func(line string) {
		if filter == nil || filter(line) {
			lines = append(lines, line)
		}
	})
	if err != nil {
		return Result{Offset: offset}, err
	}
	return Result{Lines: lines, Offset: next}, nil
}

// Follow polls path from offset and calls emit for each new matching line.
// It returns nil when ctx is cancelled.
func Follow(ctx context.Context, path string, offset int64, interval time.Duration, filter Filter, emit func(string)) error {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := ReadFrom(path, offset, filter)
		if err != nil {
			return err
		}
		for _, line := range result.Lines {
			emit(line)
		}
		offset = result.Offset

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func openLog(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	return file, nil
}

// scanComplete reads newline-terminated lines starting at offset and returns
// the offset just past the last complete line.
func scanComplete(file *os.File, offset int64, fn func(string)) (int64, error) {
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		chunk, err := reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			// Overlong line: accumulate until newline or cap.
			buf := append([]byte(nil), chunk...)
			for errors.Is(err, bufio.ErrBufferFull) && len(buf) < maxLineBytes {
				chunk, err = reader.ReadSlice('\n')
				buf = append(buf, chunk...)
			}
			chunk = buf
		}
		if err != nil && !errors.Is(err, bufio.ErrBufferFull) {
			if errors.Is(err, io.EOF) {
				return offset, nil
			}
			return offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(chunk))
		fn(string(bytes.TrimRight(chunk, "\r\n")))
	}
}
