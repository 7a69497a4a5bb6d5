package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fieldsync/internal/config"
)

// CurrentName is the link to the active daemon log inside log_dir.
const CurrentName = "fieldsync.log"

const (
	pollInterval = 250 * time.Millisecond
	maxLineBytes = 1 << 20
)

// CurrentPath returns the link to the active daemon log.
func CurrentPath(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	return filepath.Join(cfg.Paths.LogDir, CurrentName)
}

// TailOptions controls a Tail call. A negative Offset reads the last Limit
// lines (all lines when Limit is zero); otherwise reading starts at Offset.
// With Follow set, Tail waits up to Wait for lines when none are available.
// A non-empty Match keeps only lines containing it.
type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
	Match  string
}

// TailResult carries the lines read and the offset to continue from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads path according to opts. A missing file yields no lines.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}
	wait := max(opts.Wait, 0)

	var result TailResult
	if opts.Offset < 0 {
		result, err = readLast(path, opts.Limit, opts.Match)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			// The file was replaced by a shorter one; start over.
			offset = 0
		}
		result, err = readFrom(path, offset, opts.Match)
	}
	if err != nil {
		return result, err
	}
	if opts.Follow && wait > 0 && len(result.Lines) == 0 {
		return waitForLines(ctx, path, result.Offset, wait, opts.Match)
	}
	return result, nil
}

// readLast keeps the final limit matching lines in a ring buffer.
func readLast(path string, limit int, match string) (TailResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return TailResult{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	var lines []string
	next := 0
	err = scanLines(file, match, func(line string) {
		if limit <= 0 || len(lines) < limit {
			lines = append(lines, line)
			return
		}
		lines[next] = line
		next = (next + 1) % limit
	})
	if err != nil {
		return TailResult{}, err
	}
	if next > 0 {
		lines = append(lines[next:], lines[:next]...)
	}

	offset, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return TailResult{}, fmt.Errorf("determine log offset: %w", err)
	}
	return TailResult{Lines: lines, Offset: offset}, nil
}

func readFrom(path string, offset int64, match string) (TailResult, error) {
	result := TailResult{Offset: offset}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return result, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return result, fmt.Errorf("seek log file: %w", err)
	}
	err = scanLines(file, match, func(line string) {
		result.Lines = append(result.Lines, line)
	})
	if err != nil {
		return result, err
	}
	if result.Offset, err = file.Seek(0, io.SeekCurrent); err != nil {
		return result, fmt.Errorf("determine log offset: %w", err)
	}
	return result, nil
}

// scanLines reads complete lines to the end of file. The scanner consumes
// the whole file, so the file offset afterwards is its end.
func scanLines(file *os.File, match string, emit func(string)) error {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Text()
		if match != "" && !strings.Contains(line, match) {
			continue
		}
		emit(line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log file: %w", err)
	}
	return nil
}

func waitForLines(ctx context.Context, path string, offset int64, wait time.Duration, match string) (TailResult, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	result := TailResult{Offset: offset}
	for {
		next, err := readFrom(path, result.Offset, match)
		if err != nil {
			return result, err
		}
		result.Offset = next.Offset
		if len(next.Lines) > 0 {
			result.Lines = next.Lines
			return result, nil
		}
		if time.Now().After(deadline) {
			return result, nil
		}
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
		}
	}
}
