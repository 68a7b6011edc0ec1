package discovery

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

const bom = "\ufeff"

// FileSource parses the backend list from a UTF-8 text file, one URL per
// line, re-reading it only when its modification time advances. A missing
// file or a read error yields an empty list rather than an error, since a
// discovery source going briefly unavailable should not take down the
// whole registry.
type FileSource struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	cached  []string
	modTime time.Time
}

// NewFileSource creates a FileSource reading from path.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	return &FileSource{
		path:   path,
		logger: logger,
		cached: []string{},
	}
}

func (f *FileSource) List(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, err := os.Stat(f.path)
	if err != nil {
		f.logger.Warn("server file does not exist, using empty server list", slog.String("path", f.path))
		f.cached = []string{}
		f.modTime = time.Time{}
		return append([]string{}, f.cached...), nil
	}

	if !info.ModTime().After(f.modTime) {
		return append([]string{}, f.cached...), nil
	}

	servers, err := readServerFile(f.path)
	if err != nil {
		f.logger.Error("error reading server file", slog.String("path", f.path), slog.String("error", err.Error()))
		f.cached = []string{}
		f.modTime = time.Time{}
		return append([]string{}, f.cached...), nil
	}

	f.logger.Info("server file reloaded", slog.String("path", f.path), slog.Int("count", len(servers)))
	f.cached = servers
	f.modTime = info.ModTime()

	return append([]string{}, f.cached...), nil
}

func (f *FileSource) Name() string { return "file:" + f.path }

func (f *FileSource) SupportsDynamic() bool { return true }

// readServerFile parses one URL per line, stripping a leading BOM and
// surrounding whitespace, and skipping blank lines and lines starting
// with '#'. Order and duplicates are preserved.
func readServerFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var servers []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimPrefix(scanner.Text(), bom)
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		servers = append(servers, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return servers, nil
}
