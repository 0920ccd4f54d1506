// Package loader reads story feeds from disk.
package loader

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Dicklesworthstone/stories_viewer/pkg/model"
)

// ErrNoFeed is returned when a directory holds no usable feed file.
var ErrNoFeed = errors.New("no story feed file found")

// preferredNames are tried in order before any other feed file.
var preferredNames = []string{"stories.json", "stories.jsonl", "stories.yaml", "stories.yml"}

var feedExtensions = map[string]bool{
	".json":  true,
	".jsonl": true,
	".yaml":  true,
	".yml":   true,
}

// FindFeedPath locates the feed file inside dir. Canonical names win; backup
// files are skipped; empty files are only returned when nothing else exists.
func FindFeedPath(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read feed directory: %w", err)
	}

	var candidates []string
	var empty []string
	for _, entry := range entries {
		name := entry.Name()
		if !isFeedFile(name) {
			continue
		}
		full := filepath.Join(dir, name)
		info, err := os.Stat(full) // follows symlinks
		if err != nil || info.IsDir() {
			continue
		}
		if info.Size() == 0 {
			empty = append(empty, name)
			continue
		}
		candidates = append(candidates, name)
	}

	for _, preferred := range preferredNames {
		for _, name := range candidates {
			if name == preferred {
				return filepath.Join(dir, name), nil
			}
		}
	}
	if len(candidates) > 0 {
		sort.Strings(candidates)
		return filepath.Join(dir, candidates[0]), nil
	}
	if len(empty) > 0 {
		sort.Strings(empty)
		return filepath.Join(dir, empty[0]), nil
	}
	return "", fmt.Errorf("%w in %s", ErrNoFeed, dir)
}

func isFeedFile(name string) bool {
	lower := strings.ToLower(name)
	if !feedExtensions[filepath.Ext(lower)] {
		return false
	}
	if strings.Contains(lower, "backup") || strings.Contains(lower, ".bak") || strings.HasPrefix(lower, ".") {
		return false
	}
	return true
}

// ResolvePath accepts either a feed file or a directory containing one.
func ResolvePath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return FindFeedPath(path)
	}
	return path, nil
}

// LoadFromFile parses the feed at path. The format follows the extension:
// .json is {"stories": [...]} (a bare array is accepted too), .jsonl is one
// record per line, .yaml/.yml mirrors the JSON shape.
func LoadFromFile(path string) ([]model.StoryRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		return parseJSONL(data, path)
	case ".yaml", ".yml":
		var feed model.Feed
		if err := yaml.Unmarshal(data, &feed); err != nil {
			return nil, fmt.Errorf("failed to parse feed %s: %w", path, err)
		}
		return feed.Stories, nil
	default:
		return parseJSON(data, path)
	}
}

func parseJSON(data []byte, path string) ([]model.StoryRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var stories []model.StoryRecord
		if err := json.Unmarshal(trimmed, &stories); err != nil {
			return nil, fmt.Errorf("failed to parse feed %s: %w", path, err)
		}
		return stories, nil
	}
	var feed model.Feed
	if err := json.Unmarshal(trimmed, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", path, err)
	}
	return feed.Stories, nil
}

func parseJSONL(data []byte, path string) ([]model.StoryRecord, error) {
	var stories []model.StoryRecord
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec model.StoryRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse feed %s line %d: %w", path, lineNum, err)
		}
		stories = append(stories, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan feed %s: %w", path, err)
	}
	return stories, nil
}

// ResolveImages rewrites relative local image paths against baseDir, the
// directory of the feed they came from. URLs and absolute paths are kept.
func ResolveImages(stories []model.StoryRecord, baseDir string) {
	for i := range stories {
		img := strings.TrimSpace(stories[i].Image)
		if img == "" || filepath.IsAbs(img) {
			continue
		}
		if u, err := url.Parse(img); err == nil && u.Scheme != "" {
			continue
		}
		stories[i].Image = filepath.Join(baseDir, img)
	}
}
