// Package workspace loads and merges several story feeds.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Dicklesworthstone/stories_viewer/pkg/loader"
	"github.com/Dicklesworthstone/stories_viewer/pkg/model"
)

// ErrAllSourcesFailed is returned by LoadAll when no source could be loaded.
var ErrAllSourcesFailed = errors.New("no feed source could be loaded")

// LoadResult contains the result of loading a single feed source
type LoadResult struct {
	// Source is the path the feed was requested from
	Source string

	// Path is the resolved feed file
	Path string

	// Stories are the records read from the feed
	Stories []model.StoryRecord

	// Error is set if loading failed
	Error error
}

// AggregateLoader loads stories from multiple feed sources
type AggregateLoader struct {
	sources []string
	logger  *slog.Logger
}

// NewAggregateLoader creates a new aggregate loader for the given sources
func NewAggregateLoader(sources []string) *AggregateLoader {
	return &AggregateLoader{
		sources: sources,
		logger:  slog.New(slog.DiscardHandler),
	}
}

// SetLogger sets a custom logger for error reporting
func (l *AggregateLoader) SetLogger(logger *slog.Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// LoadAll loads every source in parallel and merges the stories in source
// order, so first-seen user order does not depend on which file finished
// first. Failed sources are logged but don't break the overall load unless
// every source failed, which returns ErrAllSourcesFailed with the results.
func (l *AggregateLoader) LoadAll(ctx context.Context) ([]model.StoryRecord, []LoadResult, error) {
	if len(l.sources) == 0 {
		return nil, nil, fmt.Errorf("no feed sources configured")
	}

	results, err := l.loadSourcesParallel(ctx)
	if err != nil {
		return nil, results, fmt.Errorf("fatal error during parallel loading: %w", err)
	}

	var all []model.StoryRecord
	var errs []error
	for _, result := range results {
		if result.Error != nil {
			l.logger.Warn("failed to load feed", "source", result.Source, "error", result.Error)
			errs = append(errs, result.Error)
			continue
		}
		all = append(all, result.Stories...)
	}

	if len(errs) == len(results) {
		return nil, results, fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(errs...))
	}
	return all, results, nil
}

// loadSourcesParallel loads every source concurrently using errgroup
func (l *AggregateLoader) loadSourcesParallel(ctx context.Context) ([]LoadResult, error) {
	results := make([]LoadResult, len(l.sources))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)

	for i, source := range l.sources {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				mu.Lock()
				results[i] = LoadResult{Source: source, Error: ctx.Err()}
				mu.Unlock()
				return nil // context errors are per-source, not fatal
			default:
			}

			path, stories, err := loadSingle(source)

			mu.Lock()
			results[i] = LoadResult{
				Source:  source,
				Path:    path,
				Stories: stories,
				Error:   err,
			}
			mu.Unlock()

			return nil // individual errors are captured in results
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// loadSingle reads one source. Relative image paths are made absolute
// against the feed's own directory.
func loadSingle(source string) (string, []model.StoryRecord, error) {
	path, err := loader.ResolvePath(source)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve feed %s: %w", source, err)
	}
	stories, err := loader.LoadFromFile(path)
	if err != nil {
		return path, nil, err
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return path, nil, fmt.Errorf("failed to resolve feed directory %s: %w", path, err)
	}
	loader.ResolveImages(stories, dir)
	return path, stories, nil
}

// LoadSummary summarizes an aggregate load
type LoadSummary struct {
	TotalSources      int
	SuccessfulSources int
	FailedSources     int
	TotalStories      int
	FailedSourceNames []string
	Paths             []string // resolved files of successful sources
}

// Summarize returns a summary of the load results
func Summarize(results []LoadResult) LoadSummary {
	summary := LoadSummary{
		TotalSources: len(results),
	}

	for _, result := range results {
		if result.Error != nil {
			summary.FailedSources++
			summary.FailedSourceNames = append(summary.FailedSourceNames, result.Source)
			continue
		}
		summary.SuccessfulSources++
		summary.TotalStories += len(result.Stories)
		summary.Paths = append(summary.Paths, result.Path)
	}

	return summary
}
