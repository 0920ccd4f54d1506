package session

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ErrContentUnavailable marks a story whose image cannot be shown.
var ErrContentUnavailable = errors.New("story content unavailable")

// ProbeFunc checks whether an image reference can be shown.
type ProbeFunc func(image string) error

// ContentProber returns a ProbeFunc that accepts absolute http(s) URLs and
// existing local files. Relative paths are resolved against baseDir.
func ContentProber(baseDir string) ProbeFunc {
	return func(image string) error {
		ref := strings.TrimSpace(image)
		if ref == "" {
			return fmt.Errorf("%w: empty image reference", ErrContentUnavailable)
		}

		u, err := url.Parse(ref)
		if err == nil {
			switch strings.ToLower(u.Scheme) {
			case "http", "https":
				if u.Host == "" {
					return fmt.Errorf("%w: %q has no host", ErrContentUnavailable, ref)
				}
				return nil
			case "file":
				return statFile(u.Path)
			case "":
				// plain path, handled below
			default:
				if len(u.Scheme) > 1 {
					return fmt.Errorf("%w: unsupported scheme %q", ErrContentUnavailable, u.Scheme)
				}
				// single letter scheme: a Windows drive path
			}
		}

		path := ref
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		return statFile(path)
	}
}

func statFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrContentUnavailable, path)
	}
	return nil
}
