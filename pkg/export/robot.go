// Package export renders the catalog for machines (robot JSON) and people
// (markdown reports).
package export

import (
	"encoding/json"
	"io"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Dicklesworthstone/stories_viewer/pkg/catalog"
	"github.com/Dicklesworthstone/stories_viewer/pkg/model"
)

// UserEntry is one user and their stories in feed order.
type UserEntry struct {
	Username string              `json:"username"`
	Stories  []model.StoryRecord `json:"stories"`
}

// CatalogSnapshot is the --robot-catalog payload.
type CatalogSnapshot struct {
	GeneratedAt time.Time   `json:"generated_at"`
	Users       []UserEntry `json:"users"`
}

// Stats is the --robot-stats payload.
type Stats struct {
	Users         int     `json:"users"`
	Stories       int     `json:"stories"`
	MeanPerUser   float64 `json:"mean_per_user"`
	StdDevPerUser float64 `json:"stddev_per_user"`
	MaxPerUser    int     `json:"max_per_user"`
}

// BuildCatalog snapshots the catalog in user order.
func BuildCatalog(cat *catalog.Catalog, generated time.Time) CatalogSnapshot {
	users := cat.Usernames()
	snap := CatalogSnapshot{
		GeneratedAt: generated.UTC(),
		Users:       make([]UserEntry, 0, len(users)),
	}
	for _, u := range users {
		stories, _ := cat.StoriesOf(u)
		snap.Users = append(snap.Users, UserEntry{Username: u, Stories: stories})
	}
	return snap
}

// ComputeStats summarizes how stories are spread across users. The standard
// deviation is the population one: the catalog is the whole population.
func ComputeStats(cat *catalog.Catalog) Stats {
	n := cat.UserCount()
	s := Stats{Users: n, Stories: cat.Total()}
	if n == 0 {
		return s
	}

	counts := make([]float64, n)
	for i := range n {
		c := cat.StoryCount(i)
		counts[i] = float64(c)
		if c > s.MaxPerUser {
			s.MaxPerUser = c
		}
	}
	mean, std := stat.PopMeanStdDev(counts, nil)
	s.MeanPerUser = round3(mean)
	s.StdDevPerUser = round3(std)
	return s
}

func round3(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*1000) / 1000
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
