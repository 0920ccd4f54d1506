// Package model holds the data shared by every layer of the stories viewer.
package model

import "fmt"

// StoryRecord is one viewable image item belonging to a user.
// Records are immutable once loaded.
type StoryRecord struct {
	ID    int    `json:"id" yaml:"id"`
	Image string `json:"image" yaml:"image"`
	User  string `json:"user" yaml:"user"`
}

// Label returns a short human readable identifier ("Story 3").
func (s StoryRecord) Label() string {
	return fmt.Sprintf("Story %d", s.ID)
}

// Feed is the on-disk shape of a stories feed.
type Feed struct {
	Stories []StoryRecord `json:"stories" yaml:"stories"`
}

// FallbackStories returns the fixed feed substituted when the real feed
// cannot be loaded or is empty.
func FallbackStories() []StoryRecord {
	return []StoryRecord{
		{ID: 1, Image: "https://picsum.photos/400/800?random=1", User: "user1"},
		{ID: 2, Image: "https://picsum.photos/400/800?random=2", User: "user2"},
		{ID: 3, Image: "https://picsum.photos/400/800?random=3", User: "user3"},
	}
}
