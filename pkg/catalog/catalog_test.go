package catalog_test

import (
	"errors"
	"testing"

	"github.com/Dicklesworthstone/stories_viewer/pkg/catalog"
	"github.com/Dicklesworthstone/stories_viewer/pkg/model"
)

func TestLoad_EmptyFeed(t *testing.T) {
	_, err := catalog.Load(nil)
	if !errors.Is(err, catalog.ErrEmptyFeed) {
		t.Fatalf("Expected ErrEmptyFeed, got %v", err)
	}

	_, err = catalog.Load([]model.StoryRecord{})
	if !errors.Is(err, catalog.ErrEmptyFeed) {
		t.Fatalf("Expected ErrEmptyFeed for empty slice, got %v", err)
	}
}

func TestLoad_PreservesFirstSeenOrder(t *testing.T) {
	records := []model.StoryRecord{
		{ID: 1, Image: "a", User: "carol"},
		{ID: 2, Image: "b", User: "alice"},
		{ID: 3, Image: "c", User: "carol"},
		{ID: 4, Image: "d", User: "bob"},
		{ID: 5, Image: "e", User: "alice"},
	}

	c, err := catalog.Load(records)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	users := c.Usernames()
	want := []string{"carol", "alice", "bob"}
	if len(users) != len(want) {
		t.Fatalf("Expected %d users, got %d (%v)", len(want), len(users), users)
	}
	for i := range want {
		if users[i] != want[i] {
			t.Errorf("users[%d] = %q; want %q", i, users[i], want[i])
		}
	}

	tests := []struct {
		user string
		ids  []int
	}{
		{"carol", []int{1, 3}},
		{"alice", []int{2, 5}},
		{"bob", []int{4}},
	}
	for _, tt := range tests {
		stories, err := c.StoriesOf(tt.user)
		if err != nil {
			t.Fatalf("StoriesOf(%q): %v", tt.user, err)
		}
		if len(stories) != len(tt.ids) {
			t.Fatalf("StoriesOf(%q) returned %d stories; want %d", tt.user, len(stories), len(tt.ids))
		}
		for i, id := range tt.ids {
			if stories[i].ID != id {
				t.Errorf("StoriesOf(%q)[%d].ID = %d; want %d", tt.user, i, stories[i].ID, id)
			}
		}
	}
}

func TestLoad_EveryRecordInExactlyOneUser(t *testing.T) {
	records := []model.StoryRecord{
		{ID: 1, User: "a"}, {ID: 2, User: "b"}, {ID: 3, User: "a"},
		{ID: 4, User: "c"}, {ID: 5, User: "b"}, {ID: 6, User: "a"},
	}
	c, err := catalog.Load(records)
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[int]int)
	for _, u := range c.Usernames() {
		stories, _ := c.StoriesOf(u)
		if len(stories) == 0 {
			t.Errorf("user %q has an empty story sequence", u)
		}
		for _, s := range stories {
			seen[s.ID]++
		}
	}
	for _, rec := range records {
		if seen[rec.ID] != 1 {
			t.Errorf("record %d appears %d times; want 1", rec.ID, seen[rec.ID])
		}
	}
	if c.Total() != len(records) {
		t.Errorf("Total() = %d; want %d", c.Total(), len(records))
	}
}

func TestStoriesOf_UnknownUser(t *testing.T) {
	c, _ := catalog.Load([]model.StoryRecord{{ID: 1, User: "alice"}})

	_, err := c.StoriesOf("mallory")
	if !errors.Is(err, catalog.ErrUnknownUser) {
		t.Errorf("Expected ErrUnknownUser, got %v", err)
	}
}

func TestCatalog_ReturnedSlicesAreCopies(t *testing.T) {
	c, _ := catalog.Load([]model.StoryRecord{{ID: 1, User: "alice"}, {ID: 2, User: "bob"}})

	users := c.Usernames()
	users[0] = "eve"
	if u, _ := c.UserAt(0); u != "alice" {
		t.Errorf("Usernames() leaked internal state, UserAt(0) = %q", u)
	}

	stories, _ := c.StoriesOf("alice")
	stories[0].ID = 99
	if s, _ := c.Story(0, 0); s.ID != 1 {
		t.Errorf("StoriesOf() leaked internal state, Story(0,0).ID = %d", s.ID)
	}
}

func TestCatalog_IndexAccessors(t *testing.T) {
	c, _ := catalog.Load([]model.StoryRecord{
		{ID: 1, User: "alice"}, {ID: 2, User: "alice"}, {ID: 3, User: "bob"},
	})

	if c.UserCount() != 2 {
		t.Errorf("UserCount() = %d; want 2", c.UserCount())
	}

	tests := []struct {
		user, want int
	}{
		{0, 2},
		{1, 1},
		{2, 0},
		{-1, 0},
	}
	for _, tt := range tests {
		if got := c.StoryCount(tt.user); got != tt.want {
			t.Errorf("StoryCount(%d) = %d; want %d", tt.user, got, tt.want)
		}
	}

	if _, ok := c.Story(0, 2); ok {
		t.Error("Story(0, 2) should be out of range")
	}
	if s, ok := c.Story(1, 0); !ok || s.ID != 3 {
		t.Errorf("Story(1, 0) = %+v, %v; want ID 3", s, ok)
	}
	if i, ok := c.IndexOf("bob"); !ok || i != 1 {
		t.Errorf("IndexOf(bob) = %d, %v; want 1, true", i, ok)
	}
	if _, ok := c.IndexOf("zed"); ok {
		t.Error("IndexOf(zed) should fail")
	}
}
