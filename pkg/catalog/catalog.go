// Package catalog groups a flat list of stories by owning user.
package catalog

import (
	"errors"
	"fmt"

	"github.com/Dicklesworthstone/stories_viewer/pkg/model"
)

var (
	// ErrEmptyFeed is returned by Load when there is nothing to group.
	ErrEmptyFeed = errors.New("empty story feed")

	// ErrUnknownUser is returned when a username is not in the catalog.
	ErrUnknownUser = errors.New("unknown user")
)

// Catalog maps usernames to their ordered stories. Users keep the order of
// their first appearance in the source feed; stories keep feed order.
type Catalog struct {
	users   []string
	stories map[string][]model.StoryRecord
	total   int
}

// Load groups records by user. Every record lands in exactly one user's
// sequence and no sequence is empty.
func Load(records []model.StoryRecord) (*Catalog, error) {
	if len(records) == 0 {
		return nil, ErrEmptyFeed
	}

	c := &Catalog{
		stories: make(map[string][]model.StoryRecord),
		total:   len(records),
	}
	for _, rec := range records {
		if _, ok := c.stories[rec.User]; !ok {
			c.users = append(c.users, rec.User)
		}
		c.stories[rec.User] = append(c.stories[rec.User], rec)
	}
	return c, nil
}

// Usernames returns the users in first-seen order.
func (c *Catalog) Usernames() []string {
	out := make([]string, len(c.users))
	copy(out, c.users)
	return out
}

// StoriesOf returns the ordered stories of username.
func (c *Catalog) StoriesOf(username string) ([]model.StoryRecord, error) {
	stories, ok := c.stories[username]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUser, username)
	}
	out := make([]model.StoryRecord, len(stories))
	copy(out, stories)
	return out, nil
}

// UserCount returns the number of distinct users.
func (c *Catalog) UserCount() int {
	return len(c.users)
}

// StoryCount returns how many stories the user at userIndex has, or 0 when
// the index is out of range.
func (c *Catalog) StoryCount(userIndex int) int {
	if userIndex < 0 || userIndex >= len(c.users) {
		return 0
	}
	return len(c.stories[c.users[userIndex]])
}

// Total returns the number of records the catalog was built from.
func (c *Catalog) Total() int {
	return c.total
}

// UserAt returns the username at index i.
func (c *Catalog) UserAt(i int) (string, bool) {
	if i < 0 || i >= len(c.users) {
		return "", false
	}
	return c.users[i], true
}

// Story returns the story at (userIndex, storyIndex).
func (c *Catalog) Story(userIndex, storyIndex int) (model.StoryRecord, bool) {
	user, ok := c.UserAt(userIndex)
	if !ok {
		return model.StoryRecord{}, false
	}
	stories := c.stories[user]
	if storyIndex < 0 || storyIndex >= len(stories) {
		return model.StoryRecord{}, false
	}
	return stories[storyIndex], true
}

// IndexOf returns the position of username in the catalog.
func (c *Catalog) IndexOf(username string) (int, bool) {
	for i, u := range c.users {
		if u == username {
			return i, true
		}
	}
	return -1, false
}
