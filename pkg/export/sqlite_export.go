package export

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Dicklesworthstone/stories_viewer/pkg/catalog"
)

// SQLiteFile is the database name written by SQLiteExporter.Export.
const SQLiteFile = "stories.sqlite3"

// SQLiteSchemaVersion is stored in the meta table.
const SQLiteSchemaVersion = 1

const sqliteSchema = `
CREATE TABLE users (
	position    INTEGER PRIMARY KEY,
	username    TEXT NOT NULL UNIQUE,
	story_count INTEGER NOT NULL,
	seen_count  INTEGER NOT NULL
);
CREATE TABLE stories (
	user_position INTEGER NOT NULL REFERENCES users(position),
	position      INTEGER NOT NULL,
	id            INTEGER NOT NULL,
	image         TEXT NOT NULL,
	username      TEXT NOT NULL,
	seen          INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (user_position, position)
);
CREATE INDEX idx_stories_username ON stories(username);
CREATE TABLE meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// SQLiteExporter writes the catalog to a standalone SQLite database, plus the
// robot JSON outputs next to it, for querying outside the viewer.
type SQLiteExporter struct {
	Catalog *catalog.Catalog
	Seen    Seen
	// RobotOutputs also writes data/catalog.json and data/stats.json.
	RobotOutputs bool

	now func() time.Time
}

// NewSQLiteExporter creates an exporter for cat. seen may be nil.
func NewSQLiteExporter(cat *catalog.Catalog, seen Seen) *SQLiteExporter {
	return &SQLiteExporter{
		Catalog:      cat,
		Seen:         seen,
		RobotOutputs: true,
		now:          time.Now,
	}
}

// Export writes the database (replacing an existing one) to outputDir.
func (e *SQLiteExporter) Export(outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	dbPath := filepath.Join(outputDir, SQLiteFile)
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove old database: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if err := e.insertStories(db); err != nil {
		return fmt.Errorf("insert stories: %w", err)
	}
	if err := e.insertMeta(db); err != nil {
		return fmt.Errorf("insert meta: %w", err)
	}
	if _, err := db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	if e.RobotOutputs {
		if err := e.writeRobotOutputs(filepath.Join(outputDir, "data")); err != nil {
			return fmt.Errorf("write robot outputs: %w", err)
		}
	}
	return nil
}

func (e *SQLiteExporter) insertStories(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	userStmt, err := tx.Prepare(`INSERT INTO users (position, username, story_count, seen_count) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer userStmt.Close()

	storyStmt, err := tx.Prepare(`
		INSERT INTO stories (user_position, position, id, image, username, seen)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer storyStmt.Close()

	for u, user := range e.Catalog.Usernames() {
		stories, err := e.Catalog.StoriesOf(user)
		if err != nil {
			return err
		}

		seenCount := 0
		for s, st := range stories {
			seen := e.Seen[user][st.ID]
			if seen {
				seenCount++
			}
			if _, err := storyStmt.Exec(u, s, st.ID, st.Image, user, seen); err != nil {
				return fmt.Errorf("insert story %d of %s: %w", st.ID, user, err)
			}
		}

		if _, err := userStmt.Exec(u, user, len(stories), seenCount); err != nil {
			return fmt.Errorf("insert user %s: %w", user, err)
		}
	}

	return tx.Commit()
}

func (e *SQLiteExporter) insertMeta(db *sql.DB) error {
	meta := map[string]string{
		"generated_at":   e.now().UTC().Format(time.RFC3339),
		"user_count":     strconv.Itoa(e.Catalog.UserCount()),
		"story_count":    strconv.Itoa(e.Catalog.Total()),
		"schema_version": strconv.Itoa(SQLiteSchemaVersion),
	}
	for key, value := range meta {
		if _, err := db.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, key, value); err != nil {
			return fmt.Errorf("insert meta %s: %w", key, err)
		}
	}
	return nil
}

func (e *SQLiteExporter) writeRobotOutputs(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}
	if err := writeJSONFile(filepath.Join(dataDir, "catalog.json"), BuildCatalog(e.Catalog, e.now())); err != nil {
		return fmt.Errorf("write catalog.json: %w", err)
	}
	if err := writeJSONFile(filepath.Join(dataDir, "stats.json"), ComputeStats(e.Catalog)); err != nil {
		return fmt.Errorf("write stats.json: %w", err)
	}
	return nil
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteJSON(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
