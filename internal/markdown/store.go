package markdown

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const personaSuffix = "_persona.md"

// Document is one markdown file eligible for ingestion.
type Document struct {
	Username string
	Path     string
	Persona  bool
}

// Store manages the data directory holding comment and persona files.
// Comment files are named <user>.md, persona files <user>_persona.md.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the data directory root.
func (s *Store) Dir() string { return s.dir }

// CommentsPath returns the comments file path for a user.
func (s *Store) CommentsPath(username string) string {
	return filepath.Join(s.dir, username+".md")
}

// PersonaPath returns the persona file path for a user.
func (s *Store) PersonaPath(username string) string {
	return filepath.Join(s.dir, username+personaSuffix)
}

// HasComments reports whether a comments file exists for the user.
func (s *Store) HasComments(username string) bool {
	_, err := os.Stat(s.CommentsPath(username))
	return err == nil
}

// HasPersona reports whether a persona file exists for the user.
func (s *Store) HasPersona(username string) bool {
	_, err := os.Stat(s.PersonaPath(username))
	return err == nil
}

// ListCommentDocuments returns all comment documents in the store, sorted by
// username. Persona and test fixtures are excluded.
func (s *Store) ListCommentDocuments() ([]Document, error) {
	return s.list(false)
}

// ListPersonaDocuments returns all persona documents in the store, sorted by
// username.
func (s *Store) ListPersonaDocuments() ([]Document, error) {
	return s.list(true)
}

func (s *Store) list(personas bool) ([]Document, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list data dir %s: %w", s.dir, err)
	}

	var docs []Document
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".md" {
			continue
		}
		name := entry.Name()
		isPersona := strings.HasSuffix(strings.ToLower(name), personaSuffix)
		if isPersona != personas {
			continue
		}
		if strings.HasSuffix(name, "_test.md") {
			continue
		}
		username := strings.TrimSuffix(name, ".md")
		if isPersona {
			username = strings.TrimSuffix(name, personaSuffix)
		}
		docs = append(docs, Document{
			Username: username,
			Path:     filepath.Join(s.dir, name),
			Persona:  isPersona,
		})
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Username < docs[j].Username })
	return docs, nil
}

// SaveComments writes the comments file for a user.
func (s *Store) SaveComments(username string, comments []Comment) error {
	f, err := os.Create(s.CommentsPath(username))
	if err != nil {
		return fmt.Errorf("create comments file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return WriteComments(f, username, comments, time.Now())
}

// SavePersona writes the persona file for a user.
func (s *Store) SavePersona(username, body string) error {
	f, err := os.Create(s.PersonaPath(username))
	if err != nil {
		return fmt.Errorf("create persona file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return WritePersona(f, username, body, time.Now())
}

// ReadDocument returns the raw contents of a document.
func (s *Store) ReadDocument(doc Document) ([]byte, error) {
	content, err := os.ReadFile(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", doc.Path, err)
	}
	return content, nil
}
