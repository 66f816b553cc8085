// Package domain defines the retrievable units of the system and the error
// taxonomy shared across the pipeline.
package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Collection names the two kinds of Records the system indexes.
type Collection string

const (
	// CollectionComments holds one Record per harvested Reddit comment.
	CollectionComments Collection = "comments"
	// CollectionPersonas holds one Record per generated user persona.
	CollectionPersonas Collection = "personas"
)

// Record is the atomic unit of text eligible for embedding and retrieval.
// A Record belongs to exactly one collection and its ID is stable across
// re-runs so re-ingestion is idempotent.
type Record struct {
	ID         string
	Text       string
	Collection Collection
	Comment    *CommentPayload
	Persona    *PersonaPayload
}

// CommentPayload is the structured metadata for a comment Record.
type CommentPayload struct {
	Username    string
	Subreddit   string
	Score       int
	Permalink   string
	CreatedDate string // YYYY-MM-DD
	SourcePath  string
}

// PersonaPayload is the structured metadata for a persona Record.
type PersonaPayload struct {
	Username      string
	Archetype     string
	TopSubreddits []string
	CommentCount  int
	SourcePath    string
}

// CommentRecordID derives the deterministic point ID for a comment from its
// permalink. The same permalink always maps to the same UUID, which is what
// makes upserts idempotent.
func CommentRecordID(permalink string) string {
	return uuid.NewMD5(uuid.NameSpaceURL, []byte(permalink)).String()
}

// PersonaRecordID derives the deterministic point ID for a persona from the
// username it describes.
func PersonaRecordID(username string) string {
	return uuid.NewMD5(uuid.NameSpaceOID, []byte(strings.ToLower(username))).String()
}

// Payload flattens the Record metadata into the key/value shape the vector
// store persists alongside the vector. Keys are fixed per collection.
func (r Record) Payload() map[string]any {
	switch {
	case r.Comment != nil:
		return map[string]any{
			"text":         r.Text,
			"username":     r.Comment.Username,
			"subreddit":    r.Comment.Subreddit,
			"score":        r.Comment.Score,
			"permalink":    r.Comment.Permalink,
			"created_date": r.Comment.CreatedDate,
			"source_path":  r.Comment.SourcePath,
		}
	case r.Persona != nil:
		subs := make([]any, len(r.Persona.TopSubreddits))
		for i, s := range r.Persona.TopSubreddits {
			subs[i] = s
		}
		return map[string]any{
			"text":           r.Text,
			"username":       r.Persona.Username,
			"archetype":      r.Persona.Archetype,
			"top_subreddits": subs,
			"comment_count":  r.Persona.CommentCount,
			"source_path":    r.Persona.SourcePath,
		}
	default:
		return map[string]any{"text": r.Text}
	}
}
