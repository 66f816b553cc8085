// Package records turns parsed markdown documents into the atomic retrievable
// units the pipeline embeds and indexes.
package records

import (
	"github.com/tommyshellberg/personna/internal/domain"
	"github.com/tommyshellberg/personna/internal/markdown"
)

// DefaultMinCommentLength is the body length below which a comment is dropped.
// Very short comments add noise without retrieval value.
const DefaultMinCommentLength = 10

// Extractor converts parsed documents into Records. Extraction is
// deterministic: re-parsing the same document yields the same Records with the
// same IDs.
type Extractor struct {
	MinCommentLength int
}

// NewExtractor creates an Extractor with the given minimum comment length.
// Values below 1 fall back to the default.
func NewExtractor(minCommentLength int) *Extractor {
	if minCommentLength < 1 {
		minCommentLength = DefaultMinCommentLength
	}
	return &Extractor{MinCommentLength: minCommentLength}
}

// CommentRecords maps each comment to one Record keyed by its permalink.
// Returns the records plus the number of comments dropped for being shorter
// than the minimum length.
func (e *Extractor) CommentRecords(doc markdown.Document, comments []markdown.Comment) ([]domain.Record, int) {
	records := make([]domain.Record, 0, len(comments))
	dropped := 0
	for _, c := range comments {
		if len(c.Body) < e.MinCommentLength {
			dropped++
			continue
		}
		records = append(records, domain.Record{
			ID:         domain.CommentRecordID(c.Permalink),
			Text:       c.Body,
			Collection: domain.CollectionComments,
			Comment: &domain.CommentPayload{
				Username:    doc.Username,
				Subreddit:   c.Subreddit,
				Score:       c.Score,
				Permalink:   c.Permalink,
				CreatedDate: c.CreatedDate,
				SourcePath:  doc.Path,
			},
		})
	}
	return records, dropped
}

// PersonaRecord maps a persona document to exactly one Record holding the full
// narrative. One record per user is the fixed granularity choice: personas are
// retrieved whole, not section by section. commentCount is the number of
// comments the persona was derived from, zero when unknown.
func (e *Extractor) PersonaRecord(doc markdown.Document, persona markdown.Persona, commentCount int) (domain.Record, bool) {
	username := persona.Username
	if username == "" {
		username = doc.Username
	}
	if username == "" || len(persona.Content) == 0 {
		return domain.Record{}, false
	}
	return domain.Record{
		ID:         domain.PersonaRecordID(username),
		Text:       persona.Content,
		Collection: domain.CollectionPersonas,
		Persona: &domain.PersonaPayload{
			Username:      username,
			Archetype:     persona.Archetype,
			TopSubreddits: persona.TopSubreddits,
			CommentCount:  commentCount,
			SourcePath:    doc.Path,
		},
	}, true
}
