// Package persona turns a user's harvested comments into a structured persona
// narrative via the local generation model.
package persona

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tommyshellberg/personna/internal/contextutil"
	"github.com/tommyshellberg/personna/internal/llm"
	"github.com/tommyshellberg/personna/internal/markdown"
)

// archetypes are the Jungian archetypes the model chooses between.
var archetypes = []string{
	"The Innocent", "The Everyman", "The Hero", "The Caregiver",
	"The Explorer", "The Rebel", "The Lover", "The Creator",
	"The Jester", "The Sage", "The Magician", "The Ruler",
}

var thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)
var extraBlankRe = regexp.MustCompile(`\n\s*\n\s*\n`)

// Generator produces persona documents from comment documents.
type Generator struct {
	store     *markdown.Store
	generator llm.Generator
}

// NewGenerator wires the persona generator.
func NewGenerator(store *markdown.Store, generator llm.Generator) *Generator {
	return &Generator{store: store, generator: generator}
}

// GenerateAll generates personas for every user with a comments file,
// skipping users who already have one when skipExisting is set. Returns the
// usernames written and a map of per-user failures; one failed user never
// aborts the batch.
func (g *Generator) GenerateAll(ctx context.Context, skipExisting bool) ([]string, map[string]error) {
	logger := contextutil.LoggerFromContext(ctx)
	failures := make(map[string]error)

	docs, err := g.store.ListCommentDocuments()
	if err != nil {
		failures[""] = err
		return nil, failures
	}

	var written []string
	for _, doc := range docs {
		if skipExisting && g.store.HasPersona(doc.Username) {
			logger.DebugContext(ctx, "persona exists, skipping", "username", doc.Username)
			continue
		}
		if err := g.Generate(ctx, doc.Username); err != nil {
			logger.ErrorContext(ctx, "persona generation failed", "username", doc.Username, "error", err)
			failures[doc.Username] = err
			continue
		}
		written = append(written, doc.Username)
	}
	return written, failures
}

// Generate produces and saves the persona for a single user.
func (g *Generator) Generate(ctx context.Context, username string) error {
	logger := contextutil.LoggerFromContext(ctx)

	content, err := g.store.ReadDocument(markdown.Document{
		Username: username,
		Path:     g.store.CommentsPath(username),
	})
	if err != nil {
		return err
	}

	prompt := buildPrompt(username, string(content))
	// Large comment files need a wide context window.
	raw, err := g.generator.Generate(ctx, prompt, llm.GenerateOptions{TopP: 0.9, NumCtx: 32768})
	if err != nil {
		return fmt.Errorf("generate persona for u/%s: %w", username, err)
	}

	body := CleanResponse(raw)
	if body == "" {
		return fmt.Errorf("generate persona for u/%s: model returned empty analysis", username)
	}

	if err := g.store.SavePersona(username, body); err != nil {
		return err
	}
	logger.InfoContext(ctx, "persona generated", "username", username, "length", len(body))
	return nil
}

// CleanResponse strips reasoning-model think blocks and collapses the
// leftover blank runs.
func CleanResponse(response string) string {
	cleaned := thinkBlockRe.ReplaceAllString(response, "")
	cleaned = extraBlankRe.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

func buildPrompt(username, commentsContent string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the Reddit comments below for user u/%s and create a comprehensive user persona.\n\n", username)
	b.WriteString("REDDIT COMMENTS DATA:\n")
	b.WriteString(commentsContent)
	b.WriteString("\n\nProvide a structured analysis in the following format:\n\n")
	b.WriteString("## User Persona Summary\n")
	b.WriteString("Write 2-3 sentences describing this user's overall personality and online presence.\n\n")
	b.WriteString("## Demographics & Background\n")
	b.WriteString("- **Likely Age Range:** [age range with reasoning]\n")
	b.WriteString("- **Possible Occupation/Field:** [based on language, interests, time patterns]\n")
	b.WriteString("- **Technical Level:** [beginner/intermediate/advanced in tech topics]\n\n")
	b.WriteString("## Communication Style\n")
	b.WriteString("- **Tone:** [formal/casual/humorous/technical/etc.]\n")
	b.WriteString("- **Language Patterns:** [specific phrases, jargon, emotional expressions]\n")
	b.WriteString("- **Engagement Style:** [helpful, argumentative, supportive, etc.]\n\n")
	b.WriteString("## Interests & Topics\n")
	b.WriteString("List the main topics this user discusses and seems passionate about.\n\n")
	b.WriteString("## Jungian Archetype\n")
	fmt.Fprintf(&b, "Choose the most fitting archetype from: %s\n", strings.Join(archetypes, ", "))
	b.WriteString("Explain why this archetype fits and what it means for engagement.\n\n")
	b.WriteString("## Subreddit Activity Analysis\n")
	b.WriteString("- **Most Active Communities:** [list top subreddits with engagement patterns]\n")
	b.WriteString("- **Community Role:** [lurker/contributor/expert/newcomer in each community]\n\n")
	b.WriteString("## Engagement Recommendations\n")
	b.WriteString("- **Content Types:** [what kind of posts would appeal]\n")
	b.WriteString("- **Communication Approach:** [how to talk to them]\n")
	b.WriteString("- **Best Subreddits to Reach Similar Users:** [where to find people like them]\n\n")
	b.WriteString("Base your analysis only on the provided comments. Be specific and actionable in recommendations.\n")
	return b.String()
}
