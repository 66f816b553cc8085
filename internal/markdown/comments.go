// Package markdown reads and writes the on-disk research documents: one
// comments file per harvested user and one persona file per analyzed user.
// Comment files are machine-written in a fixed layout and parsed with anchored
// expressions; persona files are free-form markdown parsed via goldmark.
package markdown

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Comment is one parsed comment entry from a comments file.
type Comment struct {
	Body        string
	Score       int
	Subreddit   string
	Permalink   string
	CreatedDate string // YYYY-MM-DD
}

var (
	subredditHeaderRe = regexp.MustCompile(`(?m)^## r/(\w+)`)
	commentBlockRe    = regexp.MustCompile(
		`(?s)### Comment \(Score: (-?\d+)\)\s*\n` +
			`\*\*Date:\*\* (\d{4}-\d{2}-\d{2})\s*\n` +
			`\*\*Link:\*\* \[View on Reddit\]\((https?://[^)]+)\)\s*\n\n(.*)`)
)

// ParseComments parses a comments markdown file into its comment entries.
// Blocks that do not match the expected layout are skipped rather than
// failing the whole document.
func ParseComments(content []byte) []Comment {
	text := string(content)

	headers := subredditHeaderRe.FindAllStringSubmatchIndex(text, -1)
	var comments []Comment

	for i, header := range headers {
		subreddit := text[header[2]:header[3]]

		sectionEnd := len(text)
		if i+1 < len(headers) {
			sectionEnd = headers[i+1][0]
		}
		section := text[header[1]:sectionEnd]

		for _, block := range strings.Split(section, "\n---") {
			m := commentBlockRe.FindStringSubmatch(block)
			if m == nil {
				continue
			}
			score, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			body := strings.TrimSpace(m[4])
			if body == "" {
				continue
			}
			comments = append(comments, Comment{
				Body:        body,
				Score:       score,
				Subreddit:   subreddit,
				Permalink:   m[3],
				CreatedDate: m[2],
			})
		}
	}
	return comments
}

// WriteComments renders a comments file in the fixed layout ParseComments
// reads back. Comments are grouped by subreddit in first-seen order.
func WriteComments(w io.Writer, username string, comments []Comment, now time.Time) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Reddit Comments Analysis: u/%s\n\n", username)
	fmt.Fprintf(&b, "**Generated:** %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "**Total Comments:** %d\n\n", len(comments))

	var order []string
	groups := make(map[string][]Comment)
	for _, c := range comments {
		if _, ok := groups[c.Subreddit]; !ok {
			order = append(order, c.Subreddit)
		}
		groups[c.Subreddit] = append(groups[c.Subreddit], c)
	}

	for _, subreddit := range order {
		group := groups[subreddit]
		fmt.Fprintf(&b, "## r/%s (%d comments)\n\n", subreddit, len(group))
		for _, c := range group {
			fmt.Fprintf(&b, "### Comment (Score: %d)\n", c.Score)
			fmt.Fprintf(&b, "**Date:** %s\n", c.CreatedDate)
			fmt.Fprintf(&b, "**Link:** [View on Reddit](%s)\n\n", c.Permalink)
			fmt.Fprintf(&b, "%s\n\n", c.Body)
			b.WriteString("---\n\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
