package markdown

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Persona is a parsed persona document. Sections maps each level-2 heading to
// the text beneath it.
type Persona struct {
	Username      string
	Archetype     string
	TopSubreddits []string
	Sections      map[string]string
	Content       string
}

var (
	personaUserRe = regexp.MustCompile(`u/(\w+)`)
	archetypeRe   = regexp.MustCompile(`\*\*([^*]+)\*\* [–-] `)
	communitiesRe = regexp.MustCompile(`\*\*Most Active Communities:\*\*\s*([^\n]+)`)
	subredditRe   = regexp.MustCompile(`r/(\w+)`)
)

// ParsePersona parses a persona markdown document. The username comes from
// the "# User Persona: u/<name>" title, the archetype from the first
// bold-dash pattern, and top subreddits from the Most Active Communities line.
func ParsePersona(content []byte) Persona {
	parser := goldmark.New()
	doc := parser.Parser().Parse(text.NewReader(content))

	p := Persona{
		Sections: make(map[string]string),
		Content:  string(content),
	}

	var currentSection string
	var sectionParts []string

	flush := func() {
		if currentSection != "" && len(sectionParts) > 0 {
			p.Sections[currentSection] = strings.TrimSpace(strings.Join(sectionParts, "\n"))
		}
		sectionParts = nil
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if heading, ok := node.(*ast.Heading); ok {
			headingText := nodeText(heading, content)
			switch {
			case heading.Level == 1:
				flush()
				currentSection = ""
				if m := personaUserRe.FindStringSubmatch(headingText); m != nil {
					p.Username = m[1]
				}
			case heading.Level == 2:
				flush()
				currentSection = headingText
			}
			continue
		}
		if currentSection != "" {
			if t := nodeText(node, content); t != "" {
				sectionParts = append(sectionParts, t)
			}
		}
	}
	flush()

	if m := archetypeRe.FindStringSubmatch(p.Content); m != nil {
		p.Archetype = strings.TrimSpace(m[1])
	}
	if m := communitiesRe.FindStringSubmatch(p.Content); m != nil {
		for _, sub := range subredditRe.FindAllStringSubmatch(m[1], -1) {
			p.TopSubreddits = append(p.TopSubreddits, sub[1])
		}
	}
	return p
}

// WritePersona renders a persona document with the standard title line so the
// parser can recover the username later.
func WritePersona(w io.Writer, username, body string, now time.Time) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# User Persona: u/%s\n\n", username)
	fmt.Fprintf(&b, "**Generated:** %s\n\n", now.Format("2006-01-02 15:04:05"))
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// nodeText collects the plain text of a node and its descendants.
func nodeText(node ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
