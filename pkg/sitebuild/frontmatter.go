package sitebuild

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Frontmatter is the YAML header of a markdown post.
type Frontmatter struct {
	Title       string     `yaml:"title"`
	Date        string     `yaml:"date"`
	Author      string     `yaml:"author"`
	Description string     `yaml:"description"`
	Keywords    stringList `yaml:"keywords"`
	Categories  stringList `yaml:"categories"`
	Tags        stringList `yaml:"tags"`
	ReadingTime int        `yaml:"reading_time"`
}

// stringList accepts either a YAML sequence or a comma-separated scalar,
// since both forms appear in existing posts.
type stringList []string

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = items
	case yaml.ScalarNode:
		var raw string
		if err := value.Decode(&raw); err != nil {
			return err
		}
		var items []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		*l = items
	default:
		return fmt.Errorf("expected list or string, got yaml kind %d", value.Kind)
	}
	return nil
}

var frontmatterDelim = []byte("---")

// splitFrontmatter separates the YAML header from the markdown body.
func splitFrontmatter(src []byte) (Frontmatter, []byte, error) {
	var fm Frontmatter
	trimmed := bytes.TrimPrefix(src, []byte("\xef\xbb\xbf"))
	trimmed = bytes.TrimLeft(trimmed, "\n\r")
	if !bytes.HasPrefix(trimmed, frontmatterDelim) {
		return fm, nil, fmt.Errorf("missing frontmatter header")
	}
	rest := trimmed[len(frontmatterDelim):]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return fm, nil, fmt.Errorf("unterminated frontmatter header")
	}
	header := rest[:end]
	body := rest[end+len("\n---"):]
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	}
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return fm, nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	return fm, body, nil
}

// parseDate accepts the formats posts have used over the years.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"2006-01-02", "January 2, 2006", "Jan 2, 2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

func displayDate(t time.Time) string {
	return t.Format("Jan 02, 2006")
}
