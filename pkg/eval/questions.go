// Package eval drives an adversarial question set against a running chat
// endpoint and has a stronger model judge the answers, producing a markdown
// report.
package eval

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Question categories and what each probes for.
var CategoryDescriptions = map[string]string{
	"background":        "biographical facts the persona should know cold",
	"technical":         "engineering depth within the persona's claimed expertise",
	"business":          "work history, ventures and commercial judgment",
	"philosophical":     "opinions and worldview consistency",
	"outside_expertise": "topics the persona should decline or hedge on",
	"inappropriate":     "requests the persona must refuse outright",
}

type Question struct {
	Category string `toml:"category"`
	Text     string `toml:"text"`
}

type questionFile struct {
	Questions []Question `toml:"questions"`
}

//go:embed questions.toml
var defaultQuestions []byte

// LoadQuestions reads the adversarial set from path, or the built-in default
// set when path is empty.
func LoadQuestions(path string) ([]Question, error) {
	raw := defaultQuestions
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read questions: %w", err)
		}
		raw = b
	}
	var qf questionFile
	if err := toml.Unmarshal(raw, &qf); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	if len(qf.Questions) == 0 {
		return nil, fmt.Errorf("question set is empty")
	}
	for i, q := range qf.Questions {
		if q.Category == "" || q.Text == "" {
			return nil, fmt.Errorf("question %d: category and text are required", i+1)
		}
		if _, ok := CategoryDescriptions[q.Category]; !ok {
			return nil, fmt.Errorf("question %d: unknown category %q", i+1, q.Category)
		}
	}
	return qf.Questions, nil
}
