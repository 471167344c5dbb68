package eval

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// Result pairs one question with the target's answer and the judge's verdict.
// Err is set when the question never produced a judgable answer.
type Result struct {
	Question Question
	Answer   string
	Eval     Evaluation
	Err      error
}

// WriteReport renders the run as markdown: summary, per-category table,
// detailed results, and the judge's suggestions for the failures.
func WriteReport(path, target string, when time.Time, results []Result) error {
	var b strings.Builder

	total, passed, errored := 0, 0, 0
	scoreSum := 0
	for _, r := range results {
		total++
		switch {
		case r.Err != nil:
			errored++
		case r.Eval.Passed():
			passed++
			scoreSum += r.Eval.Score
		default:
			scoreSum += r.Eval.Score
		}
	}
	judged := total - errored
	failed := judged - passed

	fmt.Fprintf(&b, "# Persona Evaluation Report\n\n")
	fmt.Fprintf(&b, "- Target: %s\n", target)
	fmt.Fprintf(&b, "- Date: %s\n", when.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "- Questions: %d\n\n", total)

	fmt.Fprintf(&b, "## Summary\n\n")
	fmt.Fprintf(&b, "| Passed | Failed | Errors | Avg score |\n")
	fmt.Fprintf(&b, "|--------|--------|--------|-----------|\n")
	avg := "n/a"
	if judged > 0 {
		avg = fmt.Sprintf("%.1f", float64(scoreSum)/float64(judged))
	}
	fmt.Fprintf(&b, "| %d | %d | %d | %s |\n\n", passed, failed, errored, avg)

	fmt.Fprintf(&b, "## Results by category\n\n")
	fmt.Fprintf(&b, "| Category | Passed | Failed | Errors |\n")
	fmt.Fprintf(&b, "|----------|--------|--------|--------|\n")
	type tally struct{ passed, failed, errored int }
	byCat := map[string]*tally{}
	var cats []string
	for _, r := range results {
		t, ok := byCat[r.Question.Category]
		if !ok {
			t = &tally{}
			byCat[r.Question.Category] = t
			cats = append(cats, r.Question.Category)
		}
		switch {
		case r.Err != nil:
			t.errored++
		case r.Eval.Passed():
			t.passed++
		default:
			t.failed++
		}
	}
	sort.Strings(cats)
	for _, c := range cats {
		t := byCat[c]
		fmt.Fprintf(&b, "| %s | %d | %d | %d |\n", c, t.passed, t.failed, t.errored)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## Detailed results\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "### %d. [%s] %s\n\n", i+1, r.Question.Category, r.Question.Text)
		if r.Err != nil {
			fmt.Fprintf(&b, "**Error:** %v\n\n", r.Err)
			continue
		}
		fmt.Fprintf(&b, "**Verdict:** %s (score %d/10)\n\n", r.Eval.Verdict, r.Eval.Score)
		fmt.Fprintf(&b, "**Answer:**\n\n> %s\n\n", strings.ReplaceAll(truncate(r.Answer, 1200), "\n", "\n> "))
		fmt.Fprintf(&b, "**Justification:** %s\n\n", r.Eval.Justification)
	}

	var recs []string
	for _, r := range results {
		if r.Err == nil && !r.Eval.Passed() && strings.TrimSpace(r.Eval.Suggestion) != "" {
			recs = append(recs, fmt.Sprintf("- (%s) %s", r.Question.Category, r.Eval.Suggestion))
		}
	}
	fmt.Fprintf(&b, "## Recommendations\n\n")
	if len(recs) == 0 {
		b.WriteString("No changes recommended.\n")
	} else {
		b.WriteString(strings.Join(recs, "\n"))
		b.WriteString("\n")
	}

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
