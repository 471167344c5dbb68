package sitebuild

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
)

// blogEntry is one element of the blogPosts array in blog.js, which the
// browser-side listing and filter code consumes.
type blogEntry struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Date        string   `json:"date"`
	ReadingTime int      `json:"readingTime"`
	Categories  []string `json:"categories"`
	Tags        []string `json:"tags"`
}

var (
	blogPostsRe        = regexp.MustCompile(`(?s)const blogPosts = \[.*?\];`)
	filterCategoriesRe = regexp.MustCompile(`(?s)const filterCategories = \[.*?\];`)
)

// updateBlogJS rewrites the blogPosts and filterCategories constants in
// place, leaving the rest of the script untouched.
func updateBlogJS(path string, posts []Post) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read blog.js: %w", err)
	}

	entries := make([]blogEntry, 0, len(posts))
	seen := map[string]bool{}
	var categories []string
	for _, p := range posts {
		entries = append(entries, blogEntry{
			ID:          p.Slug,
			Title:       p.Meta.Title,
			URL:         p.URL(),
			Date:        displayDate(p.Date),
			ReadingTime: p.ReadingTime,
			Categories:  append([]string{}, p.Meta.Categories...),
			Tags:        append([]string{}, p.Meta.Tags...),
		})
		for _, c := range p.Meta.Categories {
			if !seen[c] {
				seen[c] = true
				categories = append(categories, c)
			}
		}
	}
	sort.Strings(categories)
	categories = append([]string{"all"}, categories...)

	postsJSON, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("encode blogPosts: %w", err)
	}
	catsJSON, err := json.Marshal(categories)
	if err != nil {
		return fmt.Errorf("encode filterCategories: %w", err)
	}

	if !blogPostsRe.Match(src) {
		return fmt.Errorf("blog.js: blogPosts constant not found")
	}
	if !filterCategoriesRe.Match(src) {
		return fmt.Errorf("blog.js: filterCategories constant not found")
	}
	src = blogPostsRe.ReplaceAllLiteral(src, []byte("const blogPosts = "+string(postsJSON)+";"))
	src = filterCategoriesRe.ReplaceAllLiteral(src, []byte("const filterCategories = "+string(catsJSON)+";"))

	return os.WriteFile(path, src, 0o644)
}
