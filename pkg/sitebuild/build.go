// Package sitebuild turns markdown blog posts into static HTML pages and
// keeps the site's derived artifacts (post index, command palette) in sync.
package sitebuild

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/charmbracelet/log"

	"github.com/mkorolev/sitegate/pkg/cache"
)

const (
	markdownDir  = "blog/markdown"
	postsDir     = "blog/posts"
	templateName = "post-base.html"
	blogJSName   = "blog/blog.js"
	hashIndex    = ".build-cache.json"
)

type Builder struct {
	SiteDir string
	Force   bool
}

// Post is a parsed markdown source plus everything derived from it.
type Post struct {
	Slug        string
	Source      string
	Meta        Frontmatter
	Date        time.Time
	ReadingTime int
	HTML        string
	Hash        string
}

func (p Post) URL() string {
	return "/blog/posts/" + p.Slug + ".html"
}

// Run parses every markdown post, renders the stale ones, and regenerates
// blog.js and the command palette. Unchanged posts are skipped via a content
// hash index unless Force is set.
func (b *Builder) Run() error {
	posts, err := b.loadPosts()
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		return fmt.Errorf("no markdown posts under %s", filepath.Join(b.SiteDir, markdownDir))
	}

	// Newest first; navigation links and blog.js both rely on this order.
	sort.Slice(posts, func(i, j int) bool { return posts[i].Date.After(posts[j].Date) })

	tmpl, err := os.ReadFile(filepath.Join(b.SiteDir, postsDir, templateName))
	if err != nil {
		return fmt.Errorf("read post template: %w", err)
	}

	hashes := map[string]string{}
	indexPath := filepath.Join(b.SiteDir, hashIndex)
	if err := cache.LoadJSON(indexPath, &hashes); err != nil && !errors.Is(err, cache.ErrNotFound) {
		return fmt.Errorf("load build cache: %w", err)
	}

	rendered := 0
	for i, p := range posts {
		outPath := filepath.Join(b.SiteDir, postsDir, p.Slug+".html")
		if !b.Force && hashes[p.Source] == p.Hash {
			if _, err := os.Stat(outPath); err == nil {
				continue
			}
		}
		page := b.renderPage(string(tmpl), posts, i)
		if err := os.WriteFile(outPath, []byte(page), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
		hashes[p.Source] = p.Hash
		rendered++
		log.Info("rendered post", "slug", p.Slug)
	}

	if err := updateBlogJS(filepath.Join(b.SiteDir, blogJSName), posts); err != nil {
		return err
	}
	if err := GeneratePalette(b.SiteDir); err != nil {
		return err
	}
	if err := cache.SaveJSON(indexPath, hashes); err != nil {
		return fmt.Errorf("save build cache: %w", err)
	}

	log.Info("build complete", "posts", len(posts), "rendered", rendered)
	return nil
}

func (b *Builder) loadPosts() ([]Post, error) {
	pattern := filepath.Join(b.SiteDir, markdownDir, "*.md")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob posts: %w", err)
	}
	sort.Strings(paths)

	var posts []Post
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		p, err := parsePost(filepath.Base(path), src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		posts = append(posts, p)
	}
	return posts, nil
}

func parsePost(source string, src []byte) (Post, error) {
	fm, body, err := splitFrontmatter(src)
	if err != nil {
		return Post{}, err
	}
	if strings.TrimSpace(fm.Title) == "" {
		return Post{}, fmt.Errorf("missing title")
	}
	date, err := parseDate(fm.Date)
	if err != nil {
		return Post{}, err
	}
	htmlBody, err := renderMarkdown(body)
	if err != nil {
		return Post{}, err
	}
	rt := fm.ReadingTime
	if rt <= 0 {
		rt = estimateReadingTime(body)
	}
	return Post{
		Slug:        slugify(fm.Title),
		Source:      source,
		Meta:        fm,
		Date:        date,
		ReadingTime: rt,
		HTML:        htmlBody,
		Hash:        contentHash(src),
	}, nil
}

// renderPage fills the template placeholders for posts[i]. posts is sorted
// newest first, so the previous post chronologically sits at i+1.
func (b *Builder) renderPage(tmpl string, posts []Post, i int) string {
	p := posts[i]

	prevURL, prevTitle, prevVis := "#", "", "hidden"
	if i+1 < len(posts) {
		prevURL, prevTitle, prevVis = posts[i+1].URL(), posts[i+1].Meta.Title, "visible"
	}
	nextURL, nextTitle, nextVis := "#", "", "hidden"
	if i > 0 {
		nextURL, nextTitle, nextVis = posts[i-1].URL(), posts[i-1].Meta.Title, "visible"
	}

	r := strings.NewReplacer(
		"$POST_TITLE", p.Meta.Title,
		"$POST_DESCRIPTION", p.Meta.Description,
		"$POST_KEYWORDS", strings.Join(p.Meta.Keywords, ", "),
		"$POST_AUTHOR", p.Meta.Author,
		"$POST_DATE", displayDate(p.Date),
		"$POST_READING_TIME", fmt.Sprintf("%d", p.ReadingTime),
		"$POST_CATEGORIES", strings.Join(p.Meta.Categories, ", "),
		"$POST_URL", p.URL(),
		"$POST_CONTENT", p.HTML,
		"$PREV_POST_URL", prevURL,
		"$PREV_POST_TITLE", prevTitle,
		"$PREV_VISIBILITY", prevVis,
		"$NEXT_POST_URL", nextURL,
		"$NEXT_POST_TITLE", nextTitle,
		"$NEXT_VISIBILITY", nextVis,
	)
	return r.Replace(tmpl)
}
