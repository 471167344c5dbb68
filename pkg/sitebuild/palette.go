package sitebuild

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/mkorolev/sitegate/pkg/cache"
)

const paletteRelPath = "assets/data/command_palette.json"

// PaletteItem is one entry of the site's command palette overlay.
type PaletteItem struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	Path        string `json:"path"`
	Description string `json:"description,omitempty"`
}

// meProfile is the slice of me.json the palette cares about.
type meProfile struct {
	Projects []meLink `json:"projects"`
	Ventures []meLink `json:"ventures"`
}

type meLink struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// GeneratePalette scans the site tree and writes the command palette index:
// top-level pages, rendered blog posts, animation demos, and the external
// links from me.json.
func GeneratePalette(siteDir string) error {
	var items []PaletteItem

	pages, err := filepath.Glob(filepath.Join(siteDir, "*.html"))
	if err != nil {
		return fmt.Errorf("glob pages: %w", err)
	}
	sort.Strings(pages)
	for _, p := range pages {
		items = append(items, PaletteItem{
			Title: pageTitle(p),
			Type:  "page",
			Path:  "/" + filepath.Base(p),
		})
	}

	posts, err := filepath.Glob(filepath.Join(siteDir, postsDir, "*.html"))
	if err != nil {
		return fmt.Errorf("glob posts: %w", err)
	}
	sort.Strings(posts)
	for _, p := range posts {
		if filepath.Base(p) == templateName {
			continue
		}
		items = append(items, PaletteItem{
			Title: pageTitle(p),
			Type:  "post",
			Path:  "/blog/posts/" + filepath.Base(p),
		})
	}

	demos, err := filepath.Glob(filepath.Join(siteDir, "animations", "*", "index.html"))
	if err != nil {
		return fmt.Errorf("glob animations: %w", err)
	}
	sort.Strings(demos)
	for _, p := range demos {
		items = append(items, PaletteItem{
			Title: pageTitle(p),
			Type:  "animation",
			Path:  "/animations/" + filepath.Base(filepath.Dir(p)) + "/",
		})
	}

	var me meProfile
	if err := cache.LoadJSON(filepath.Join(siteDir, "me.json"), &me); err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			return fmt.Errorf("load me.json: %w", err)
		}
	}
	for _, l := range me.Projects {
		items = append(items, PaletteItem{Title: l.Name, Type: "project", Path: l.URL, Description: l.Description})
	}
	for _, l := range me.Ventures {
		items = append(items, PaletteItem{Title: l.Name, Type: "venture", Path: l.URL, Description: l.Description})
	}

	return cache.SaveJSON(filepath.Join(siteDir, paletteRelPath), items)
}

// pageTitle pulls the <title> of an HTML file, falling back to the first
// <h1>, then to the file name.
func pageTitle(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return fallbackTitle(path)
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return fallbackTitle(path)
	}
	if t := findText(doc, "title"); t != "" {
		return t
	}
	if t := findText(doc, "h1"); t != "" {
		return t
	}
	return fallbackTitle(path)
}

func findText(n *html.Node, tag string) string {
	if n.Type == html.ElementNode && n.Data == tag {
		return strings.TrimSpace(nodeText(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findText(c, tag); t != "" {
			return t
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(nodeText(c))
	}
	return sb.String()
}

func fallbackTitle(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.ReplaceAll(name, "-", " ")
	name = strings.ReplaceAll(name, "_", " ")
	return strings.TrimSpace(name)
}
