// Package template implements placeholder substitution for notification
// subjects and bodies. Rendering is pure: unresolved {{tokens}} stay in
// place and no input combination produces an error.
package template

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// Template is a named triple of renderable parts.
type Template struct {
	Name              string
	Subject           string
	BodyHTML          string
	BodyText          string
	RequiredVariables []string
}

// Rendered is the substituted output of a template.
type Rendered struct {
	Subject  string
	BodyHTML string
	BodyText string
}

// MissingVariables lists declared variables absent from vars. The renderer
// never rejects on missing variables; callers may validate with this.
func (t *Template) MissingVariables(vars map[string]string) []string {
	var missing []string
	for _, name := range t.RequiredVariables {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Renderer substitutes {{key}} tokens in template parts.
//
// [HOT_PATH] Token positions of a given template string never change, so
// the split form is cached in an LRU keyed by the raw string. Concurrent
// renders share the cache safely.
type Renderer struct {
	cache *lru.Cache[string, []segment]
}

type segment struct {
	literal string
	token   string // non-empty means substitution point
}

func NewRenderer() *Renderer {
	cache, _ := lru.New[string, []segment](1024)
	return &Renderer{cache: cache}
}

// Render substitutes vars into every part of the template.
func (r *Renderer) Render(t *Template, vars map[string]string) Rendered {
	return Rendered{
		Subject:  r.RenderString(t.Subject, vars),
		BodyHTML: r.RenderString(t.BodyHTML, vars),
		BodyText: r.RenderString(t.BodyText, vars),
	}
}

// RenderString substitutes vars into one template string. Tokens without a
// matching variable are left intact.
func (r *Renderer) RenderString(s string, vars map[string]string) string {
	segs := r.segments(s)
	if len(segs) == 1 && segs[0].token == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, seg := range segs {
		if seg.token == "" {
			b.WriteString(seg.literal)
			continue
		}
		if val, ok := vars[seg.token]; ok {
			b.WriteString(val)
		} else {
			b.WriteString(seg.literal) // keep the original {{token}} text
		}
	}
	return b.String()
}

func (r *Renderer) segments(s string) []segment {
	if cached, ok := r.cache.Get(s); ok {
		return cached
	}

	locs := tokenPattern.FindAllStringSubmatchIndex(s, -1)
	segs := make([]segment, 0, len(locs)*2+1)
	last := 0
	for _, loc := range locs {
		if loc[0] > last {
			segs = append(segs, segment{literal: s[last:loc[0]]})
		}
		segs = append(segs, segment{literal: s[loc[0]:loc[1]], token: s[loc[2]:loc[3]]})
		last = loc[1]
	}
	if last < len(s) || len(segs) == 0 {
		segs = append(segs, segment{literal: s[last:]})
	}

	r.cache.Add(s, segs)
	return segs
}
