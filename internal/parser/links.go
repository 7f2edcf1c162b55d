package parser

import (
	"regexp"
	"strings"

	"github.com/starford/gtdspace/internal/models"
)

var wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)

// LinkInline marks a [[wikilink]] found in prose.
const LinkInline = "inline"

// Link is one outgoing reference of a document.
type Link struct {
	Target string
	// Kind is the horizon of a reference list, or LinkInline.
	Kind string
}

// Links returns the reference-list targets of doc followed by the wikilinks
// of its prose, deduplicated per kind.
func Links(doc models.Document) []Link {
	seen := make(map[Link]bool)
	var out []Link
	add := func(l Link) {
		if l.Target == "" || seen[l] {
			return
		}
		seen[l] = true
		out = append(out, l)
	}

	for _, h := range models.Horizons {
		for _, target := range doc.Fields.References[h] {
			add(Link{Target: target, Kind: string(h)})
		}
	}
	for _, s := range doc.Layout.Sections {
		for _, target := range wikilinks(s.Body) {
			add(Link{Target: target, Kind: LinkInline})
		}
	}
	for _, target := range wikilinks(doc.Layout.Intro) {
		add(Link{Target: target, Kind: LinkInline})
	}
	return out
}

// wikilinks returns [[Target]] and [[Target|Alias]] targets in order.
func wikilinks(body string) []string {
	var out []string
	for _, m := range wikilinkRe.FindAllStringSubmatch(body, -1) {
		target := m[1]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		if target = strings.TrimSpace(target); target != "" {
			out = append(out, target)
		}
	}
	return out
}
