package content

import (
	"path"
	"strings"
	"time"
)

// Post is a single published item on the site timeline.
type Post struct {
	// Title from front matter, or derived from the file name.
	Title string
	// Slug is the last path segment of the permalink.
	Slug string
	// Section is the slash-separated directory of the source file relative
	// to the content root, e.g. "posts/2024".
	Section string
	// Source is the absolute path of the Markdown file.
	Source string
	// Date is the publication date, in the site location.
	Date time.Time
	// Updated is the last modification date from front matter, if any.
	Updated time.Time
	// Draft posts are excluded from the timeline unless drafts are shown.
	Draft bool
	// Link overrides the generated permalink when set.
	Link string

	siteURL    string
	prettyURLs bool
}

// Permalink returns the canonical URL of the post. When absolute is false
// only the path portion is returned.
func (p *Post) Permalink(absolute bool) string {
	if p.Link != "" {
		if absolute || !strings.HasPrefix(p.Link, p.siteURL) {
			return p.Link
		}
		return "/" + strings.TrimPrefix(strings.TrimPrefix(p.Link, p.siteURL), "/")
	}

	rel := path.Join("/", p.Section, p.Slug)
	if p.prettyURLs {
		rel += "/"
	} else {
		rel += ".html"
	}
	if !absolute {
		return rel
	}
	return strings.TrimSuffix(p.siteURL, "/") + rel
}

// FormattedDate formats the publication date with layout. An empty layout
// uses RFC 3339.
func (p *Post) FormattedDate(layout string) string {
	if layout == "" {
		layout = time.RFC3339
	}
	return p.Date.Format(layout)
}

// FormattedUpdated is FormattedDate for the updated date. It is empty when
// the post has none.
func (p *Post) FormattedUpdated(layout string) string {
	if p.Updated.IsZero() {
		return ""
	}
	if layout == "" {
		layout = time.RFC3339
	}
	return p.Updated.Format(layout)
}
