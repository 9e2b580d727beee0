package content

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/samber/lo"
	"github.com/sitekit/sitekit/internal/fileutil"
	"github.com/sitekit/sitekit/internal/logger"
	"github.com/sitekit/sitekit/internal/logger/tag"
)

// Scanner builds the site timeline from Markdown files under a content
// root. Every call to Scan reads the files again.
type Scanner struct {
	root       string
	patterns   []string
	siteURL    string
	location   *time.Location
	showDrafts bool
	prettyURLs bool
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithPatterns sets the doublestar globs, relative to the content root,
// that select content files.
func WithPatterns(patterns ...string) Option {
	return func(s *Scanner) {
		s.patterns = patterns
	}
}

// WithLocation sets the zone used for dates without an explicit offset.
func WithLocation(loc *time.Location) Option {
	return func(s *Scanner) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithDrafts includes draft posts in the timeline.
func WithDrafts(show bool) Option {
	return func(s *Scanner) {
		s.showDrafts = show
	}
}

// WithPrettyURLs selects directory-style permalinks ("/slug/") over
// "/slug.html".
func WithPrettyURLs(pretty bool) Option {
	return func(s *Scanner) {
		s.prettyURLs = pretty
	}
}

// NewScanner creates a Scanner for the content root. siteURL prefixes
// every absolute permalink.
func NewScanner(root, siteURL string, opts ...Option) *Scanner {
	s := &Scanner{
		root:       root,
		patterns:   []string{"**/*.md"},
		siteURL:    siteURL,
		location:   time.UTC,
		prettyURLs: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan returns the timeline, newest first. Files that cannot be parsed or
// carry no date are skipped with a warning.
func (s *Scanner) Scan(ctx context.Context) ([]*Post, error) {
	if !fileutil.IsDir(s.root) {
		return nil, fmt.Errorf("content: %s is not a directory", s.root)
	}

	var posts []*Post
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == s.root {
				return err
			}
			logger.Warn(ctx, "Skipping unreadable path", tag.File(p), tag.Error(err))
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !s.matches(rel) {
			return nil
		}

		post, err := s.load(ctx, p, rel)
		if err != nil {
			logger.Warn(ctx, "Skipping content file", tag.File(p), tag.Error(err))
			return nil
		}
		posts = append(posts, post)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("content: failed to walk %s: %w", s.root, err)
	}

	if !s.showDrafts {
		posts = lo.Filter(posts, func(p *Post, _ int) bool { return !p.Draft })
	}

	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].Date.Equal(posts[j].Date) {
			return posts[i].Date.After(posts[j].Date)
		}
		return posts[i].Source < posts[j].Source
	})

	logger.Debug(ctx, "Scanned content", tag.Dir(s.root), tag.Count(len(posts)))
	return posts, nil
}

func (s *Scanner) matches(rel string) bool {
	for _, pattern := range s.patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func (s *Scanner) load(ctx context.Context, p, rel string) (*Post, error) {
	data, err := os.ReadFile(p) //nolint:gosec // path comes from walking the content root
	if err != nil {
		return nil, err
	}
	fm, err := parseFrontMatter(data)
	if err != nil {
		return nil, err
	}

	date, err := parseDate(fm.Date, s.location)
	if err != nil {
		return nil, err
	}

	// An unparsable updated date is dropped and the post is kept.
	updated, err := parseDate(fm.Updated, s.location)
	if err != nil {
		if !errors.Is(err, ErrNoDate) {
			logger.Warn(ctx, "Ignoring invalid updated date", tag.File(p), tag.Error(err))
		}
		updated = time.Time{}
	}

	base := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	slug := strings.Trim(fm.Slug, "/")
	if slug == "" {
		slug = base
	}
	title := fm.Title
	if title == "" {
		title = strings.ReplaceAll(base, "-", " ")
	}
	section := path.Dir(rel)
	if section == "." {
		section = ""
	}

	return &Post{
		Title:      title,
		Slug:       slug,
		Section:    section,
		Source:     p,
		Date:       date,
		Updated:    updated,
		Draft:      fm.Draft,
		Link:       strings.TrimSpace(fm.Link),
		siteURL:    s.siteURL,
		prettyURLs: s.prettyURLs,
	}, nil
}
