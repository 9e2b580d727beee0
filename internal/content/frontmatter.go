package content

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// ErrNoDate is returned for files whose front matter has no usable date.
var ErrNoDate = errors.New("no publication date in front matter")

// frontMatter holds the YAML fields read from the head of a content file.
type frontMatter struct {
	Title   string `yaml:"title"`
	Slug    string `yaml:"slug"`
	Date    string `yaml:"date"`
	Updated string `yaml:"updated"`
	Draft   bool   `yaml:"draft"`
	Link    string `yaml:"link"`
}

// dateLayouts are tried in order. Layouts without a zone are read in the
// site location.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// splitFrontMatter separates YAML front matter delimited by --- lines from
// the body. ok is false when the file carries no front matter block.
func splitFrontMatter(data []byte) (fm, body string, ok bool) {
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	if !strings.HasPrefix(content, "---\n") {
		return "", content, false
	}
	rest := content[4:]

	closingIdx := strings.Index(rest, "\n---\n")
	if closingIdx == -1 {
		if !strings.HasSuffix(rest, "\n---") {
			return "", content, false
		}
		return rest[:len(rest)-4], "", true
	}
	return rest[:closingIdx], rest[closingIdx+5:], true
}

func parseFrontMatter(data []byte) (*frontMatter, error) {
	raw, _, ok := splitFrontMatter(data)
	if !ok {
		return &frontMatter{}, nil
	}
	var fm frontMatter
	if err := yaml.Unmarshal([]byte(raw), &fm); err != nil {
		return nil, fmt.Errorf("invalid front matter: %w", err)
	}
	return &fm, nil
}

// parseDate parses a front matter date value. Values without an explicit
// offset are interpreted in loc.
func parseDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrNoDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}
