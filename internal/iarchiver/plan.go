package iarchiver

import (
	"context"
	"fmt"
	"time"

	"github.com/sitekit/sitekit/internal/content"
)

// Plan is a read-only preview of what the next run would submit.
type Plan struct {
	// Since is the stored watermark's wall clock read in the site zone.
	Since time.Time
	// FirstRun is true when no usable watermark exists.
	FirstRun bool
	Items    []PlanItem
}

// PlanItem is one timeline entry and whether the next run would submit it.
type PlanItem struct {
	Post    *content.Post
	Pending bool
}

// PendingCount returns the number of items the next run would submit.
func (p *Plan) PendingCount() int {
	var n int
	for _, it := range p.Items {
		if it.Pending {
			n++
		}
	}
	return n
}

// Plan computes the next run's selection without taking the lock,
// sending requests or touching the watermark.
func (t *Task) Plan(ctx context.Context) (*Plan, error) {
	since, firstRun := t.loadWatermark(ctx)
	since = localize(since, t.location)

	posts, err := t.source.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list content: %w", Name, err)
	}

	plan := &Plan{Since: since, FirstRun: firstRun, Items: make([]PlanItem, 0, len(posts))}
	for _, post := range posts {
		plan.Items = append(plan.Items, PlanItem{
			Post:    post,
			Pending: t.include(post, since, firstRun),
		})
	}
	return plan, nil
}

// include reports whether post is due for submission. The comparison is
// inclusive so an item published exactly at the watermark is resent.
func (t *Task) include(post *content.Post, since time.Time, firstRun bool) bool {
	if firstRun {
		return true
	}
	published := localize(post.Date.In(t.location), t.location)
	return !published.Before(since)
}
