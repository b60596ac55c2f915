// Package recurrence turns recurring activity templates into draft activities
// on their scheduled weekday.
package recurrence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jonathan/otj-helper/internal/db"
	"github.com/jonathan/otj-helper/internal/events"
	"github.com/jonathan/otj-helper/internal/observability"
	"github.com/jonathan/otj-helper/internal/types"
)

// Store is the subset of the database used by the generator.
type Store interface {
	ListRecurringTemplates(ctx context.Context, weekday int) ([]db.Template, error)
	CreateRecurringActivity(ctx context.Context, tpl *db.Template, today types.Date) (int64, bool, error)
}

// Publisher receives a notification for each generated activity.
type Publisher interface {
	Publish(userID int64, event events.EventType, data any) int
}

// Generated is the payload of a recurring_generated event.
type Generated struct {
	TemplateID int64  `json:"template_id"`
	ActivityID int64  `json:"activity_id"`
	Title      string `json:"title"`
	Date       string `json:"date"`
}

// Generator creates activities from recurring templates.
type Generator struct {
	store     Store
	publisher Publisher
	now       func() time.Time
}

// NewGenerator creates a generator. publisher may be nil.
func NewGenerator(store Store, publisher Publisher) *Generator {
	return &Generator{store: store, publisher: publisher, now: time.Now}
}

// Weekday maps a date to the template schedule numbering, where Monday is 0.
func Weekday(d types.Date) int {
	return (int(d.Weekday()) + 6) % 7
}

// Run generates today's activities and returns how many were created. A failing
// template does not stop the others; all failures are returned together.
func (g *Generator) Run(ctx context.Context, today types.Date) (int, error) {
	templates, err := g.store.ListRecurringTemplates(ctx, Weekday(today))
	if err != nil {
		return 0, err
	}

	created := 0
	var errs []error
	for i := range templates {
		tpl := &templates[i]
		if !tpl.LastGenerated.IsZero() && !tpl.LastGenerated.Before(today.Time) {
			continue
		}

		id, ok, err := g.store.CreateRecurringActivity(ctx, tpl, today)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		created++
		log.Printf("Generated activity %d from recurring template %d (user %d)", id, tpl.ID, tpl.UserID)

		if g.publisher != nil {
			g.publisher.Publish(tpl.UserID, events.RecurringGenerated, Generated{
				TemplateID: tpl.ID,
				ActivityID: id,
				Title:      tpl.Title,
				Date:       today.String(),
			})
		}
	}

	observability.RecordRecurringGenerated(created)
	if len(errs) > 0 {
		return created, fmt.Errorf("recurring generation failed for %d template(s): %w", len(errs), errors.Join(errs...))
	}
	return created, nil
}

// Loop runs the generator immediately and then on every tick until ctx is
// cancelled. Failures are logged.
func (g *Generator) Loop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := g.Run(ctx, types.NewDate(g.now())); err != nil {
			log.Printf("Warning: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
