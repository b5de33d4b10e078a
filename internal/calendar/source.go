package calendar

import (
	"context"
	"errors"
	"log"
	"sort"

	"github.com/tazhate/deadlinebot/internal/domain"
)

// Source is anything that can list the current set of events.
type Source interface {
	ListEvents(ctx context.Context) ([]domain.Event, error)
}

type namedSource struct {
	name string
	src  Source
}

// MultiSource merges events from several sources. A failing source is
// logged and skipped; ListEvents only fails when every source failed.
type MultiSource struct {
	sources []namedSource
}

func NewMultiSource() *MultiSource {
	return &MultiSource{}
}

// Add registers a source under a name used in log lines.
func (m *MultiSource) Add(name string, src Source) *MultiSource {
	m.sources = append(m.sources, namedSource{name: name, src: src})
	return m
}

func (m *MultiSource) ListEvents(ctx context.Context) ([]domain.Event, error) {
	var (
		all  []domain.Event
		errs []error
		seen = make(map[domain.NotificationKey]bool)
	)

	for _, ns := range m.sources {
		events, err := ns.src.ListEvents(ctx)
		if err != nil {
			log.Printf("Error listing events from %s: %v", ns.name, err)
			errs = append(errs, err)
			continue
		}
		for _, e := range events {
			if seen[e.Key()] {
				continue
			}
			seen[e.Key()] = true
			all = append(all, e)
		}
	}

	if len(m.sources) > 0 && len(errs) == len(m.sources) {
		return nil, errors.Join(errs...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Start.Before(all[j].Start)
	})
	return all, nil
}
