package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured; pgfts may be nil when no database is configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	if s.pgfts == nil {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// ReindexAll pushes records into Meilisearch. Called after every sync so
// the index tracks what the snapshot just wrote.
func (s *Service) ReindexAll(projects []ProjectRecord, clients []ClientRecord, notes []NoteRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}

	if err := s.meili.IndexProjects(projects); err != nil {
		log.Printf("search: reindex projects: %v", err)
	}
	if err := s.meili.IndexClients(clients); err != nil {
		log.Printf("search: reindex clients: %v", err)
	}
	if err := s.meili.IndexNotes(notes); err != nil {
		log.Printf("search: reindex notes: %v", err)
	}
}

// ReindexAllFromPG reloads every searchable record from PostgreSQL and
// pushes the lot to Meilisearch in the background.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	go func() {
		projects, clients, notes, err := s.pgfts.LoadAllRecords(ctx)
		if err != nil {
			log.Printf("search: reindex load failed: %v", err)
			return
		}
		s.ReindexAll(projects, clients, notes)
	}()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
