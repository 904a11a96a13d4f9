package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
// The tsvector expressions below must match the GIN expression indexes in
// the search migration or Postgres falls back to sequential scans.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

const (
	projectVector = `to_tsvector('english', coalesce(p.name, '') || ' ' || coalesce(p.status, '') || ' ' || coalesce(p.type, ''))`
	clientVector  = `to_tsvector('english', coalesce(c.name, '') || ' ' || coalesce(c.contact, '') || ' ' || coalesce(c.industry, '') || ' ' || coalesce(c.notes, ''))`
	noteVector    = `to_tsvector('english', coalesce(n.content, ''))`
)

// Search executes a UNION ALL query across projects, clients, and notes
// using plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultProject {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'project'::text AS type, p.id::text, p.name AS title,
				ts_headline('english', coalesce(c.name, '') || ' ' || coalesce(p.status, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS project_id,
				ts_rank(%s, %s) AS rank
			FROM projects p
			LEFT JOIN clients c ON c.id = p.client_id
			WHERE p.archived = FALSE AND %s @@ %s`,
			tsQuery, projectVector, tsQuery, projectVector, tsQuery))
	}

	if q.FilterType == "" || q.FilterType == ResultClient {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'client'::text AS type, c.id::text, c.name AS title,
				ts_headline('english', coalesce(c.notes, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS project_id,
				ts_rank(%s, %s) AS rank
			FROM clients c
			WHERE %s @@ %s`,
			tsQuery, clientVector, tsQuery, clientVector, tsQuery))
	}

	if q.FilterType == "" || q.FilterType == ResultNote {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'note'::text AS type, n.id::text, n.author AS title,
				ts_headline('english', coalesce(n.content, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				n.project_id::text AS project_id,
				ts_rank(%s, %s) AS rank
			FROM project_notes n
			WHERE %s @@ %s`,
			tsQuery, noteVector, tsQuery, noteVector, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, project_id
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.ProjectID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ProjectRecord, []ClientRecord, []NoteRecord, error) {
	projectRows, err := p.db.QueryContext(ctx, `
		SELECT p.id::text, p.name, p.status, p.type, COALESCE(c.name, '')
		FROM projects p
		LEFT JOIN clients c ON c.id = p.client_id
		WHERE p.archived = FALSE
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load projects: %w", err)
	}
	defer projectRows.Close()

	projects := make([]ProjectRecord, 0)
	for projectRows.Next() {
		var rec ProjectRecord
		if err := projectRows.Scan(&rec.ID, &rec.Name, &rec.Status, &rec.Type, &rec.ClientName); err != nil {
			return nil, nil, nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, rec)
	}
	if err := projectRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate projects: %w", err)
	}

	clientRows, err := p.db.QueryContext(ctx, `
		SELECT id::text, name, contact, industry, notes
		FROM clients
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load clients: %w", err)
	}
	defer clientRows.Close()

	clients := make([]ClientRecord, 0)
	for clientRows.Next() {
		var rec ClientRecord
		if err := clientRows.Scan(&rec.ID, &rec.Name, &rec.Contact, &rec.Industry, &rec.Notes); err != nil {
			return nil, nil, nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, rec)
	}
	if err := clientRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate clients: %w", err)
	}

	noteRows, err := p.db.QueryContext(ctx, `
		SELECT id::text, content, author, project_id::text
		FROM project_notes
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load notes: %w", err)
	}
	defer noteRows.Close()

	notes := make([]NoteRecord, 0)
	for noteRows.Next() {
		var rec NoteRecord
		if err := noteRows.Scan(&rec.ID, &rec.Content, &rec.Author, &rec.ProjectID); err != nil {
			return nil, nil, nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, rec)
	}
	if err := noteRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate notes: %w", err)
	}

	return projects, clients, notes, nil
}
