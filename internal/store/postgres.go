package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// IsClientLinkViolation reports whether err is the foreign-key violation
// raised when a project row references a missing client.
func IsClientLinkViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23503" && strings.Contains(pgErr.ConstraintName, "client_id")
}

// bumpSequence realigns a table's id sequence after rows were written with
// explicit ids, so later DEFAULT inserts cannot collide.
func (s *PostgresStore) bumpSequence(ctx context.Context, table string) {
	_, _ = s.db.ExecContext(ctx, fmt.Sprintf(
		`SELECT setval(pg_get_serial_sequence('%s','id'), (SELECT GREATEST(COALESCE(MAX(id),0),1) FROM %s))`,
		table, table,
	))
}

// ============ TEAM MEMBERS ============

func (s *PostgresStore) ListTeamMembers(ctx context.Context) ([]TeamMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, role, capacity, rate, color
		FROM team_members
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	defer rows.Close()

	items := make([]TeamMember, 0)
	for rows.Next() {
		var item TeamMember
		if err := rows.Scan(&item.ID, &item.Name, &item.Role, &item.Capacity, &item.Rate, &item.Color); err != nil {
			return nil, fmt.Errorf("scan team member: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate team members: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListTeamMemberIDs(ctx context.Context) ([]int64, error) {
	return s.listIDs(ctx, "team_members")
}

func (s *PostgresStore) UpsertTeamMembers(ctx context.Context, members []TeamMember) error {
	if len(members) == 0 {
		return nil
	}

	var keyed, fresh []TeamMember
	for _, m := range members {
		if m.ID != 0 {
			keyed = append(keyed, m)
		} else {
			fresh = append(fresh, m)
		}
	}

	if len(keyed) > 0 {
		var sb strings.Builder
		args := make([]any, 0, len(keyed)*6)
		sb.WriteString(`INSERT INTO team_members (id, name, role, capacity, rate, color) VALUES `)
		for i, m := range keyed {
			if i > 0 {
				sb.WriteString(", ")
			}
			n := i * 6
			fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d,$%d)", n+1, n+2, n+3, n+4, n+5, n+6)
			args = append(args, m.ID, m.Name, m.Role, m.Capacity, m.Rate, m.Color)
		}
		sb.WriteString(` ON CONFLICT (id) DO UPDATE SET
			name=EXCLUDED.name, role=EXCLUDED.role, capacity=EXCLUDED.capacity,
			rate=EXCLUDED.rate, color=EXCLUDED.color, updated_at=NOW()`)
		if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("batch upsert team members: %w", err)
		}
		s.bumpSequence(ctx, "team_members")
	}

	if len(fresh) > 0 {
		var sb strings.Builder
		args := make([]any, 0, len(fresh)*5)
		sb.WriteString(`INSERT INTO team_members (name, role, capacity, rate, color) VALUES `)
		for i, m := range fresh {
			if i > 0 {
				sb.WriteString(", ")
			}
			n := i * 5
			fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d)", n+1, n+2, n+3, n+4, n+5)
			args = append(args, m.Name, m.Role, m.Capacity, m.Rate, m.Color)
		}
		if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("batch insert team members: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) UpsertTeamMember(ctx context.Context, member TeamMember) (TeamMember, error) {
	var saved TeamMember
	var err error
	if member.ID != 0 {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO team_members (id, name, role, capacity, rate, color)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				name=EXCLUDED.name, role=EXCLUDED.role, capacity=EXCLUDED.capacity,
				rate=EXCLUDED.rate, color=EXCLUDED.color, updated_at=NOW()
			RETURNING id, name, role, capacity, rate, color
		`, member.ID, member.Name, member.Role, member.Capacity, member.Rate, member.Color).
			Scan(&saved.ID, &saved.Name, &saved.Role, &saved.Capacity, &saved.Rate, &saved.Color)
		if err == nil {
			s.bumpSequence(ctx, "team_members")
		}
	} else {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO team_members (name, role, capacity, rate, color)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, name, role, capacity, rate, color
		`, member.Name, member.Role, member.Capacity, member.Rate, member.Color).
			Scan(&saved.ID, &saved.Name, &saved.Role, &saved.Capacity, &saved.Rate, &saved.Color)
	}
	if err != nil {
		return TeamMember{}, fmt.Errorf("upsert team member: %w", err)
	}
	return saved, nil
}

func (s *PostgresStore) DeleteTeamMember(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM team_members WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete team member: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteTeamMembersExcept(ctx context.Context, keep []int64) (int64, error) {
	return s.deleteExcept(ctx, "team_members", keep)
}

// ============ CLIENTS ============

func (s *PostgresStore) ListClients(ctx context.Context) ([]Client, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, contact, email, phone, industry, notes, archived
		FROM clients
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	items := make([]Client, 0)
	for rows.Next() {
		var item Client
		if err := rows.Scan(&item.ID, &item.Name, &item.Contact, &item.Email, &item.Phone, &item.Industry, &item.Notes, &item.Archived); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListClientIDs(ctx context.Context) ([]int64, error) {
	return s.listIDs(ctx, "clients")
}

func (s *PostgresStore) UpsertClients(ctx context.Context, clients []Client) error {
	if len(clients) == 0 {
		return nil
	}

	var keyed, fresh []Client
	for _, c := range clients {
		if c.ID != 0 {
			keyed = append(keyed, c)
		} else {
			fresh = append(fresh, c)
		}
	}

	if len(keyed) > 0 {
		var sb strings.Builder
		args := make([]any, 0, len(keyed)*8)
		sb.WriteString(`INSERT INTO clients (id, name, contact, email, phone, industry, notes, archived) VALUES `)
		for i, c := range keyed {
			if i > 0 {
				sb.WriteString(", ")
			}
			n := i * 8
			fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8)
			args = append(args, c.ID, c.Name, c.Contact, c.Email, c.Phone, c.Industry, c.Notes, c.Archived)
		}
		sb.WriteString(` ON CONFLICT (id) DO UPDATE SET
			name=EXCLUDED.name, contact=EXCLUDED.contact, email=EXCLUDED.email,
			phone=EXCLUDED.phone, industry=EXCLUDED.industry, notes=EXCLUDED.notes,
			archived=EXCLUDED.archived, updated_at=NOW()`)
		if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("batch upsert clients: %w", err)
		}
		s.bumpSequence(ctx, "clients")
	}

	if len(fresh) > 0 {
		var sb strings.Builder
		args := make([]any, 0, len(fresh)*7)
		sb.WriteString(`INSERT INTO clients (name, contact, email, phone, industry, notes, archived) VALUES `)
		for i, c := range fresh {
			if i > 0 {
				sb.WriteString(", ")
			}
			n := i * 7
			fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d,$%d,$%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7)
			args = append(args, c.Name, c.Contact, c.Email, c.Phone, c.Industry, c.Notes, c.Archived)
		}
		if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("batch insert clients: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) UpsertClient(ctx context.Context, client Client) (Client, error) {
	var saved Client
	var err error
	if client.ID != 0 {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO clients (id, name, contact, email, phone, industry, notes, archived)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				name=EXCLUDED.name, contact=EXCLUDED.contact, email=EXCLUDED.email,
				phone=EXCLUDED.phone, industry=EXCLUDED.industry, notes=EXCLUDED.notes,
				archived=EXCLUDED.archived, updated_at=NOW()
			RETURNING id, name, contact, email, phone, industry, notes, archived
		`, client.ID, client.Name, client.Contact, client.Email, client.Phone, client.Industry, client.Notes, client.Archived).
			Scan(&saved.ID, &saved.Name, &saved.Contact, &saved.Email, &saved.Phone, &saved.Industry, &saved.Notes, &saved.Archived)
		if err == nil {
			s.bumpSequence(ctx, "clients")
		}
	} else {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO clients (name, contact, email, phone, industry, notes, archived)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, name, contact, email, phone, industry, notes, archived
		`, client.Name, client.Contact, client.Email, client.Phone, client.Industry, client.Notes, client.Archived).
			Scan(&saved.ID, &saved.Name, &saved.Contact, &saved.Email, &saved.Phone, &saved.Industry, &saved.Notes, &saved.Archived)
	}
	if err != nil {
		return Client{}, fmt.Errorf("upsert client: %w", err)
	}
	return saved, nil
}

func (s *PostgresStore) DeleteClient(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteClientsExcept(ctx context.Context, keep []int64) (int64, error) {
	return s.deleteExcept(ctx, "clients", keep)
}

// ============ PROJECTS ============

const projectColumns = `notion_id, name, client_id, status, type, current_phase,
	hours_per_week, start_date, end_date, budget_total, budget_currency,
	estimated_hours, logged_hours, archived`

func projectArgs(p ProjectRecord) []any {
	return []any{
		p.NotionID, p.Name, p.ClientID, p.Status, p.Type, p.CurrentPhase,
		p.HoursPerWeek, p.StartDate, p.EndDate, p.BudgetTotal, p.BudgetCurrency,
		p.EstimatedHours, p.LoggedHours, p.Archived,
	}
}

const projectUpdateSet = `
	notion_id=EXCLUDED.notion_id, name=EXCLUDED.name, client_id=EXCLUDED.client_id,
	status=EXCLUDED.status, type=EXCLUDED.type, current_phase=EXCLUDED.current_phase,
	hours_per_week=EXCLUDED.hours_per_week, start_date=EXCLUDED.start_date,
	end_date=EXCLUDED.end_date, budget_total=EXCLUDED.budget_total,
	budget_currency=EXCLUDED.budget_currency, estimated_hours=EXCLUDED.estimated_hours,
	logged_hours=EXCLUDED.logged_hours, archived=EXCLUDED.archived, updated_at=NOW()`

// UpsertProjects writes all records in two batched statements (keyed rows
// upserted, id-less rows inserted) and returns the persisted ids aligned
// with the input order.
func (s *PostgresStore) UpsertProjects(ctx context.Context, records []ProjectRecord) ([]int64, error) {
	ids := make([]int64, len(records))
	if len(records) == 0 {
		return ids, nil
	}

	var keyedPos, freshPos []int
	for i, p := range records {
		if p.ID != 0 {
			keyedPos = append(keyedPos, i)
		} else {
			freshPos = append(freshPos, i)
		}
	}

	if len(keyedPos) > 0 {
		var sb strings.Builder
		args := make([]any, 0, len(keyedPos)*15)
		sb.WriteString(`INSERT INTO projects (id, ` + projectColumns + `) VALUES `)
		for i, pos := range keyedPos {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(placeholders(i*15, 15))
			args = append(args, records[pos].ID)
			args = append(args, projectArgs(records[pos])...)
		}
		sb.WriteString(` ON CONFLICT (id) DO UPDATE SET` + projectUpdateSet + ` RETURNING id`)
		if err := s.scanReturnedIDs(ctx, sb.String(), args, ids, keyedPos); err != nil {
			return nil, fmt.Errorf("batch upsert projects: %w", err)
		}
		s.bumpSequence(ctx, "projects")
	}

	if len(freshPos) > 0 {
		var sb strings.Builder
		args := make([]any, 0, len(freshPos)*14)
		sb.WriteString(`INSERT INTO projects (` + projectColumns + `) VALUES `)
		for i, pos := range freshPos {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(placeholders(i*14, 14))
			args = append(args, projectArgs(records[pos])...)
		}
		sb.WriteString(` RETURNING id`)
		if err := s.scanReturnedIDs(ctx, sb.String(), args, ids, freshPos); err != nil {
			return nil, fmt.Errorf("batch insert projects: %w", err)
		}
	}

	return ids, nil
}

// UpsertProjectRecord is the row-by-row fallback for UpsertProjects.
func (s *PostgresStore) UpsertProjectRecord(ctx context.Context, p ProjectRecord) (int64, error) {
	var id int64
	var err error
	if p.ID != 0 {
		args := append([]any{p.ID}, projectArgs(p)...)
		err = s.db.QueryRowContext(ctx,
			`INSERT INTO projects (id, `+projectColumns+`) VALUES `+placeholders(0, 15)+
				` ON CONFLICT (id) DO UPDATE SET`+projectUpdateSet+` RETURNING id`,
			args...).Scan(&id)
		if err == nil {
			s.bumpSequence(ctx, "projects")
		}
	} else {
		err = s.db.QueryRowContext(ctx,
			`INSERT INTO projects (`+projectColumns+`) VALUES `+placeholders(0, 14)+` RETURNING id`,
			projectArgs(p)...).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("upsert project: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ListProjectIDs(ctx context.Context) ([]int64, error) {
	return s.listIDs(ctx, "projects")
}

func (s *PostgresStore) DeleteProject(ctx context.Context, id int64) error {
	// Cascades remove the relation tables.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteProjectsExcept(ctx context.Context, keep []int64) (int64, error) {
	return s.deleteExcept(ctx, "projects", keep)
}

// ListProjects returns every active project assembled with its relation
// tables, phases sorted by phase_index ascending.
func (s *PostgresStore) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.notion_id, p.name, p.client_id, COALESCE(c.name, ''),
			p.status, p.type, p.current_phase, p.hours_per_week,
			p.start_date, p.end_date, p.budget_total, p.budget_currency,
			p.estimated_hours, p.logged_hours, p.archived
		FROM projects p
		LEFT JOIN clients c ON c.id = p.client_id
		WHERE p.archived = FALSE
		ORDER BY p.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]Project, 0)
	byID := make(map[int64]int)
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.NotionID, &p.Name, &p.ClientID, &p.ClientName,
			&p.Status, &p.Type, &p.CurrentPhase, &p.HoursPerWeek,
			&p.StartDate, &p.EndDate, &p.BudgetTotal, &p.BudgetCurrency,
			&p.EstimatedHours, &p.LoggedHours, &p.Archived); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		byID[p.ID] = len(projects)
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	if err := s.attachPhases(ctx, projects, byID); err != nil {
		return nil, err
	}
	if err := s.attachTeamLinks(ctx, projects, byID); err != nil {
		return nil, err
	}
	if err := s.attachInvoices(ctx, projects, byID); err != nil {
		return nil, err
	}
	if err := s.attachNotes(ctx, projects, byID); err != nil {
		return nil, err
	}
	return projects, nil
}

func (s *PostgresStore) attachPhases(ctx context.Context, projects []Project, byID map[int64]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, notion_id, phase_index, name, status, start_date, end_date
		FROM project_phases
		ORDER BY project_id, phase_index
	`)
	if err != nil {
		return fmt.Errorf("list phases: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ph Phase
		if err := rows.Scan(&ph.ID, &ph.ProjectID, &ph.NotionID, &ph.PhaseIndex, &ph.Name, &ph.Status, &ph.StartDate, &ph.EndDate); err != nil {
			return fmt.Errorf("scan phase: %w", err)
		}
		if idx, ok := byID[ph.ProjectID]; ok {
			projects[idx].Phases = append(projects[idx].Phases, ph)
		}
	}
	return rows.Err()
}

func (s *PostgresStore) attachTeamLinks(ctx context.Context, projects []Project, byID map[int64]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id, team_member_id
		FROM project_team
		ORDER BY project_id, team_member_id
	`)
	if err != nil {
		return fmt.Errorf("list team links: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var link TeamLink
		if err := rows.Scan(&link.ProjectID, &link.TeamMemberID); err != nil {
			return fmt.Errorf("scan team link: %w", err)
		}
		if idx, ok := byID[link.ProjectID]; ok {
			projects[idx].TeamMemberIDs = append(projects[idx].TeamMemberIDs, link.TeamMemberID)
		}
	}
	return rows.Err()
}

func (s *PostgresStore) attachInvoices(ctx context.Context, projects []Project, byID map[int64]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, amount, status, due_date
		FROM project_invoices
		ORDER BY project_id, id
	`)
	if err != nil {
		return fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.ProjectID, &inv.Name, &inv.Amount, &inv.Status, &inv.DueDate); err != nil {
			return fmt.Errorf("scan invoice: %w", err)
		}
		if idx, ok := byID[inv.ProjectID]; ok {
			projects[idx].Invoices = append(projects[idx].Invoices, inv)
		}
	}
	return rows.Err()
}

func (s *PostgresStore) attachNotes(ctx context.Context, projects []Project, byID map[int64]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, content, author, created_at
		FROM project_notes
		ORDER BY project_id, id
	`)
	if err != nil {
		return fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var note Note
		if err := rows.Scan(&note.ID, &note.ProjectID, &note.Content, &note.Author, &note.CreatedAt); err != nil {
			return fmt.Errorf("scan note: %w", err)
		}
		if idx, ok := byID[note.ProjectID]; ok {
			projects[idx].Notes = append(projects[idx].Notes, note)
		}
	}
	return rows.Err()
}

// ============ PROJECT RELATION TABLES ============

func (s *PostgresStore) DeleteProjectPhases(ctx context.Context, projectIDs []int64) error {
	return s.deleteRelations(ctx, "project_phases", projectIDs)
}

func (s *PostgresStore) DeleteProjectTeamLinks(ctx context.Context, projectIDs []int64) error {
	return s.deleteRelations(ctx, "project_team", projectIDs)
}

func (s *PostgresStore) DeleteProjectInvoices(ctx context.Context, projectIDs []int64) error {
	return s.deleteRelations(ctx, "project_invoices", projectIDs)
}

func (s *PostgresStore) DeleteProjectNotes(ctx context.Context, projectIDs []int64) error {
	return s.deleteRelations(ctx, "project_notes", projectIDs)
}

func (s *PostgresStore) deleteRelations(ctx context.Context, table string, projectIDs []int64) error {
	if len(projectIDs) == 0 {
		return nil
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE project_id = ANY($1)`, table)
	if _, err := s.db.ExecContext(ctx, query, projectIDs); err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

func (s *PostgresStore) InsertProjectPhases(ctx context.Context, phases []Phase) error {
	if len(phases) == 0 {
		return nil
	}
	var sb strings.Builder
	args := make([]any, 0, len(phases)*7)
	sb.WriteString(`INSERT INTO project_phases (project_id, notion_id, phase_index, name, status, start_date, end_date) VALUES `)
	for i, ph := range phases {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(placeholders(i*7, 7))
		args = append(args, ph.ProjectID, ph.NotionID, ph.PhaseIndex, ph.Name, ph.Status, ph.StartDate, ph.EndDate)
	}
	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert project phases: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertProjectTeamLinks(ctx context.Context, links []TeamLink) error {
	if len(links) == 0 {
		return nil
	}
	var sb strings.Builder
	args := make([]any, 0, len(links)*2)
	sb.WriteString(`INSERT INTO project_team (project_id, team_member_id) VALUES `)
	for i, link := range links {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(placeholders(i*2, 2))
		args = append(args, link.ProjectID, link.TeamMemberID)
	}
	sb.WriteString(` ON CONFLICT (project_id, team_member_id) DO NOTHING`)
	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert project team links: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertProjectInvoices(ctx context.Context, invoices []Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	var sb strings.Builder
	args := make([]any, 0, len(invoices)*5)
	sb.WriteString(`INSERT INTO project_invoices (project_id, name, amount, status, due_date) VALUES `)
	for i, inv := range invoices {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(placeholders(i*5, 5))
		args = append(args, inv.ProjectID, inv.Name, inv.Amount, inv.Status, inv.DueDate)
	}
	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert project invoices: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertProjectNotes(ctx context.Context, notes []Note) error {
	if len(notes) == 0 {
		return nil
	}
	var sb strings.Builder
	args := make([]any, 0, len(notes)*3)
	sb.WriteString(`INSERT INTO project_notes (project_id, content, author) VALUES `)
	for i, note := range notes {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(placeholders(i*3, 3))
		args = append(args, note.ProjectID, note.Content, note.Author)
	}
	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert project notes: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertProjectNote(ctx context.Context, note Note) (Note, error) {
	var saved Note
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO project_notes (project_id, content, author)
		VALUES ($1, $2, $3)
		RETURNING id, project_id, content, author, created_at
	`, note.ProjectID, note.Content, note.Author).
		Scan(&saved.ID, &saved.ProjectID, &saved.Content, &saved.Author, &saved.CreatedAt)
	if err != nil {
		return Note{}, fmt.Errorf("insert project note: %w", err)
	}
	return saved, nil
}

// ============ ARCHIVED PROJECTS ============

func (s *PostgresStore) ListArchivedProjects(ctx context.Context) ([]ArchivedProject, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, original_id, name, client_name, type, budget_total,
			start_date, end_date, archived_at, data
		FROM archived_projects
		ORDER BY archived_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list archived projects: %w", err)
	}
	defer rows.Close()

	items := make([]ArchivedProject, 0)
	for rows.Next() {
		var item ArchivedProject
		if err := rows.Scan(&item.ID, &item.OriginalID, &item.Name, &item.ClientName, &item.Type,
			&item.BudgetTotal, &item.StartDate, &item.EndDate, &item.ArchivedAt, &item.Data); err != nil {
			return nil, fmt.Errorf("scan archived project: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archived projects: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetArchivedProject(ctx context.Context, id int64) (ArchivedProject, error) {
	var item ArchivedProject
	err := s.db.QueryRowContext(ctx, `
		SELECT id, original_id, name, client_name, type, budget_total,
			start_date, end_date, archived_at, data
		FROM archived_projects
		WHERE id=$1
	`, id).Scan(&item.ID, &item.OriginalID, &item.Name, &item.ClientName, &item.Type,
		&item.BudgetTotal, &item.StartDate, &item.EndDate, &item.ArchivedAt, &item.Data)
	if err != nil {
		return ArchivedProject{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertArchivedProject(ctx context.Context, item ArchivedProject) (ArchivedProject, error) {
	var saved ArchivedProject
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO archived_projects (original_id, name, client_name, type, budget_total, start_date, end_date, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, original_id, name, client_name, type, budget_total, start_date, end_date, archived_at, data
	`, item.OriginalID, item.Name, item.ClientName, item.Type, item.BudgetTotal, item.StartDate, item.EndDate, item.Data).
		Scan(&saved.ID, &saved.OriginalID, &saved.Name, &saved.ClientName, &saved.Type,
			&saved.BudgetTotal, &saved.StartDate, &saved.EndDate, &saved.ArchivedAt, &saved.Data)
	if err != nil {
		return ArchivedProject{}, fmt.Errorf("insert archived project: %w", err)
	}
	return saved, nil
}

func (s *PostgresStore) DeleteArchivedProject(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM archived_projects WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete archived project: %w", err)
	}
	return nil
}

// ============ PROJECT TYPES ============

func (s *PostgresStore) ListProjectTypes(ctx context.Context) ([]ProjectType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, name, color, phases
		FROM project_types
		ORDER BY key
	`)
	if err != nil {
		return nil, fmt.Errorf("list project types: %w", err)
	}
	defer rows.Close()

	items := make([]ProjectType, 0)
	for rows.Next() {
		var item ProjectType
		if err := rows.Scan(&item.Key, &item.Name, &item.Color, &item.Phases); err != nil {
			return nil, fmt.Errorf("scan project type: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project types: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpsertProjectType(ctx context.Context, pt ProjectType) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_types (key, name, color, phases)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET name=EXCLUDED.name, color=EXCLUDED.color, phases=EXCLUDED.phases
	`, pt.Key, pt.Name, pt.Color, pt.Phases)
	if err != nil {
		return fmt.Errorf("upsert project type: %w", err)
	}
	return nil
}

// ============ MAINTENANCE ============

// clearableTables enumerates every table the reset endpoint may wipe, in
// child-first order so foreign keys never block a delete.
var clearableTables = []string{
	"project_phases",
	"project_team",
	"project_invoices",
	"project_notes",
	"archived_projects",
	"projects",
	"clients",
	"team_members",
	"project_types",
}

func ClearableTables() []string {
	out := make([]string, len(clearableTables))
	copy(out, clearableTables)
	return out
}

func (s *PostgresStore) ClearTable(ctx context.Context, table string) (int64, error) {
	allowed := false
	for _, name := range clearableTables {
		if name == table {
			allowed = true
			break
		}
	}
	if !allowed {
		return 0, fmt.Errorf("clear table: %q is not clearable", table)
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM `+table)
	if err != nil {
		return 0, fmt.Errorf("clear table %s: %w", table, err)
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

// ============ HELPERS ============

func (s *PostgresStore) listIDs(ctx context.Context, table string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM `+table+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list %s ids: %w", table, err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s id: %w", table, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s ids: %w", table, err)
	}
	return ids, nil
}

func (s *PostgresStore) deleteExcept(ctx context.Context, table string, keep []int64) (int64, error) {
	var result sql.Result
	var err error
	if len(keep) == 0 {
		result, err = s.db.ExecContext(ctx, `DELETE FROM `+table)
	} else {
		result, err = s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE NOT (id = ANY($1))`, keep)
	}
	if err != nil {
		return 0, fmt.Errorf("prune %s: %w", table, err)
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

func placeholders(offset, count int) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i := 0; i < count; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "$%d", offset+i+1)
	}
	sb.WriteByte(')')
	return sb.String()
}

func (s *PostgresStore) scanReturnedIDs(ctx context.Context, query string, args []any, into []int64, positions []int) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	i := 0
	for rows.Next() {
		if i >= len(positions) {
			break
		}
		if err := rows.Scan(&into[positions[i]]); err != nil {
			return err
		}
		i++
	}
	return rows.Err()
}
