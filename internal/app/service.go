package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"atelier/api/internal/backup"
	"atelier/api/internal/cache"
	"atelier/api/internal/config"
	"atelier/api/internal/export"
	"atelier/api/internal/notion"
	"atelier/api/internal/search"
	"atelier/api/internal/store"
	"atelier/api/internal/util"
)

type dataStore interface {
	Ping(ctx context.Context) error

	ListTeamMembers(context.Context) ([]store.TeamMember, error)
	ListTeamMemberIDs(context.Context) ([]int64, error)
	UpsertTeamMembers(context.Context, []store.TeamMember) error
	UpsertTeamMember(context.Context, store.TeamMember) (store.TeamMember, error)
	DeleteTeamMember(context.Context, int64) error
	DeleteTeamMembersExcept(context.Context, []int64) (int64, error)

	ListClients(context.Context) ([]store.Client, error)
	ListClientIDs(context.Context) ([]int64, error)
	UpsertClients(context.Context, []store.Client) error
	UpsertClient(context.Context, store.Client) (store.Client, error)
	DeleteClient(context.Context, int64) error
	DeleteClientsExcept(context.Context, []int64) (int64, error)

	ListProjects(context.Context) ([]store.Project, error)
	ListProjectIDs(context.Context) ([]int64, error)
	UpsertProjects(context.Context, []store.ProjectRecord) ([]int64, error)
	UpsertProjectRecord(context.Context, store.ProjectRecord) (int64, error)
	DeleteProject(context.Context, int64) error
	DeleteProjectsExcept(context.Context, []int64) (int64, error)

	DeleteProjectPhases(context.Context, []int64) error
	DeleteProjectTeamLinks(context.Context, []int64) error
	DeleteProjectInvoices(context.Context, []int64) error
	DeleteProjectNotes(context.Context, []int64) error
	InsertProjectPhases(context.Context, []store.Phase) error
	InsertProjectTeamLinks(context.Context, []store.TeamLink) error
	InsertProjectInvoices(context.Context, []store.Invoice) error
	InsertProjectNotes(context.Context, []store.Note) error
	InsertProjectNote(context.Context, store.Note) (store.Note, error)

	ListArchivedProjects(context.Context) ([]store.ArchivedProject, error)
	GetArchivedProject(context.Context, int64) (store.ArchivedProject, error)
	InsertArchivedProject(context.Context, store.ArchivedProject) (store.ArchivedProject, error)
	DeleteArchivedProject(context.Context, int64) error

	ListProjectTypes(context.Context) ([]store.ProjectType, error)
	UpsertProjectType(context.Context, store.ProjectType) error

	ClearTable(context.Context, string) (int64, error)
}

// Options carries the optional collaborators. Every field may be nil; the
// service degrades to whatever is configured.
type Options struct {
	Store  *store.PostgresStore
	Cache  *cache.Cache
	Search *search.Service
	Notion *notion.Service
	Export *export.Service
	Backup *backup.Service
}

type Service struct {
	cfg    config.Config
	store  dataStore
	cache  *cache.Cache
	search *search.Service
	notion *notion.Service
	export *export.Service
	backup *backup.Service
}

func New(cfg config.Config, opts Options) *Service {
	svc := &Service{
		cfg:    cfg,
		cache:  opts.Cache,
		search: opts.Search,
		notion: opts.Notion,
		export: opts.Export,
		backup: opts.Backup,
	}
	if opts.Store != nil {
		svc.store = opts.Store
	}
	return svc
}

// Configured reports whether a database is wired in.
func (s *Service) Configured() bool {
	return s.store != nil
}

func (s *Service) Ping(ctx context.Context) error {
	if s.store == nil {
		return ErrNotConfigured
	}
	return s.store.Ping(ctx)
}

// ============ VIEWS ============

// The view types mirror the JSON shapes the frontend persists and reads
// back. Dates render as plain YYYY-MM-DD; a null date materializes as
// today rather than breaking the planner grid.

type TeamMemberView struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Role     string  `json:"role"`
	Capacity float64 `json:"capacity"`
	Rate     float64 `json:"rate"`
	Color    string  `json:"color"`
}

type ClientView struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Contact  string `json:"contact"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Industry string `json:"industry"`
	Notes    string `json:"notes"`
	Archived bool   `json:"archived"`
}

type PhaseView struct {
	ID       int     `json:"id"`
	DBID     int64   `json:"dbId"`
	NotionID *string `json:"notionId"`
	Name     string  `json:"name"`
	Status   string  `json:"status"`
	Start    string  `json:"start"`
	End      string  `json:"end"`
}

type InvoiceView struct {
	ID          int64   `json:"id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Status      string  `json:"status"`
	DueDate     string  `json:"dueDate"`
}

type BudgetView struct {
	Total    float64       `json:"total"`
	Currency string        `json:"currency"`
	Invoices []InvoiceView `json:"invoices"`
}

type NoteView struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
	Author  string `json:"author"`
	Date    string `json:"date"`
}

type ProjectView struct {
	ID             int64       `json:"id"`
	NotionID       *string     `json:"notionId"`
	Name           string      `json:"name"`
	ClientID       *int64      `json:"clientId"`
	ClientName     string      `json:"clientName"`
	Status         string      `json:"status"`
	Type           string      `json:"type"`
	CurrentPhase   int         `json:"currentPhase"`
	HoursPerWeek   float64     `json:"hoursPerWeek"`
	StartDate      string      `json:"startDate"`
	EndDate        string      `json:"endDate"`
	Budget         BudgetView  `json:"budget"`
	EstimatedHours float64     `json:"estimatedHours"`
	LoggedHours    float64     `json:"loggedHours"`
	Phases         []PhaseView `json:"phases"`
	Team           []int64     `json:"team"`
	Notes          []NoteView  `json:"notes"`
	Archived       bool        `json:"archived"`
}

type ArchivedView struct {
	ID          int64           `json:"id"`
	OriginalID  int64           `json:"originalId"`
	Name        string          `json:"name"`
	ClientName  string          `json:"clientName"`
	Type        string          `json:"type"`
	BudgetTotal float64         `json:"budgetTotal"`
	StartDate   string          `json:"startDate"`
	EndDate     string          `json:"endDate"`
	ArchivedAt  string          `json:"archivedAt"`
	Data        json.RawMessage `json:"data"`
}

type ProjectTypeView struct {
	Name   string          `json:"name"`
	Color  string          `json:"color"`
	Phases json.RawMessage `json:"phases"`
}

type FullDataResponse struct {
	Team             []TeamMemberView           `json:"team"`
	Clients          []ClientView               `json:"clients"`
	Projects         []ProjectView              `json:"projects"`
	ArchivedProjects []ArchivedView             `json:"archivedProjects"`
	ProjectTypes     map[string]ProjectTypeView `json:"projectTypes"`
}

// FullDataEnvelope is the GET sync response shape.
type FullDataEnvelope struct {
	Success  bool             `json:"success"`
	Data     FullDataResponse `json:"data"`
	SyncedAt string           `json:"syncedAt"`
}

func viewTeamMember(m store.TeamMember) TeamMemberView {
	return TeamMemberView{ID: m.ID, Name: m.Name, Role: m.Role, Capacity: m.Capacity, Rate: m.Rate, Color: m.Color}
}

func viewClient(c store.Client) ClientView {
	return ClientView{ID: c.ID, Name: c.Name, Contact: c.Contact, Email: c.Email, Phone: c.Phone, Industry: c.Industry, Notes: c.Notes, Archived: c.Archived}
}

func viewProject(p store.Project) ProjectView {
	v := ProjectView{
		ID:             p.ID,
		NotionID:       p.NotionID,
		Name:           p.Name,
		ClientID:       p.ClientID,
		ClientName:     p.ClientName,
		Status:         p.Status,
		Type:           p.Type,
		CurrentPhase:   p.CurrentPhase,
		HoursPerWeek:   p.HoursPerWeek,
		StartDate:      formatDate(p.StartDate),
		EndDate:        formatDate(p.EndDate),
		Budget:         BudgetView{Total: p.BudgetTotal, Currency: p.BudgetCurrency, Invoices: []InvoiceView{}},
		EstimatedHours: p.EstimatedHours,
		LoggedHours:    p.LoggedHours,
		Phases:         []PhaseView{},
		Team:           []int64{},
		Notes:          []NoteView{},
		Archived:       p.Archived,
	}
	for _, ph := range p.Phases {
		v.Phases = append(v.Phases, PhaseView{
			ID:       ph.PhaseIndex,
			DBID:     ph.ID,
			NotionID: ph.NotionID,
			Name:     ph.Name,
			Status:   ph.Status,
			Start:    formatDate(ph.StartDate),
			End:      formatDate(ph.EndDate),
		})
	}
	v.Team = append(v.Team, p.TeamMemberIDs...)
	for _, inv := range p.Invoices {
		v.Budget.Invoices = append(v.Budget.Invoices, InvoiceView{
			ID:          inv.ID,
			Description: inv.Name,
			Amount:      inv.Amount,
			Status:      inv.Status,
			DueDate:     formatDate(inv.DueDate),
		})
	}
	for _, note := range p.Notes {
		v.Notes = append(v.Notes, NoteView{
			ID:      note.ID,
			Content: note.Content,
			Author:  note.Author,
			Date:    note.CreatedAt.Format("2006-01-02"),
		})
	}
	return v
}

func viewArchived(a store.ArchivedProject) ArchivedView {
	return ArchivedView{
		ID:          a.ID,
		OriginalID:  a.OriginalID,
		Name:        a.Name,
		ClientName:  a.ClientName,
		Type:        a.Type,
		BudgetTotal: a.BudgetTotal,
		StartDate:   formatDate(a.StartDate),
		EndDate:     formatDate(a.EndDate),
		ArchivedAt:  a.ArchivedAt.UTC().Format(time.RFC3339),
		Data:        a.Data,
	}
}

// ============ FULL DATA ============

// FullData returns the whole planner payload as marshaled JSON, serving
// from the Redis cache when warm.
func (s *Service) FullData(ctx context.Context) (json.RawMessage, error) {
	if s.store == nil {
		return nil, ErrNotConfigured
	}
	if s.cache != nil {
		if cached, ok := s.cache.GetFullData(ctx); ok {
			return cached, nil
		}
	}

	var (
		wg       sync.WaitGroup
		team     []store.TeamMember
		clients  []store.Client
		projects []store.Project
		archived []store.ArchivedProject
		types    []store.ProjectType
		errs     [5]error
	)
	wg.Add(5)
	go func() { defer wg.Done(); team, errs[0] = s.store.ListTeamMembers(ctx) }()
	go func() { defer wg.Done(); clients, errs[1] = s.store.ListClients(ctx) }()
	go func() { defer wg.Done(); projects, errs[2] = s.store.ListProjects(ctx) }()
	go func() { defer wg.Done(); archived, errs[3] = s.store.ListArchivedProjects(ctx) }()
	go func() { defer wg.Done(); types, errs[4] = s.store.ListProjectTypes(ctx) }()
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	resp := FullDataResponse{
		Team:             make([]TeamMemberView, 0, len(team)),
		Clients:          make([]ClientView, 0, len(clients)),
		Projects:         make([]ProjectView, 0, len(projects)),
		ArchivedProjects: make([]ArchivedView, 0, len(archived)),
		ProjectTypes:     make(map[string]ProjectTypeView, len(types)),
	}
	for _, m := range team {
		resp.Team = append(resp.Team, viewTeamMember(m))
	}
	for _, c := range clients {
		resp.Clients = append(resp.Clients, viewClient(c))
	}
	for _, p := range projects {
		resp.Projects = append(resp.Projects, viewProject(p))
	}
	for _, a := range archived {
		resp.ArchivedProjects = append(resp.ArchivedProjects, viewArchived(a))
	}
	for _, pt := range types {
		resp.ProjectTypes[pt.Key] = ProjectTypeView{Name: pt.Name, Color: pt.Color, Phases: pt.Phases}
	}

	payload, err := json.Marshal(FullDataEnvelope{
		Success:  true,
		Data:     resp,
		SyncedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal full data: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.SetFullData(ctx, payload); err != nil {
			log.Printf("cache full data: %v", err)
		}
	}
	return payload, nil
}

func (s *Service) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFullData(ctx); err != nil {
		log.Printf("invalidate cache: %v", err)
	}
}

// ============ SNAPSHOT SYNC ============

// SaveSnapshot runs the whole-world reconcile. raw is the original request
// body, archived to object storage before anything is overwritten.
func (s *Service) SaveSnapshot(ctx context.Context, snap Snapshot, raw []byte) (SyncResult, error) {
	if s.store == nil {
		return SyncResult{}, ErrNotConfigured
	}

	if s.cache != nil {
		ok, err := s.cache.AcquireSyncLock(ctx)
		if err != nil {
			log.Printf("sync lock: %v", err)
		} else if !ok {
			return SyncResult{}, domainError(http.StatusConflict, "SYNC_IN_PROGRESS", "Another sync is already running", nil)
		} else {
			defer func() {
				if err := s.cache.ReleaseSyncLock(context.WithoutCancel(ctx)); err != nil {
					log.Printf("release sync lock: %v", err)
				}
			}()
		}
	}

	syncID := util.NewID("sync")
	if s.backup != nil && len(raw) > 0 {
		if key, err := s.backup.StoreSnapshot(ctx, raw); err != nil {
			log.Printf("sync %s: snapshot backup failed: %v", syncID, err)
		} else {
			log.Printf("sync %s: snapshot archived as %s", syncID, key)
		}
	}

	result, err := s.Reconcile(ctx, snap)
	if err != nil {
		return SyncResult{}, err
	}
	log.Printf("sync %s: success=%t saved=%d failed=%d errors=%d",
		syncID, result.Success, result.ProjectsSaved, result.ProjectsFailed, len(result.Errors))

	s.invalidateCache(ctx)
	if s.search != nil {
		s.search.ReindexAllFromPG(context.WithoutCancel(ctx))
	}
	return result, nil
}

// ============ TEAM ============

func (s *Service) SaveTeamMember(ctx context.Context, in TeamMemberInput) (TeamMemberView, error) {
	if s.store == nil {
		return TeamMemberView{}, ErrNotConfigured
	}
	saved, err := s.store.UpsertTeamMember(ctx, normalizeTeamMember(in))
	if err != nil {
		return TeamMemberView{}, err
	}
	s.invalidateCache(ctx)
	return viewTeamMember(saved), nil
}

func (s *Service) DeleteTeamMember(ctx context.Context, id int64) error {
	if s.store == nil {
		return ErrNotConfigured
	}
	if err := s.store.DeleteTeamMember(ctx, id); err != nil {
		return err
	}
	s.invalidateCache(ctx)
	return nil
}

// ============ CLIENTS ============

func (s *Service) SaveClient(ctx context.Context, in ClientInput) (ClientView, error) {
	if s.store == nil {
		return ClientView{}, ErrNotConfigured
	}
	saved, err := s.store.UpsertClient(ctx, normalizeClient(in))
	if err != nil {
		return ClientView{}, err
	}
	s.invalidateCache(ctx)
	return viewClient(saved), nil
}

func (s *Service) DeleteClient(ctx context.Context, id int64) error {
	if s.store == nil {
		return ErrNotConfigured
	}
	if err := s.store.DeleteClient(ctx, id); err != nil {
		return err
	}
	s.invalidateCache(ctx)
	return nil
}

// ============ PROJECTS ============

// SaveProject upserts a single project and rewrites its relation tables,
// the same path a snapshot sync takes for each project.
func (s *Service) SaveProject(ctx context.Context, in ProjectInput) (ProjectView, error) {
	if s.store == nil {
		return ProjectView{}, ErrNotConfigured
	}

	rec := normalizeProject(in)
	id, err := s.store.UpsertProjectRecord(ctx, rec)
	if err != nil && store.IsClientLinkViolation(err) {
		rec.ClientID = nil
		id, err = s.store.UpsertProjectRecord(ctx, rec)
	}
	if err != nil {
		return ProjectView{}, err
	}

	res := SyncResult{Success: true}
	s.rewriteRelations(ctx, []int64{id}, []ProjectInput{in}, &res)
	for _, msg := range res.Errors {
		log.Printf("save project %d: %s", id, msg)
	}

	s.invalidateCache(ctx)
	return s.projectByID(ctx, id)
}

func (s *Service) projectByID(ctx context.Context, id int64) (ProjectView, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return ProjectView{}, err
	}
	for _, p := range projects {
		if p.ID == id {
			return viewProject(p), nil
		}
	}
	return ProjectView{}, domainError(http.StatusNotFound, "NOT_FOUND", "Project not found", nil)
}

func (s *Service) DeleteProject(ctx context.Context, id int64) error {
	if s.store == nil {
		return ErrNotConfigured
	}
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.invalidateCache(ctx)
	return nil
}

func (s *Service) AddProjectNote(ctx context.Context, projectID int64, content, author string) (NoteView, error) {
	if s.store == nil {
		return NoteView{}, ErrNotConfigured
	}
	if content == "" {
		return NoteView{}, domainError(http.StatusBadRequest, "INVALID_BODY", "Note content is required", nil)
	}
	if author == "" {
		author = defaultNoteAuthor
	}
	note, err := s.store.InsertProjectNote(ctx, store.Note{ProjectID: projectID, Content: content, Author: author})
	if err != nil {
		return NoteView{}, err
	}
	s.invalidateCache(ctx)
	return NoteView{ID: note.ID, Content: note.Content, Author: note.Author, Date: note.CreatedAt.Format("2006-01-02")}, nil
}

// ============ ARCHIVE ============

// ArchiveProject snapshots the project into archived_projects and removes
// it from the active tables. The stored data blob is the full project
// view, so a restore round-trips everything.
func (s *Service) ArchiveProject(ctx context.Context, id int64) (ArchivedView, error) {
	if s.store == nil {
		return ArchivedView{}, ErrNotConfigured
	}

	view, err := s.projectByID(ctx, id)
	if err != nil {
		return ArchivedView{}, err
	}
	data, err := json.Marshal(view)
	if err != nil {
		return ArchivedView{}, fmt.Errorf("marshal project: %w", err)
	}

	archived := store.ArchivedProject{
		OriginalID:  view.ID,
		Name:        view.Name,
		ClientName:  view.ClientName,
		Type:        view.Type,
		BudgetTotal: view.Budget.Total,
		StartDate:   parseDate(view.StartDate),
		EndDate:     parseDate(view.EndDate),
		Data:        data,
	}
	saved, err := s.store.InsertArchivedProject(ctx, archived)
	if err != nil {
		return ArchivedView{}, err
	}
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return ArchivedView{}, err
	}
	s.invalidateCache(ctx)
	return viewArchived(saved), nil
}

func (s *Service) ListArchive(ctx context.Context) ([]ArchivedView, error) {
	if s.store == nil {
		return nil, ErrNotConfigured
	}
	items, err := s.store.ListArchivedProjects(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]ArchivedView, 0, len(items))
	for _, item := range items {
		views = append(views, viewArchived(item))
	}
	return views, nil
}

// RestoreProject rebuilds an archived project as a new active project
// and drops the archive entry.
func (s *Service) RestoreProject(ctx context.Context, archiveID int64) (ProjectView, error) {
	if s.store == nil {
		return ProjectView{}, ErrNotConfigured
	}

	archived, err := s.store.GetArchivedProject(ctx, archiveID)
	if err != nil {
		if err == sql.ErrNoRows {
			return ProjectView{}, domainError(http.StatusNotFound, "NOT_FOUND", "Archived project not found", nil)
		}
		return ProjectView{}, err
	}

	var input ProjectInput
	if err := json.Unmarshal(archived.Data, &input); err != nil {
		return ProjectView{}, fmt.Errorf("decode archived project: %w", err)
	}
	// Restore as a fresh row; the original id may have been reused.
	input.ID = 0
	input.Archived = false

	view, err := s.SaveProject(ctx, input)
	if err != nil {
		return ProjectView{}, err
	}
	if err := s.store.DeleteArchivedProject(ctx, archiveID); err != nil {
		return ProjectView{}, err
	}
	s.invalidateCache(ctx)
	return view, nil
}

func (s *Service) DeleteArchived(ctx context.Context, id int64) error {
	if s.store == nil {
		return ErrNotConfigured
	}
	if err := s.store.DeleteArchivedProject(ctx, id); err != nil {
		return err
	}
	s.invalidateCache(ctx)
	return nil
}

// ============ RESET / DEBUG ============

// Reset wipes every table, child tables first.
func (s *Service) Reset(ctx context.Context) (map[string]int64, error) {
	if s.store == nil {
		return nil, ErrNotConfigured
	}
	cleared := make(map[string]int64)
	for _, table := range store.ClearableTables() {
		n, err := s.store.ClearTable(ctx, table)
		if err != nil {
			return nil, err
		}
		cleared[table] = n
	}
	s.invalidateCache(ctx)
	return cleared, nil
}

// Debug reports which integrations are configured, without leaking
// credentials.
func (s *Service) Debug(ctx context.Context) map[string]any {
	dbStatus := "not configured"
	if s.store != nil {
		dbStatus = "ok"
		if err := s.store.Ping(ctx); err != nil {
			dbStatus = "error: " + err.Error()
		}
	}
	return map[string]any{
		"database":    dbStatus,
		"redis":       s.cache != nil,
		"meilisearch": s.cfg.MeiliURL != "",
		"objectStore": s.backup != nil,
		"notion":      s.notion != nil,
		"checkedAt":   time.Now().UTC().Format(time.RFC3339),
	}
}

// DebugData reports per-table row counts plus the raw id sets behind them.
func (s *Service) DebugData(ctx context.Context) (map[string]any, error) {
	if s.store == nil {
		return nil, ErrNotConfigured
	}
	teamIDs, err := s.store.ListTeamMemberIDs(ctx)
	if err != nil {
		return nil, err
	}
	clientIDs, err := s.store.ListClientIDs(ctx)
	if err != nil {
		return nil, err
	}
	projectIDs, err := s.store.ListProjectIDs(ctx)
	if err != nil {
		return nil, err
	}
	archived, err := s.store.ListArchivedProjects(ctx)
	if err != nil {
		return nil, err
	}
	types, err := s.store.ListProjectTypes(ctx)
	if err != nil {
		return nil, err
	}
	typeKeys := make([]string, 0, len(types))
	for _, pt := range types {
		typeKeys = append(typeKeys, pt.Key)
	}
	return map[string]any{
		"counts": map[string]int{
			"teamMembers":      len(teamIDs),
			"clients":          len(clientIDs),
			"projects":         len(projectIDs),
			"archivedProjects": len(archived),
			"projectTypes":     len(types),
		},
		"teamMemberIds": teamIDs,
		"clientIds":     clientIDs,
		"projectIds":    projectIDs,
		"projectTypes":  typeKeys,
	}, nil
}

// ============ SEARCH ============

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// ============ NOTION ============

func (s *Service) NotionSync(ctx context.Context) (notion.SyncData, error) {
	if s.notion == nil {
		return notion.SyncData{}, domainError(http.StatusInternalServerError, "NOT_CONFIGURED", "notion not configured", nil)
	}
	return s.notion.FullSync(ctx)
}

func (s *Service) NotionUpdateTask(ctx context.Context, pageID string, patch notion.TaskPatch) (notion.Task, error) {
	if s.notion == nil {
		return notion.Task{}, domainError(http.StatusInternalServerError, "NOT_CONFIGURED", "notion not configured", nil)
	}
	return s.notion.UpdateTask(ctx, pageID, patch)
}

// ============ EXPORT ============

// CapacityReport builds the PDF capacity report from live data. A
// member's assigned hours are each project's weekly hours split evenly
// across its team.
func (s *Service) CapacityReport(ctx context.Context) (*export.Result, error) {
	if s.store == nil {
		return nil, ErrNotConfigured
	}
	if s.export == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not configured", nil)
	}

	members, err := s.store.ListTeamMembers(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	assigned := make(map[int64]float64)
	names := make(map[int64][]string)
	for _, p := range projects {
		if len(p.TeamMemberIDs) == 0 {
			continue
		}
		share := p.HoursPerWeek / float64(len(p.TeamMemberIDs))
		for _, memberID := range p.TeamMemberIDs {
			assigned[memberID] += share
			names[memberID] = append(names[memberID], p.Name)
		}
	}

	data := export.ReportData{GeneratedAt: time.Now()}
	for _, m := range members {
		data.Members = append(data.Members, export.ReportMember{
			Name:          m.Name,
			Role:          m.Role,
			Capacity:      m.Capacity,
			AssignedHours: assigned[m.ID],
			Projects:      names[m.ID],
		})
	}
	for _, p := range projects {
		data.Projects = append(data.Projects, export.ReportProject{
			Name:         p.Name,
			ClientName:   p.ClientName,
			Status:       p.Status,
			Type:         p.Type,
			StartDate:    formatDate(p.StartDate),
			EndDate:      formatDate(p.EndDate),
			HoursPerWeek: p.HoursPerWeek,
			BudgetTotal:  p.BudgetTotal,
			Currency:     p.BudgetCurrency,
			PhaseCount:   len(p.Phases),
			TeamSize:     len(p.TeamMemberIDs),
		})
	}

	return s.export.CapacityReportPDF(data)
}

// ============ BACKUPS ============

func (s *Service) ListBackups(ctx context.Context) ([]backup.SnapshotInfo, error) {
	if s.backup == nil {
		return nil, domainError(http.StatusServiceUnavailable, "BACKUPS_UNAVAILABLE", "Object storage is not configured", nil)
	}
	return s.backup.List(ctx)
}

// ============ LISTS ============

func (s *Service) ListTeam(ctx context.Context) ([]TeamMemberView, error) {
	if s.store == nil {
		return nil, ErrNotConfigured
	}
	members, err := s.store.ListTeamMembers(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]TeamMemberView, 0, len(members))
	for _, m := range members {
		views = append(views, viewTeamMember(m))
	}
	return views, nil
}

func (s *Service) ListClientViews(ctx context.Context) ([]ClientView, error) {
	if s.store == nil {
		return nil, ErrNotConfigured
	}
	clients, err := s.store.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]ClientView, 0, len(clients))
	for _, c := range clients {
		views = append(views, viewClient(c))
	}
	return views, nil
}

func (s *Service) ListProjectViews(ctx context.Context) ([]ProjectView, error) {
	if s.store == nil {
		return nil, ErrNotConfigured
	}
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]ProjectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, viewProject(p))
	}
	return views, nil
}
