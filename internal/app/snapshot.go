package app

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"atelier/api/internal/store"
)

// Snapshot is the whole-world payload the frontend posts to /api/sync.
// Pointer slices distinguish an absent section, which is skipped, from an
// empty one, which prunes the corresponding table.
type Snapshot struct {
	Team         *[]TeamMemberInput          `json:"team"`
	Clients      *[]ClientInput              `json:"clients"`
	Projects     *[]ProjectInput             `json:"projects"`
	ProjectTypes map[string]ProjectTypeInput `json:"projectTypes"`
}

type TeamMemberInput struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Role     string   `json:"role"`
	Capacity *float64 `json:"capacity"`
	Rate     *float64 `json:"rate"`
	Color    string   `json:"color"`
}

type ClientInput struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Contact  string `json:"contact"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Industry string `json:"industry"`
	Notes    string `json:"notes"`
	Archived bool   `json:"archived"`
}

type ProjectInput struct {
	ID             int64          `json:"id"`
	NotionID       *string        `json:"notionId"`
	Name           string         `json:"name"`
	ClientID       *int64         `json:"clientId"`
	Status         string         `json:"status"`
	Type           string         `json:"type"`
	CurrentPhase   int            `json:"currentPhase"`
	HoursPerWeek   *float64       `json:"hoursPerWeek"`
	StartDate      string         `json:"startDate"`
	EndDate        string         `json:"endDate"`
	Budget         *BudgetInput   `json:"budget"`
	EstimatedHours float64        `json:"estimatedHours"`
	LoggedHours    float64        `json:"loggedHours"`
	Phases         []PhaseInput   `json:"phases"`
	Team           []any          `json:"team"`
	Notes          []NoteInput    `json:"notes"`
	Archived       bool           `json:"archived"`
}

type BudgetInput struct {
	Total    float64        `json:"total"`
	Currency string         `json:"currency"`
	Invoices []InvoiceInput `json:"invoices"`
}

type InvoiceInput struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Status      string  `json:"status"`
	DueDate     string  `json:"dueDate"`
}

type PhaseInput struct {
	ID       *int    `json:"id"`
	NotionID *string `json:"notionId"`
	Name     string  `json:"name"`
	Status   string  `json:"status"`
	Start    string  `json:"start"`
	End      string  `json:"end"`
}

type NoteInput struct {
	Content string `json:"content"`
	Author  string `json:"author"`
}

type ProjectTypeInput struct {
	Name   string          `json:"name"`
	Color  string          `json:"color"`
	Phases json.RawMessage `json:"phases"`
}

const (
	defaultCapacity     = 40
	defaultColor        = "#7d7259"
	defaultHoursPerWeek = 20
	defaultCurrency     = "USD"
	defaultPhaseStatus  = "upcoming"
	defaultNoteAuthor   = "Unknown"
)

func normalizeTeamMember(in TeamMemberInput) store.TeamMember {
	m := store.TeamMember{
		ID:       in.ID,
		Name:     strings.TrimSpace(in.Name),
		Role:     strings.TrimSpace(in.Role),
		Capacity: defaultCapacity,
		Color:    in.Color,
	}
	if in.Capacity != nil {
		m.Capacity = *in.Capacity
	}
	if in.Rate != nil {
		m.Rate = *in.Rate
	}
	if m.Color == "" {
		m.Color = defaultColor
	}
	return m
}

func normalizeClient(in ClientInput) store.Client {
	return store.Client{
		ID:       in.ID,
		Name:     strings.TrimSpace(in.Name),
		Contact:  in.Contact,
		Email:    in.Email,
		Phone:    in.Phone,
		Industry: in.Industry,
		Notes:    in.Notes,
		Archived: in.Archived,
	}
}

func normalizeProject(in ProjectInput) store.ProjectRecord {
	rec := store.ProjectRecord{
		ID:             in.ID,
		NotionID:       in.NotionID,
		Name:           strings.TrimSpace(in.Name),
		ClientID:       in.ClientID,
		Status:         in.Status,
		Type:           in.Type,
		CurrentPhase:   in.CurrentPhase,
		HoursPerWeek:   defaultHoursPerWeek,
		StartDate:      parseDate(in.StartDate),
		EndDate:        parseDate(in.EndDate),
		BudgetCurrency: defaultCurrency,
		EstimatedHours: in.EstimatedHours,
		LoggedHours:    in.LoggedHours,
		Archived:       in.Archived,
	}
	if in.HoursPerWeek != nil {
		rec.HoursPerWeek = *in.HoursPerWeek
	}
	if in.Budget != nil {
		rec.BudgetTotal = in.Budget.Total
		if in.Budget.Currency != "" {
			rec.BudgetCurrency = in.Budget.Currency
		}
	}
	return rec
}

func normalizePhases(projectID int64, phases []PhaseInput) []store.Phase {
	out := make([]store.Phase, 0, len(phases))
	for i, in := range phases {
		// Phases without an explicit id fall back to their array position,
		// matching the 0-based index the planner UI assigns.
		index := i
		if in.ID != nil {
			index = *in.ID
		}
		status := in.Status
		if status == "" {
			status = defaultPhaseStatus
		}
		out = append(out, store.Phase{
			ProjectID:  projectID,
			NotionID:   in.NotionID,
			PhaseIndex: index,
			Name:       in.Name,
			Status:     status,
			StartDate:  parseDate(in.Start),
			EndDate:    parseDate(in.End),
		})
	}
	return out
}

// normalizeTeamLinks coerces the frontend's loosely typed team array into
// member ids, dropping duplicates and ids outside the live member set.
func normalizeTeamLinks(projectID int64, team []any, liveMembers map[int64]bool) ([]store.TeamLink, int) {
	seen := make(map[int64]bool)
	out := make([]store.TeamLink, 0, len(team))
	dropped := 0
	for _, entry := range team {
		id, ok := coerceMemberID(entry)
		if !ok || seen[id] || !liveMembers[id] {
			dropped++
			continue
		}
		seen[id] = true
		out = append(out, store.TeamLink{ProjectID: projectID, TeamMemberID: id})
	}
	return out, dropped
}

func coerceMemberID(entry any) (int64, bool) {
	switch v := entry.(type) {
	case float64:
		return int64(v), true
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return id, err == nil
	case map[string]any:
		if inner, ok := v["id"]; ok {
			return coerceMemberID(inner)
		}
	case json.Number:
		id, err := v.Int64()
		return id, err == nil
	}
	return 0, false
}

func normalizeInvoices(projectID int64, budget *BudgetInput) []store.Invoice {
	if budget == nil {
		return nil
	}
	out := make([]store.Invoice, 0, len(budget.Invoices))
	for _, in := range budget.Invoices {
		out = append(out, store.Invoice{
			ProjectID: projectID,
			Name:      in.Description,
			Amount:    in.Amount,
			Status:    in.Status,
			DueDate:   parseDate(in.DueDate),
		})
	}
	return out
}

func normalizeNotes(projectID int64, notes []NoteInput) []store.Note {
	out := make([]store.Note, 0, len(notes))
	for _, in := range notes {
		if strings.TrimSpace(in.Content) == "" {
			continue
		}
		author := in.Author
		if author == "" {
			author = defaultNoteAuthor
		}
		out = append(out, store.Note{
			ProjectID: projectID,
			Content:   in.Content,
			Author:    author,
		})
	}
	return out
}

// parseDate accepts the frontend's plain dates as well as full timestamps.
// Anything unparseable comes back nil rather than failing the sync.
func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return time.Now().Format("2006-01-02")
	}
	return t.Format("2006-01-02")
}
