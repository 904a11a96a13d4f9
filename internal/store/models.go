package store

import (
	"encoding/json"
	"time"
)

type TeamMember struct {
	ID       int64
	Name     string
	Role     string
	Capacity float64
	Rate     float64
	Color    string
}

type Client struct {
	ID       int64
	Name     string
	Contact  string
	Email    string
	Phone    string
	Industry string
	Notes    string
	Archived bool
}

// ProjectRecord is the projects table row. ID zero means "new row,
// let the database assign a key".
type ProjectRecord struct {
	ID             int64
	NotionID       *string
	Name           string
	ClientID       *int64
	Status         string
	Type           string
	CurrentPhase   int
	HoursPerWeek   float64
	StartDate      *time.Time
	EndDate        *time.Time
	BudgetTotal    float64
	BudgetCurrency string
	EstimatedHours float64
	LoggedHours    float64
	Archived       bool
}

// Project is a fully assembled project: the base record plus the four
// owned relation tables and the denormalized client name.
type Project struct {
	ProjectRecord
	ClientName    string
	Phases        []Phase
	TeamMemberIDs []int64
	Invoices      []Invoice
	Notes         []Note
}

type Phase struct {
	ID         int64
	ProjectID  int64
	NotionID   *string
	PhaseIndex int
	Name       string
	Status     string
	StartDate  *time.Time
	EndDate    *time.Time
}

type TeamLink struct {
	ProjectID    int64
	TeamMemberID int64
}

type Invoice struct {
	ID        int64
	ProjectID int64
	Name      string
	Amount    float64
	Status    string
	DueDate   *time.Time
}

type Note struct {
	ID        int64
	ProjectID int64
	Content   string
	Author    string
	CreatedAt time.Time
}

// ArchivedProject keeps a denormalized listing row plus the full opaque
// point-in-time copy of the project state in Data.
type ArchivedProject struct {
	ID          int64
	OriginalID  int64
	Name        string
	ClientName  string
	Type        string
	BudgetTotal float64
	StartDate   *time.Time
	EndDate     *time.Time
	ArchivedAt  time.Time
	Data        json.RawMessage
}

// ProjectType is keyed configuration, one row per type key. Phases holds
// the ordered phase template list as raw JSON.
type ProjectType struct {
	Key    string
	Name   string
	Color  string
	Phases json.RawMessage
}
