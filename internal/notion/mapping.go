package notion

import "strings"

// property covers the union of Notion property payloads the studio
// databases actually use.
type property struct {
	Title    []richText `json:"title"`
	Status   *nameValue `json:"status"`
	Select   *nameValue `json:"select"`
	People   []nameValue `json:"people"`
	Number   *float64   `json:"number"`
	Date     *dateRange `json:"date"`
	Relation []idValue  `json:"relation"`
}

type richText struct {
	PlainText string `json:"plain_text"`
}

type nameValue struct {
	Name string `json:"name"`
}

type idValue struct {
	ID string `json:"id"`
}

type dateRange struct {
	Start *string `json:"start"`
	End   *string `json:"end"`
}

// Project is a row from the studio's Notion projects database.
type Project struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Status       string   `json:"status"`
	Type         string   `json:"type"`
	AccountOwner []string `json:"accountOwner"`
	Rate         float64  `json:"rate"`
	StartDate    *string  `json:"startDate"`
	EndDate      *string  `json:"endDate"`
	Priority     *string  `json:"priority"`
	LastEdited   string   `json:"lastEdited"`
}

// Task is a row from the studio's Notion tasks database.
type Task struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	ProjectID  *string `json:"projectId"`
	StartDate  *string `json:"startDate"`
	EndDate    *string `json:"endDate"`
	LastEdited string  `json:"lastEdited"`
}

func mapProject(page Page) Project {
	props := page.Properties

	p := Project{
		ID:           page.ID,
		Name:         titleText(props["Project name"], "Untitled"),
		Status:       strings.ToLower(statusName(props["Status"], "pipeline")),
		Type:         strings.ToLower(selectName(props["Type"], "other")),
		AccountOwner: peopleNames(props["Account Owner"]),
		Rate:         numberValue(props["Rate $"]),
		LastEdited:   page.LastEditedTime,
	}
	if dates, ok := props["Dates"]; ok && dates.Date != nil {
		p.StartDate = dates.Date.Start
		p.EndDate = dates.Date.End
		if p.EndDate == nil {
			p.EndDate = dates.Date.Start
		}
	}
	if priority, ok := props["Priority"]; ok && priority.Select != nil {
		name := priority.Select.Name
		p.Priority = &name
	}
	return p
}

func mapTask(page Page) Task {
	props := page.Properties

	t := Task{
		ID:         page.ID,
		Name:       titleText(props["Name"], "Untitled"),
		Status:     statusName(props["Status"], "Not Started"),
		LastEdited: page.LastEditedTime,
	}
	if project, ok := props["Project"]; ok && len(project.Relation) > 0 {
		id := project.Relation[0].ID
		t.ProjectID = &id
	}
	if date, ok := props["Date"]; ok && date.Date != nil {
		t.StartDate = date.Date.Start
		t.EndDate = date.Date.End
		if t.EndDate == nil {
			t.EndDate = date.Date.Start
		}
	}
	return t
}

func titleText(p property, fallback string) string {
	if len(p.Title) == 0 || strings.TrimSpace(p.Title[0].PlainText) == "" {
		return fallback
	}
	return p.Title[0].PlainText
}

func statusName(p property, fallback string) string {
	if p.Status == nil || p.Status.Name == "" {
		return fallback
	}
	return p.Status.Name
}

func selectName(p property, fallback string) string {
	if p.Select == nil || p.Select.Name == "" {
		return fallback
	}
	return p.Select.Name
}

func peopleNames(p property) []string {
	names := make([]string, 0, len(p.People))
	for _, person := range p.People {
		names = append(names, person.Name)
	}
	return names
}

func numberValue(p property) float64 {
	if p.Number == nil {
		return 0
	}
	return *p.Number
}
