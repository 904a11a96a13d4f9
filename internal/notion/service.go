package notion

import (
	"context"
	"sync"
)

// Service exposes the two studio databases as one sync surface.
type Service struct {
	client     *Client
	projectsDB string
	tasksDB    string
}

func NewService(client *Client, projectsDB, tasksDB string) *Service {
	return &Service{client: client, projectsDB: projectsDB, tasksDB: tasksDB}
}

// SyncData is the payload returned by a full sync.
type SyncData struct {
	Projects []Project `json:"projects"`
	Tasks    []Task    `json:"tasks"`
}

// FullSync queries the projects and tasks databases in parallel.
func (s *Service) FullSync(ctx context.Context) (SyncData, error) {
	var (
		wg          sync.WaitGroup
		projects    []Page
		tasks       []Page
		projectsErr error
		tasksErr    error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		projects, projectsErr = s.client.QueryDatabase(ctx, s.projectsDB)
	}()
	go func() {
		defer wg.Done()
		tasks, tasksErr = s.client.QueryDatabase(ctx, s.tasksDB)
	}()
	wg.Wait()

	if projectsErr != nil {
		return SyncData{}, projectsErr
	}
	if tasksErr != nil {
		return SyncData{}, tasksErr
	}

	data := SyncData{
		Projects: make([]Project, 0, len(projects)),
		Tasks:    make([]Task, 0, len(tasks)),
	}
	for _, page := range projects {
		data.Projects = append(data.Projects, mapProject(page))
	}
	for _, page := range tasks {
		data.Tasks = append(data.Tasks, mapTask(page))
	}
	return data, nil
}

// TaskPatch carries the fields a task update may change. Zero values are
// left untouched on the Notion side.
type TaskPatch struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// UpdateTask patches a task page and returns the mapped result.
func (s *Service) UpdateTask(ctx context.Context, pageID string, patch TaskPatch) (Task, error) {
	properties := map[string]any{}
	if patch.Name != "" {
		properties["Name"] = map[string]any{
			"title": []map[string]any{{"text": map[string]any{"content": patch.Name}}},
		}
	}
	if patch.Status != "" {
		properties["Status"] = map[string]any{
			"status": map[string]any{"name": patch.Status},
		}
	}
	if patch.StartDate != "" {
		end := patch.EndDate
		if end == "" {
			end = patch.StartDate
		}
		properties["Date"] = map[string]any{
			"date": map[string]any{"start": patch.StartDate, "end": end},
		}
	}

	page, err := s.client.UpdatePage(ctx, pageID, properties)
	if err != nil {
		return Task{}, err
	}
	return mapTask(page), nil
}
