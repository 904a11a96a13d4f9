package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"atelier/api/internal/store"
)

// SyncResult is the response envelope for a snapshot sync. Success flips
// false only when a critical table (team_members, clients, projects) fails;
// relation table and project type failures are reported but tolerated.
type SyncResult struct {
	Success        bool          `json:"success"`
	Errors         []string      `json:"errors,omitempty"`
	ProjectsSaved  int           `json:"projectsSaved"`
	ProjectsFailed int           `json:"projectsFailed"`
	DebugInfo      SyncDebugInfo `json:"debugInfo"`
	SavedAt        string        `json:"savedAt"`
}

type SyncDebugInfo struct {
	TeamPruned            int64 `json:"teamPruned"`
	ClientsPruned         int64 `json:"clientsPruned"`
	ProjectsPruned        int64 `json:"projectsPruned"`
	DanglingClientLinks   int   `json:"danglingClientLinks"`
	DroppedTeamRefs       int   `json:"droppedTeamRefs"`
	TeamBatchFallback     bool  `json:"teamBatchFallback"`
	ClientsBatchFallback  bool  `json:"clientsBatchFallback"`
	ProjectsBatchFallback bool  `json:"projectsBatchFallback"`
	PhasesWritten         int   `json:"phasesWritten"`
	TeamLinksWritten      int   `json:"teamLinksWritten"`
	InvoicesWritten       int   `json:"invoicesWritten"`
	NotesWritten          int   `json:"notesWritten"`
	ElapsedMS             int64 `json:"elapsedMs"`
}

func (r *SyncResult) fail(msg string) {
	r.Success = false
	r.Errors = append(r.Errors, msg)
}

func (r *SyncResult) warn(msg string) {
	r.Errors = append(r.Errors, msg)
}

// Reconcile makes the database match the posted snapshot. Absent sections
// are left untouched. Each table is pruned to the snapshot's keyed rows
// before its upsert, parents before children, and there is no transaction
// across tables: a mid-sync failure leaves earlier tables written.
func (s *Service) Reconcile(ctx context.Context, snap Snapshot) (SyncResult, error) {
	if s.store == nil {
		return SyncResult{}, ErrNotConfigured
	}

	started := time.Now()
	res := SyncResult{Success: true}

	s.reconcileTeam(ctx, snap.Team, &res)
	s.reconcileClients(ctx, snap.Clients, &res)
	ids, inputs := s.reconcileProjects(ctx, snap.Projects, &res)
	s.rewriteRelations(ctx, ids, inputs, &res)
	s.reconcileProjectTypes(ctx, snap.ProjectTypes, &res)

	res.DebugInfo.ElapsedMS = time.Since(started).Milliseconds()
	res.SavedAt = time.Now().UTC().Format(time.RFC3339)
	return res, nil
}

func (s *Service) reconcileTeam(ctx context.Context, section *[]TeamMemberInput, res *SyncResult) {
	if section == nil {
		return
	}
	members := make([]store.TeamMember, 0, len(*section))
	keep := make([]int64, 0, len(*section))
	for _, in := range *section {
		m := normalizeTeamMember(in)
		members = append(members, m)
		if m.ID != 0 {
			keep = append(keep, m.ID)
		}
	}

	pruned, err := s.store.DeleteTeamMembersExcept(ctx, keep)
	if err != nil {
		res.fail("team_members: prune: " + err.Error())
		return
	}
	res.DebugInfo.TeamPruned = pruned

	if err := s.store.UpsertTeamMembers(ctx, members); err != nil {
		// Batch failed, retry row by row so one bad member cannot sink
		// the rest.
		res.DebugInfo.TeamBatchFallback = true
		for _, m := range members {
			if _, rowErr := s.store.UpsertTeamMember(ctx, m); rowErr != nil {
				res.fail(fmt.Sprintf("team_members: save %q: %v", m.Name, rowErr))
			}
		}
	}
}

func (s *Service) reconcileClients(ctx context.Context, section *[]ClientInput, res *SyncResult) {
	if section == nil {
		return
	}
	clients := make([]store.Client, 0, len(*section))
	keep := make([]int64, 0, len(*section))
	for _, in := range *section {
		c := normalizeClient(in)
		clients = append(clients, c)
		if c.ID != 0 {
			keep = append(keep, c.ID)
		}
	}

	pruned, err := s.store.DeleteClientsExcept(ctx, keep)
	if err != nil {
		res.fail("clients: prune: " + err.Error())
		return
	}
	res.DebugInfo.ClientsPruned = pruned

	if err := s.store.UpsertClients(ctx, clients); err != nil {
		res.DebugInfo.ClientsBatchFallback = true
		for _, c := range clients {
			if _, rowErr := s.store.UpsertClient(ctx, c); rowErr != nil {
				res.fail(fmt.Sprintf("clients: save %q: %v", c.Name, rowErr))
			}
		}
	}
}

// reconcileProjects returns the persisted ids aligned with the snapshot's
// project inputs; a zero id marks a row that failed to save.
func (s *Service) reconcileProjects(ctx context.Context, section *[]ProjectInput, res *SyncResult) ([]int64, []ProjectInput) {
	if section == nil {
		return nil, nil
	}
	inputs := *section

	// Client links are validated against the live table, not the snapshot,
	// since the client reconcile just ran.
	liveClients, err := s.store.ListClientIDs(ctx)
	if err != nil {
		res.fail("projects: list clients: " + err.Error())
		return nil, nil
	}
	clientSet := make(map[int64]bool, len(liveClients))
	for _, id := range liveClients {
		clientSet[id] = true
	}

	records := make([]store.ProjectRecord, 0, len(inputs))
	keep := make([]int64, 0, len(inputs))
	for _, in := range inputs {
		rec := normalizeProject(in)
		if rec.ClientID != nil && !clientSet[*rec.ClientID] {
			rec.ClientID = nil
			res.DebugInfo.DanglingClientLinks++
		}
		records = append(records, rec)
		if rec.ID != 0 {
			keep = append(keep, rec.ID)
		}
	}

	pruned, err := s.store.DeleteProjectsExcept(ctx, keep)
	if err != nil {
		res.fail("projects: prune: " + err.Error())
	} else {
		res.DebugInfo.ProjectsPruned = pruned
	}

	ids, err := s.store.UpsertProjects(ctx, records)
	if err != nil {
		res.DebugInfo.ProjectsBatchFallback = true
		ids = make([]int64, len(records))
		for i, rec := range records {
			id, rowErr := s.store.UpsertProjectRecord(ctx, rec)
			if rowErr != nil && store.IsClientLinkViolation(rowErr) {
				// The client vanished between the liveness check and the
				// write. Retry once without the link.
				retry := rec
				retry.ClientID = nil
				res.DebugInfo.DanglingClientLinks++
				id, rowErr = s.store.UpsertProjectRecord(ctx, retry)
			}
			if rowErr != nil {
				res.fail(fmt.Sprintf("projects: save %q: %v", rec.Name, rowErr))
				continue
			}
			ids[i] = id
		}
	}

	for _, id := range ids {
		if id != 0 {
			res.ProjectsSaved++
		} else {
			res.ProjectsFailed++
		}
	}
	return ids, inputs
}

// rewriteRelations replaces the relation tables for every saved project:
// the four deletes fan out concurrently, then the four inserts. A table
// whose delete failed is not reinserted, so a sync never duplicates rows.
func (s *Service) rewriteRelations(ctx context.Context, ids []int64, inputs []ProjectInput, res *SyncResult) {
	savedIDs := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != 0 {
			savedIDs = append(savedIDs, id)
		}
	}
	if len(savedIDs) == 0 {
		return
	}

	liveMembers, err := s.store.ListTeamMemberIDs(ctx)
	if err != nil {
		res.warn("project_team: list members: " + err.Error())
	}
	memberSet := make(map[int64]bool, len(liveMembers))
	for _, id := range liveMembers {
		memberSet[id] = true
	}

	var phases []store.Phase
	var links []store.TeamLink
	var invoices []store.Invoice
	var notes []store.Note
	for i, id := range ids {
		if id == 0 {
			continue
		}
		in := inputs[i]
		phases = append(phases, normalizePhases(id, in.Phases)...)
		projectLinks, dropped := normalizeTeamLinks(id, in.Team, memberSet)
		links = append(links, projectLinks...)
		res.DebugInfo.DroppedTeamRefs += dropped
		invoices = append(invoices, normalizeInvoices(id, in.Budget)...)
		notes = append(notes, normalizeNotes(id, in.Notes)...)
	}

	steps := []struct {
		table  string
		delete func(context.Context, []int64) error
		insert func(context.Context) error
		count  *int
	}{
		{"project_phases", s.store.DeleteProjectPhases,
			func(ctx context.Context) error { return s.store.InsertProjectPhases(ctx, phases) },
			&res.DebugInfo.PhasesWritten},
		{"project_team", s.store.DeleteProjectTeamLinks,
			func(ctx context.Context) error { return s.store.InsertProjectTeamLinks(ctx, links) },
			&res.DebugInfo.TeamLinksWritten},
		{"project_invoices", s.store.DeleteProjectInvoices,
			func(ctx context.Context) error { return s.store.InsertProjectInvoices(ctx, invoices) },
			&res.DebugInfo.InvoicesWritten},
		{"project_notes", s.store.DeleteProjectNotes,
			func(ctx context.Context) error { return s.store.InsertProjectNotes(ctx, notes) },
			&res.DebugInfo.NotesWritten},
	}
	counts := []int{len(phases), len(links), len(invoices), len(notes)}

	deleteErrs := make([]error, len(steps))
	var wg sync.WaitGroup
	for i := range steps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			deleteErrs[i] = steps[i].delete(ctx, savedIDs)
		}(i)
	}
	wg.Wait()

	insertErrs := make([]error, len(steps))
	for i := range steps {
		if deleteErrs[i] != nil {
			res.warn(steps[i].table + ": clear: " + deleteErrs[i].Error())
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			insertErrs[i] = steps[i].insert(ctx)
		}(i)
	}
	wg.Wait()

	for i := range steps {
		if deleteErrs[i] != nil {
			continue
		}
		if insertErrs[i] != nil {
			res.warn(fmt.Sprintf("%s: save %d rows: %v", steps[i].table, counts[i], insertErrs[i]))
			continue
		}
		*steps[i].count = counts[i]
	}
}

func (s *Service) reconcileProjectTypes(ctx context.Context, types map[string]ProjectTypeInput, res *SyncResult) {
	for key, in := range types {
		pt := store.ProjectType{Key: key, Name: in.Name, Color: in.Color, Phases: in.Phases}
		if err := s.store.UpsertProjectType(ctx, pt); err != nil {
			res.warn(fmt.Sprintf("project_types: save %q: %v", key, err))
		}
	}
}
