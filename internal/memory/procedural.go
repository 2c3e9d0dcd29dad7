package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/rcliao/sixmem/internal/model"
	"github.com/rcliao/sixmem/internal/store"
)

// ProceduralManager stores procedures as ordered steps. The steps of one
// procedure always number 1..N without gaps; every change and the
// renumbering it causes are written as one batch.
type ProceduralManager struct {
	*deps
	table store.Table[model.ProceduralMemory]
	// mu serializes read-renumber-write cycles.
	mu sync.Mutex
}

// Create adds a step. A zero StepNumber appends; a number inside 1..N
// inserts and shifts later steps down; anything past N+1 is rejected.
func (m *ProceduralManager) Create(ctx context.Context, userID string, rec model.ProceduralMemory) (model.ProceduralMemory, error) {
	if err := requireUser(model.DimensionProcedural, userID); err != nil {
		return rec, err
	}
	ctx = context.WithoutCancel(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()

	steps, err := m.steps(ctx, userID, rec.ProcedureName, "")
	if err != nil {
		return rec, err
	}
	if rec.StepNumber == 0 {
		rec.StepNumber = len(steps) + 1
	}
	if err := rec.Validate(); err != nil {
		return rec, err
	}
	if rec.StepNumber > len(steps)+1 {
		return rec, model.Invalid(model.DimensionProcedural, "step_number",
			"%d would leave a gap in %q, which has %d steps", rec.StepNumber, rec.ProcedureName, len(steps))
	}

	m.stampNew(&rec.Base, userID, model.DimensionProcedural)
	err = m.table.Write(ctx, store.Batch[model.ProceduralMemory]{
		UserID:  userID,
		Replace: m.renumbered(slices.Insert(steps, rec.StepNumber-1, rec), rec.ID),
		Insert:  []model.ProceduralMemory{rec},
	})
	if err != nil {
		return rec, err
	}
	return rec, nil
}

// Update edits a step. Changing StepNumber moves the step within its
// procedure; changing ProcedureName moves it to another procedure and closes
// the gap it leaves behind.
func (m *ProceduralManager) Update(ctx context.Context, userID, id string, patch model.ProceduralPatch) (model.ProceduralMemory, error) {
	ctx = context.WithoutCancel(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok, err := m.table.Get(ctx, userID, id)
	if err != nil {
		return prev, err
	}
	if !ok {
		return prev, notFound(model.DimensionProcedural, id)
	}
	next := prev
	patch.Apply(&next)
	moved := next.ProcedureName != prev.ProcedureName
	if moved && patch.StepNumber == nil {
		next.StepNumber = 0
	}

	siblings, err := m.steps(ctx, userID, next.ProcedureName, id)
	if err != nil {
		return prev, err
	}
	if next.StepNumber == 0 {
		next.StepNumber = len(siblings) + 1
	}
	if err := next.Validate(); err != nil {
		return prev, err
	}
	if next.StepNumber > len(siblings)+1 {
		return prev, model.Invalid(model.DimensionProcedural, "step_number",
			"%d would leave a gap in %q, which has %d other steps", next.StepNumber, next.ProcedureName, len(siblings))
	}

	m.stampUpdate(&next.Base, prev.Base)
	changes := append(m.renumbered(slices.Insert(siblings, next.StepNumber-1, next), id), next)
	if moved {
		left, err := m.steps(ctx, userID, prev.ProcedureName, id)
		if err != nil {
			return prev, err
		}
		changes = append(changes, m.renumbered(left, "")...)
	}
	if err := m.table.Write(ctx, store.Batch[model.ProceduralMemory]{UserID: userID, Replace: changes}); err != nil {
		return prev, err
	}
	return next, nil
}

// Delete removes a step and renumbers the steps after it.
func (m *ProceduralManager) Delete(ctx context.Context, userID, id string) (bool, error) {
	ctx = context.WithoutCancel(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok, err := m.table.Get(ctx, userID, id)
	if err != nil || !ok {
		return false, err
	}
	rest, err := m.steps(ctx, userID, prev.ProcedureName, id)
	if err != nil {
		return false, err
	}
	err = m.table.Write(ctx, store.Batch[model.ProceduralMemory]{
		UserID:  userID,
		Delete:  []string{id},
		Replace: m.renumbered(rest, ""),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (m *ProceduralManager) Get(ctx context.Context, userID, id string) (*model.ProceduralMemory, error) {
	rec, ok, err := m.table.Get(ctx, userID, id)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

func (m *ProceduralManager) GetAll(ctx context.Context, userID string) ([]model.ProceduralMemory, error) {
	return m.table.List(ctx, userID)
}

// Steps returns one procedure's steps in step order.
func (m *ProceduralManager) Steps(ctx context.Context, userID, procedure string) ([]model.ProceduralMemory, error) {
	return m.steps(ctx, userID, procedure, "")
}

// Procedures returns the distinct procedure names in first-seen order.
func (m *ProceduralManager) Procedures(ctx context.Context, userID string) ([]string, error) {
	all, err := m.table.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var names []string
	for _, p := range all {
		if !seen[p.ProcedureName] {
			seen[p.ProcedureName] = true
			names = append(names, p.ProcedureName)
		}
	}
	return names, nil
}

func (m *ProceduralManager) Search(ctx context.Context, userID, query string, limit int) ([]Scored[model.ProceduralMemory], error) {
	return m.SearchQuery(ctx, userID, Query{Text: query}, limit)
}

// SearchQuery matches steps by keyword. Procedures carry no embeddings, so
// the query vector is ignored.
func (m *ProceduralManager) SearchQuery(ctx context.Context, userID string, q Query, limit int) ([]Scored[model.ProceduralMemory], error) {
	all, err := m.table.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	matcher := m.matcher(userID, model.DimensionProcedural, q.Text)
	var cands []candidate[model.ProceduralMemory]
	for i, p := range all {
		sim := matcher.Score(p.ProcedureName, p.Description,
			strings.Join(p.Conditions, " "), strings.Join(p.Actions, " "), strings.Join(p.ExpectedResults, " "))
		if !m.passes(sim, viaLexical) {
			continue
		}
		cands = append(cands, candidate[model.ProceduralMemory]{rec: p, score: sim, sim: sim, via: viaLexical, order: position(i)})
	}
	return rank(cands, m.limit(limit)), nil
}

// steps lists a procedure's steps sorted by number, leaving out skipID.
func (m *ProceduralManager) steps(ctx context.Context, userID, procedure, skipID string) ([]model.ProceduralMemory, error) {
	all, err := m.table.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out []model.ProceduralMemory
	for _, p := range all {
		if p.ProcedureName == procedure && p.ID != skipID {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b model.ProceduralMemory) int {
		return cmp.Compare(a.StepNumber, b.StepNumber)
	})
	return out, nil
}

// renumbered returns the records of ordered whose step number must change
// to position+1, stamped for update. skipID is left to the caller.
func (m *ProceduralManager) renumbered(ordered []model.ProceduralMemory, skipID string) []model.ProceduralMemory {
	var out []model.ProceduralMemory
	for i, p := range ordered {
		if p.ID == skipID || p.StepNumber == i+1 {
			continue
		}
		prev := p.Base
		p.StepNumber = i + 1
		m.stampUpdate(&p.Base, prev)
		out = append(out, p)
	}
	return out
}
