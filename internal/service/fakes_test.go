package service_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"gorm.io/gorm"

	"chore-planner/internal/calendar"
	"chore-planner/internal/model"
	"chore-planner/internal/service"
)

// ── fakes ────────────────────────────────────────────────────────────────────

type fakeInstances struct {
	nextID    uint
	rows      map[uint]*model.Instance
	insertErr error
	// raceDates are inserted behind the engine's back right before InsertMany runs.
	raceDates []calendar.Date
}

func newFakeInstances() *fakeInstances {
	return &fakeInstances{rows: make(map[uint]*model.Instance)}
}

func (f *fakeInstances) add(inst model.Instance) *model.Instance {
	f.nextID++
	inst.ID = f.nextID
	f.rows[inst.ID] = &inst
	return &inst
}

func (f *fakeInstances) has(definitionID uint, due calendar.Date) bool {
	for _, row := range f.rows {
		if row.DefinitionID == definitionID && row.DueDate == due {
			return true
		}
	}
	return false
}

func (f *fakeInstances) FindExisting(_ context.Context, definitionID uint, from, to calendar.Date) (map[calendar.Date]struct{}, error) {
	out := make(map[calendar.Date]struct{})
	for _, row := range f.rows {
		if row.DefinitionID == definitionID && !row.DueDate.Before(from) && !row.DueDate.After(to) {
			out[row.DueDate] = struct{}{}
		}
	}
	return out, nil
}

func (f *fakeInstances) InsertMany(_ context.Context, definitionID uint, drafts []model.InstanceDraft) ([]calendar.Date, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	for _, d := range f.raceDates {
		if !f.has(definitionID, d) {
			f.add(model.Instance{DefinitionID: definitionID, DueDate: d, Status: model.StatusPending})
		}
	}
	f.raceDates = nil

	var inserted []calendar.Date
	for _, draft := range drafts {
		if f.has(definitionID, draft.DueDate) {
			continue
		}
		f.add(model.Instance{
			DefinitionID: definitionID,
			DueDate:      draft.DueDate,
			AssigneeID:   draft.AssigneeID,
			Status:       model.StatusPending,
		})
		inserted = append(inserted, draft.DueDate)
	}
	return inserted, nil
}

func (f *fakeInstances) CountByDefinition(_ context.Context, definitionID uint) (int64, error) {
	return int64(len(f.forDefinition(definitionID))), nil
}

func (f *fakeInstances) DeleteFuturePending(_ context.Context, definitionID uint, from calendar.Date) (int64, error) {
	var deleted int64
	for id, row := range f.rows {
		if row.DefinitionID == definitionID && row.Status == model.StatusPending && !row.DueDate.Before(from) {
			delete(f.rows, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeInstances) UpdateFuturePendingAssignee(_ context.Context, definitionID uint, from calendar.Date, assigneeID *uint) (int64, error) {
	var affected int64
	for _, row := range f.rows {
		if row.DefinitionID == definitionID && row.Status == model.StatusPending && !row.DueDate.Before(from) {
			row.AssigneeID = assigneeID
			affected++
		}
	}
	return affected, nil
}

func (f *fakeInstances) UpdateStatus(_ context.Context, instanceID uint, from, to model.Status, change model.StatusChange) (bool, error) {
	row, ok := f.rows[instanceID]
	if !ok || row.Status != from {
		return false, nil
	}
	row.Status = to
	row.CompletedByID = change.CompletedByID
	row.CompletedAt = change.CompletedAt
	row.PointsAwarded = change.PointsAwarded
	return true, nil
}

func (f *fakeInstances) UpdateAssignee(_ context.Context, instanceID uint, assigneeID *uint) (bool, error) {
	row, ok := f.rows[instanceID]
	if !ok || row.Status != model.StatusPending {
		return false, nil
	}
	row.AssigneeID = assigneeID
	return true, nil
}

func (f *fakeInstances) FindByID(_ context.Context, id uint) (*model.Instance, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *row
	return &cp, nil
}

func (f *fakeInstances) forDefinition(definitionID uint) []model.Instance {
	var out []model.Instance
	for _, row := range f.rows {
		if row.DefinitionID == definitionID {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out
}

type fakeDefinitions struct {
	nextID uint
	rows   map[uint]*model.Definition
}

func newFakeDefinitions() *fakeDefinitions {
	return &fakeDefinitions{rows: make(map[uint]*model.Definition)}
}

func (f *fakeDefinitions) put(def model.Definition) *model.Definition {
	if def.ID == 0 {
		f.nextID++
		def.ID = f.nextID
	}
	f.rows[def.ID] = &def
	return &def
}

func (f *fakeDefinitions) FindByID(_ context.Context, id uint) (*model.Definition, error) {
	def, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *def
	return &cp, nil
}

func (f *fakeDefinitions) ListActive(_ context.Context) ([]model.Definition, error) {
	var out []model.Definition
	for _, def := range f.ListAllSorted() {
		if def.Active {
			out = append(out, def)
		}
	}
	return out, nil
}

func (f *fakeDefinitions) ListAll(_ context.Context) ([]model.Definition, error) {
	return f.ListAllSorted(), nil
}

func (f *fakeDefinitions) ListAllSorted() []model.Definition {
	out := make([]model.Definition, 0, len(f.rows))
	for _, def := range f.rows {
		out = append(out, *def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeDefinitions) Create(_ context.Context, def *model.Definition) error {
	stored := f.put(*def)
	def.ID = stored.ID
	return nil
}

func (f *fakeDefinitions) Save(_ context.Context, def *model.Definition) error {
	f.put(*def)
	return nil
}

type notification struct {
	assigneeID uint
	title      string
	count      int
	firstDue   calendar.Date
}

type fakeNotifier struct {
	sent []notification
	err  error
}

func (n *fakeNotifier) NotifyAssigned(_ context.Context, assigneeID uint, title string, count int, firstDue calendar.Date) error {
	n.sent = append(n.sent, notification{assigneeID: assigneeID, title: title, count: count, firstDue: firstDue})
	return n.err
}

var errStoreDown = errors.New("store unreachable")

// ── helpers ──────────────────────────────────────────────────────────────────

type harness struct {
	instances   *fakeInstances
	definitions *fakeDefinitions
	notifier    *fakeNotifier
	cal         *calendar.Calendar
	svc         *service.InstanceService
}

func newHarness(t *testing.T, today string) *harness {
	t.Helper()
	d := calendar.MustParseDate(today)
	cal := calendar.New(time.UTC, calendar.FixedClock{At: time.Date(d.Year, d.Month, d.Day, 10, 0, 0, 0, time.UTC)})
	h := &harness{
		instances:   newFakeInstances(),
		definitions: newFakeDefinitions(),
		notifier:    &fakeNotifier{},
		cal:         cal,
	}
	h.svc = service.NewInstanceService(h.instances, h.definitions, h.notifier, cal, 30)
	return h
}

// advanceTo moves the harness clock to another day. The stores are kept, so
// the new service sees everything materialized so far.
func (h *harness) advanceTo(today string) {
	d := calendar.MustParseDate(today)
	h.cal = calendar.New(time.UTC, calendar.FixedClock{At: time.Date(d.Year, d.Month, d.Day, 10, 0, 0, 0, time.UTC)})
	h.svc = service.NewInstanceService(h.instances, h.definitions, h.notifier, h.cal, 30)
}

func uintPtr(v uint) *uint { return &v }

func day(raw string) calendar.Date { return calendar.MustParseDate(raw) }
