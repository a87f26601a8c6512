package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"chore-planner/internal/calendar"
	"chore-planner/internal/model"
	"chore-planner/internal/recurrence"
)

// newTestDB opens a file-backed database; ":memory:" would give each pooled connection its own empty db.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "data", "chores.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedDefinition(t *testing.T, db *gorm.DB) *model.Definition {
	t.Helper()
	def := &model.Definition{
		Title:         "Dishes",
		Active:        true,
		RecurType:     recurrence.Daily,
		RecurInterval: 1,
		StartDate:     calendar.MustParseDate("2025-03-01"),
		Points:        2,
	}
	require.NoError(t, NewDefinitionRepository(db).Create(context.Background(), def))
	return def
}

func drafts(dates ...string) []model.InstanceDraft {
	out := make([]model.InstanceDraft, 0, len(dates))
	for _, d := range dates {
		out = append(out, model.InstanceDraft{DueDate: calendar.MustParseDate(d)})
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func TestDefinitionDatesRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewDefinitionRepository(db)
	ctx := context.Background()

	end := calendar.MustParseDate("2025-12-31")
	def := seedDefinition(t, db)
	def.EndDate = &end
	require.NoError(t, repo.Save(ctx, def))

	got, err := repo.FindByID(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, calendar.MustParseDate("2025-03-01"), got.StartDate)
	require.NotNil(t, got.EndDate)
	assert.Equal(t, end, *got.EndDate)
	assert.Equal(t, recurrence.Daily, got.RecurType)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestInsertManySkipsExistingDates(t *testing.T) {
	db := newTestDB(t)
	repo := NewInstanceRepository(db)
	ctx := context.Background()
	def := seedDefinition(t, db)

	written, err := repo.InsertMany(ctx, def.ID, drafts("2025-03-01", "2025-03-02", "2025-03-03"))
	require.NoError(t, err)
	assert.Len(t, written, 3)

	written, err = repo.InsertMany(ctx, def.ID, drafts("2025-03-02", "2025-03-03", "2025-03-04"))
	require.NoError(t, err)
	assert.Equal(t, []calendar.Date{calendar.MustParseDate("2025-03-04")}, written, "only 03-04 is new")

	written, err = repo.InsertMany(ctx, def.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, written)

	rows, err := repo.ListByDefinition(ctx, def.ID)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, model.StatusPending, rows[0].Status)
	assert.Equal(t, "2025-03-04", rows[3].DueDate.String())

	existing, err := repo.FindExisting(ctx, def.ID, calendar.MustParseDate("2025-03-02"), calendar.MustParseDate("2025-03-03"))
	require.NoError(t, err)
	assert.Len(t, existing, 2)
	assert.Contains(t, existing, calendar.MustParseDate("2025-03-02"))
}

func TestUniqueIndexRejectsDuplicateRow(t *testing.T) {
	db := newTestDB(t)
	def := seedDefinition(t, db)
	due := calendar.MustParseDate("2025-03-01")

	require.NoError(t, db.Create(&model.Instance{DefinitionID: def.ID, DueDate: due, Status: model.StatusPending}).Error)
	err := db.Create(&model.Instance{DefinitionID: def.ID, DueDate: due, Status: model.StatusCompleted}).Error
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	written, err := NewInstanceRepository(db).InsertMany(context.Background(), def.ID, drafts("2025-03-01", "2025-03-02"))
	require.NoError(t, err)
	assert.Equal(t, []calendar.Date{due.AddDays(1)}, written, "the first date collided and is not reported")
}

func TestCountByDefinition(t *testing.T) {
	db := newTestDB(t)
	repo := NewInstanceRepository(db)
	ctx := context.Background()
	def := seedDefinition(t, db)

	count, err := repo.CountByDefinition(ctx, def.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = repo.InsertMany(ctx, def.ID, drafts("2025-03-01", "2025-03-02"))
	require.NoError(t, err)
	rows, _ := repo.ListByDefinition(ctx, def.ID)
	_, err = repo.UpdateStatus(ctx, rows[0].ID, model.StatusPending, model.StatusCompleted, model.StatusChange{})
	require.NoError(t, err)

	count, err = repo.CountByDefinition(ctx, def.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count, "finished rows count too")
}

func TestDeleteFuturePendingKeepsHistory(t *testing.T) {
	db := newTestDB(t)
	repo := NewInstanceRepository(db)
	ctx := context.Background()
	def := seedDefinition(t, db)

	_, err := repo.InsertMany(ctx, def.ID, drafts("2025-03-01", "2025-03-02", "2025-03-03", "2025-03-04"))
	require.NoError(t, err)
	rows, _ := repo.ListByDefinition(ctx, def.ID)
	ok, err := repo.UpdateStatus(ctx, rows[2].ID, model.StatusPending, model.StatusCompleted, model.StatusChange{})
	require.NoError(t, err)
	require.True(t, ok)

	deleted, err := repo.DeleteFuturePending(ctx, def.ID, calendar.MustParseDate("2025-03-02"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted, "03-02 and 03-04; 03-01 is past and 03-03 is done")

	rows, _ = repo.ListByDefinition(ctx, def.ID)
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-03-01", rows[0].DueDate.String())
	assert.Equal(t, model.StatusCompleted, rows[1].Status)
}

func TestUpdateFuturePendingAssignee(t *testing.T) {
	db := newTestDB(t)
	repo := NewInstanceRepository(db)
	ctx := context.Background()
	def := seedDefinition(t, db)

	_, err := repo.InsertMany(ctx, def.ID, drafts("2025-03-01", "2025-03-02", "2025-03-03"))
	require.NoError(t, err)
	rows, _ := repo.ListByDefinition(ctx, def.ID)
	_, err = repo.UpdateStatus(ctx, rows[2].ID, model.StatusPending, model.StatusSkipped, model.StatusChange{})
	require.NoError(t, err)

	affected, err := repo.UpdateFuturePendingAssignee(ctx, def.ID, calendar.MustParseDate("2025-03-02"), ptr(uint(9)))
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	rows, _ = repo.ListByDefinition(ctx, def.ID)
	assert.Nil(t, rows[0].AssigneeID, "past row untouched")
	require.NotNil(t, rows[1].AssigneeID)
	assert.Equal(t, uint(9), *rows[1].AssigneeID)
	assert.Nil(t, rows[2].AssigneeID, "finished row untouched")

	affected, err = repo.UpdateFuturePendingAssignee(ctx, def.ID, calendar.MustParseDate("2025-03-01"), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, affected)
	rows, _ = repo.ListByDefinition(ctx, def.ID)
	assert.Nil(t, rows[1].AssigneeID)
}

func TestUpdateStatusIsConditional(t *testing.T) {
	db := newTestDB(t)
	repo := NewInstanceRepository(db)
	ctx := context.Background()
	def := seedDefinition(t, db)
	_, err := repo.InsertMany(ctx, def.ID, drafts("2025-03-01"))
	require.NoError(t, err)
	rows, _ := repo.ListByDefinition(ctx, def.ID)
	id := rows[0].ID

	at := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	ok, err := repo.UpdateStatus(ctx, id, model.StatusPending, model.StatusCompleted, model.StatusChange{
		CompletedByID: ptr(uint(4)), CompletedAt: &at, PointsAwarded: ptr(2),
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateStatus(ctx, id, model.StatusPending, model.StatusSkipped, model.StatusChange{})
	require.NoError(t, err)
	assert.False(t, ok, "row is no longer pending")

	got, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedByID)
	assert.Equal(t, uint(4), *got.CompletedByID)
	require.NotNil(t, got.PointsAwarded)
	assert.Equal(t, 2, *got.PointsAwarded)

	ok, err = repo.UpdateAssignee(ctx, id, ptr(uint(5)))
	require.NoError(t, err)
	assert.False(t, ok, "finished work keeps its assignee")

	_, err = repo.FindByID(ctx, 999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestOpenWorkQueriesAndPoints(t *testing.T) {
	db := newTestDB(t)
	repo := NewInstanceRepository(db)
	ctx := context.Background()
	def := seedDefinition(t, db)
	alice := ptr(uint(1))

	_, err := repo.InsertMany(ctx, def.ID, []model.InstanceDraft{
		{DueDate: calendar.MustParseDate("2025-03-01"), AssigneeID: alice},
		{DueDate: calendar.MustParseDate("2025-03-02"), AssigneeID: alice},
		{DueDate: calendar.MustParseDate("2025-03-09"), AssigneeID: alice},
		{DueDate: calendar.MustParseDate("2025-03-02")},
	})
	require.NoError(t, err)
	rows, _ := repo.ListByDefinition(ctx, def.ID)
	require.Len(t, rows, 3, "the unassigned 03-02 draft collides with alice's row")

	today := calendar.MustParseDate("2025-03-05")
	_, err = repo.UpdateStatus(ctx, rows[0].ID, model.StatusPending, model.StatusPendingApproval, model.StatusChange{CompletedByID: alice})
	require.NoError(t, err)
	_, err = repo.UpdateStatus(ctx, rows[0].ID, model.StatusPendingApproval, model.StatusRejected, model.StatusChange{})
	require.NoError(t, err)

	open, err := repo.ListOpenForAssignee(ctx, *alice, today)
	require.NoError(t, err)
	require.Len(t, open, 2, "rejected 03-01 and pending 03-02; 03-09 is not due yet")
	assert.Equal(t, model.StatusRejected, open[0].Status)

	other := seedDefinition(t, db)
	_, err = repo.InsertMany(ctx, other.ID, drafts("2025-03-04", "2025-03-06"))
	require.NoError(t, err)
	unassigned, err := repo.ListUnassignedOpen(ctx, today)
	require.NoError(t, err)
	require.Len(t, unassigned, 1)
	assert.Equal(t, "2025-03-04", unassigned[0].DueDate.String())

	_, err = repo.UpdateStatus(ctx, rows[1].ID, model.StatusPending, model.StatusCompleted, model.StatusChange{CompletedByID: alice, PointsAwarded: ptr(2)})
	require.NoError(t, err)
	_, err = repo.UpdateStatus(ctx, rows[2].ID, model.StatusPending, model.StatusPendingApproval, model.StatusChange{CompletedByID: alice})
	require.NoError(t, err)
	awaiting, err := repo.ListAwaitingApproval(ctx)
	require.NoError(t, err)
	assert.Len(t, awaiting, 1)
	_, err = repo.UpdateStatus(ctx, rows[2].ID, model.StatusPendingApproval, model.StatusApproved, model.StatusChange{CompletedByID: alice, PointsAwarded: ptr(3)})
	require.NoError(t, err)

	points, err := repo.SumPoints(ctx, *alice)
	require.NoError(t, err)
	assert.Equal(t, 5, points)

	points, err = repo.SumPoints(ctx, 42)
	require.NoError(t, err)
	assert.Zero(t, points)
}

func TestUpsertFromTelegram(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user, err := repo.UpsertFromTelegram(ctx, 100, "Alice", "", "Alice_H", false)
	require.NoError(t, err)
	assert.Equal(t, model.RoleMember, user.Role)

	user, err = repo.UpsertFromTelegram(ctx, 100, "Alice", "H", "Alice_H", true)
	require.NoError(t, err)
	assert.True(t, user.IsAdmin())

	user, err = repo.UpsertFromTelegram(ctx, 100, "Alice", "H", "alice_h", false)
	require.NoError(t, err)
	assert.True(t, user.IsAdmin(), "admins are never demoted on login")

	found, err := repo.FindByUsername(ctx, "@ALICE_H")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "H", found.LastName)

	_, err = repo.FindByUsername(ctx, "@bob")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repo.UpsertFromTelegram(ctx, 200, "Bob", "", "", false)
	require.NoError(t, err)
	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCategoryGetOrCreateIgnoresCase(t *testing.T) {
	db := newTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	first, err := repo.GetOrCreate(ctx, "kitchen")
	require.NoError(t, err)
	second, err := repo.GetOrCreate(ctx, " Kitchen ")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	none, err := repo.GetOrCreate(ctx, "  ")
	require.NoError(t, err)
	assert.Nil(t, none)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
