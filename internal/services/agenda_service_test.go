package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rberts/delibera/internal/domain/agenda"
	"github.com/rberts/delibera/internal/domain/assembly"
	"github.com/rberts/delibera/internal/domain/common"
)

func TestCreateAgenda(t *testing.T) {
	db := newTestDB(t)
	svc := NewAgendaService(db, nil)

	a := seedAssembly(t, db, 1, assembly.StatusDraft)

	item, err := svc.Create(ctx(), 1, a.ID, "Budget approval", "2026 budget", 1, []string{"Approve", "Reject", "Abstain"})
	require.NoError(t, err)
	assert.Equal(t, agenda.StatusPending, item.Status)
	require.Len(t, item.Options, 3)
	assert.Equal(t, 0, item.Options[0].DisplayOrder)
	assert.Equal(t, 2, item.Options[2].DisplayOrder)
	assert.Nil(t, item.OpenedAt)
}

func TestCreateAgendaRequiresTwoOptions(t *testing.T) {
	db := newTestDB(t)
	svc := NewAgendaService(db, nil)

	a := seedAssembly(t, db, 1, assembly.StatusDraft)

	_, err := svc.Create(ctx(), 1, a.ID, "Budget approval", "", 0, []string{"Approve"})
	assert.True(t, common.IsKind(err, common.KindInvalidRequest))
}

func TestAgendaLifecycle(t *testing.T) {
	db := newTestDB(t)
	svc := NewAgendaService(db, nil)

	a := seedAssembly(t, db, 1, assembly.StatusInProgress)
	item, err := svc.Create(ctx(), 1, a.ID, "Budget approval", "", 0, []string{"Approve", "Reject"})
	require.NoError(t, err)

	open := agenda.StatusOpen
	item, err = svc.Update(ctx(), 1, item.ID, AgendaUpdate{Status: &open})
	require.NoError(t, err)
	assert.Equal(t, agenda.StatusOpen, item.Status)
	require.NotNil(t, item.OpenedAt)
	openedAt := *item.OpenedAt

	closed := agenda.StatusClosed
	item, err = svc.Update(ctx(), 1, item.ID, AgendaUpdate{Status: &closed})
	require.NoError(t, err)
	assert.Equal(t, agenda.StatusClosed, item.Status)
	require.NotNil(t, item.ClosedAt)
	assert.Equal(t, openedAt, *item.OpenedAt)
}

func TestAgendaCannotReopen(t *testing.T) {
	db := newTestDB(t)
	svc := NewAgendaService(db, nil)

	a := seedAssembly(t, db, 1, assembly.StatusInProgress)
	item := seedAgenda(t, db, a.ID, agenda.StatusClosed)

	open := agenda.StatusOpen
	_, err := svc.Update(ctx(), 1, item.ID, AgendaUpdate{Status: &open})
	assert.True(t, common.IsKind(err, common.KindInvalidRequest))
}

func TestAgendaPendingCannotClose(t *testing.T) {
	db := newTestDB(t)
	svc := NewAgendaService(db, nil)

	a := seedAssembly(t, db, 1, assembly.StatusInProgress)
	item := seedAgenda(t, db, a.ID, agenda.StatusPending)

	closed := agenda.StatusClosed
	_, err := svc.Update(ctx(), 1, item.ID, AgendaUpdate{Status: &closed})
	assert.True(t, common.IsKind(err, common.KindInvalidRequest))
}

func TestAgendaFieldEditsRejectedAfterClose(t *testing.T) {
	db := newTestDB(t)
	svc := NewAgendaService(db, nil)

	a := seedAssembly(t, db, 1, assembly.StatusInProgress)
	item := seedAgenda(t, db, a.ID, agenda.StatusClosed)

	title := "Renamed"
	_, err := svc.Update(ctx(), 1, item.ID, AgendaUpdate{Title: &title})
	assert.True(t, common.IsKind(err, common.KindInvalidRequest))
}

func TestAgendaCancelKeepsOpenedAt(t *testing.T) {
	db := newTestDB(t)
	svc := NewAgendaService(db, nil)

	a := seedAssembly(t, db, 1, assembly.StatusInProgress)
	item := seedAgenda(t, db, a.ID, agenda.StatusOpen)
	require.NotNil(t, item.OpenedAt)

	cancelled := agenda.StatusCancelled
	item, err := svc.Update(ctx(), 1, item.ID, AgendaUpdate{Status: &cancelled})
	require.NoError(t, err)
	assert.Equal(t, agenda.StatusCancelled, item.Status)
	assert.NotNil(t, item.OpenedAt)
	assert.Nil(t, item.ClosedAt)
}

func TestListAgendasInDisplayOrder(t *testing.T) {
	db := newTestDB(t)
	svc := NewAgendaService(db, nil)

	a := seedAssembly(t, db, 1, assembly.StatusDraft)
	_, err := svc.Create(ctx(), 1, a.ID, "Second item", "", 2, []string{"Yes", "No"})
	require.NoError(t, err)
	_, err = svc.Create(ctx(), 1, a.ID, "First item", "", 1, []string{"Yes", "No"})
	require.NoError(t, err)

	items, err := svc.List(ctx(), 1, a.ID, false)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "First item", items[0].Title)
	assert.Equal(t, "Second item", items[1].Title)
}

func TestListAgendasHidesCancelled(t *testing.T) {
	db := newTestDB(t)
	svc := NewAgendaService(db, nil)

	a := seedAssembly(t, db, 1, assembly.StatusInProgress)
	seedAgenda(t, db, a.ID, agenda.StatusPending)
	seedAgenda(t, db, a.ID, agenda.StatusCancelled)

	items, err := svc.List(ctx(), 1, a.ID, false)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, err = svc.List(ctx(), 1, a.ID, true)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestGetAgendaTenantIsolation(t *testing.T) {
	db := newTestDB(t)
	svc := NewAgendaService(db, nil)

	a := seedAssembly(t, db, 1, assembly.StatusDraft)
	item := seedAgenda(t, db, a.ID, agenda.StatusPending)

	_, err := svc.Get(ctx(), 2, item.ID)
	assert.True(t, common.IsKind(err, common.KindNotFound))
}
