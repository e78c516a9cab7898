package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rberts/delibera/internal/domain/agenda"
	"github.com/rberts/delibera/internal/domain/assembly"
	"github.com/rberts/delibera/internal/domain/common"
	"github.com/rberts/delibera/internal/domain/credential"
	"github.com/rberts/delibera/internal/domain/voting"
)

type votingFixture struct {
	assembly   *assembly.Assembly
	units      []*assembly.Unit
	credential *credential.Credential
	agenda     *agenda.Agenda
	checkins   *CheckinService
	votes      *VotingService
}

func setupVoting(t *testing.T, unitCount int) *votingFixture {
	t.Helper()

	db := newTestDB(t)
	f := &votingFixture{
		checkins: NewCheckinService(db, nil),
		votes:    NewVotingService(db, nil),
	}

	f.assembly = seedAssembly(t, db, 1, assembly.StatusInProgress)
	for i := 0; i < unitCount; i++ {
		f.units = append(f.units, seedUnit(t, db, f.assembly.ID, string(rune('A'+i))+"01", "Maria Souza", 1.5))
	}
	f.credential = seedCredential(t, db, 1, "042")
	f.agenda = seedAgenda(t, db, f.assembly.ID, agenda.StatusOpen)

	unitIDs := make([]uint, 0, len(f.units))
	for _, u := range f.units {
		unitIDs = append(unitIDs, u.ID)
	}
	_, err := f.checkins.CheckIn(ctx(), 1, f.assembly.ID, credential.ByToken(f.credential.Token), unitIDs, false, 7)
	require.NoError(t, err)

	return f
}

func TestCastVoteOnePerUnit(t *testing.T) {
	f := setupVoting(t, 3)

	votes, err := f.votes.CastVote(ctx(), f.credential.Token, f.agenda.ID, f.agenda.Options[0].ID)
	require.NoError(t, err)
	require.Len(t, votes, 3)
	for _, v := range votes {
		assert.Equal(t, f.agenda.Options[0].ID, v.OptionID)
		assert.True(t, v.IsValid)
		assert.Nil(t, v.InvalidatedAt)
	}
}

func TestCastVoteRejectsSecondBallot(t *testing.T) {
	f := setupVoting(t, 1)

	_, err := f.votes.CastVote(ctx(), f.credential.Token, f.agenda.ID, f.agenda.Options[0].ID)
	require.NoError(t, err)

	_, err = f.votes.CastVote(ctx(), f.credential.Token, f.agenda.ID, f.agenda.Options[1].ID)
	assert.True(t, common.IsKind(err, common.KindConflict))
}

func TestCastVoteRequiresOpenAgenda(t *testing.T) {
	db := newTestDB(t)
	checkins := NewCheckinService(db, nil)
	votes := NewVotingService(db, nil)

	a := seedAssembly(t, db, 1, assembly.StatusInProgress)
	u := seedUnit(t, db, a.ID, "101", "Maria Souza", 1.5)
	cred := seedCredential(t, db, 1, "042")
	item := seedAgenda(t, db, a.ID, agenda.StatusPending)

	_, err := checkins.CheckIn(ctx(), 1, a.ID, credential.ByToken(cred.Token), []uint{u.ID}, false, 7)
	require.NoError(t, err)

	_, err = votes.CastVote(ctx(), cred.Token, item.ID, item.Options[0].ID)
	assert.True(t, common.IsKind(err, common.KindInvalidRequest))
}

func TestCastVoteRejectsForeignOption(t *testing.T) {
	f := setupVoting(t, 1)

	_, err := f.votes.CastVote(ctx(), f.credential.Token, f.agenda.ID, f.agenda.Options[1].ID+1000)
	assert.True(t, common.IsKind(err, common.KindNotFound))
}

func TestCastVoteRequiresCheckIn(t *testing.T) {
	db := newTestDB(t)
	votes := NewVotingService(db, nil)

	a := seedAssembly(t, db, 1, assembly.StatusInProgress)
	seedUnit(t, db, a.ID, "101", "Maria Souza", 1.5)
	cred := seedCredential(t, db, 1, "042")
	item := seedAgenda(t, db, a.ID, agenda.StatusOpen)

	_, err := votes.CastVote(ctx(), cred.Token, item.ID, item.Options[0].ID)
	assert.True(t, common.IsKind(err, common.KindInvalidRequest))
}

func TestCastVoteRejectsInactiveCredential(t *testing.T) {
	f := setupVoting(t, 1)

	db := f.votes.db
	require.NoError(t, db.Model(&credential.Credential{}).Where("id = ?", f.credential.ID).Update("status", credential.StatusInactive).Error)

	_, err := f.votes.CastVote(ctx(), f.credential.Token, f.agenda.ID, f.agenda.Options[0].ID)
	assert.True(t, common.IsKind(err, common.KindInactive))
}

func TestInvalidateVote(t *testing.T) {
	f := setupVoting(t, 1)

	votes, err := f.votes.CastVote(ctx(), f.credential.Token, f.agenda.ID, f.agenda.Options[0].ID)
	require.NoError(t, err)

	invalidated, err := f.votes.InvalidateVote(ctx(), 1, votes[0].ID, 9)
	require.NoError(t, err)
	assert.False(t, invalidated.IsValid)
	require.NotNil(t, invalidated.InvalidatedAt)
	require.NotNil(t, invalidated.InvalidatedBy)
	assert.EqualValues(t, 9, *invalidated.InvalidatedBy)

	// Only valid votes can be invalidated.
	_, err = f.votes.InvalidateVote(ctx(), 1, votes[0].ID, 9)
	assert.True(t, common.IsKind(err, common.KindInvalidRequest))
}

func TestInvalidatedVoteStillBlocksUnit(t *testing.T) {
	f := setupVoting(t, 1)

	votes, err := f.votes.CastVote(ctx(), f.credential.Token, f.agenda.ID, f.agenda.Options[0].ID)
	require.NoError(t, err)

	_, err = f.votes.InvalidateVote(ctx(), 1, votes[0].ID, 9)
	require.NoError(t, err)

	_, err = f.votes.CastVote(ctx(), f.credential.Token, f.agenda.ID, f.agenda.Options[0].ID)
	assert.True(t, common.IsKind(err, common.KindConflict))
}

func TestInvalidateVoteTenantIsolation(t *testing.T) {
	f := setupVoting(t, 1)

	votes, err := f.votes.CastVote(ctx(), f.credential.Token, f.agenda.ID, f.agenda.Options[0].ID)
	require.NoError(t, err)

	_, err = f.votes.InvalidateVote(ctx(), 2, votes[0].ID, 9)
	assert.True(t, common.IsKind(err, common.KindNotFound))

	var v voting.Vote
	require.NoError(t, f.votes.db.First(&v, votes[0].ID).Error)
	assert.True(t, v.IsValid)
}

func TestVoterStatus(t *testing.T) {
	f := setupVoting(t, 2)

	status, err := f.votes.VoterStatus(ctx(), f.credential.Token)
	require.NoError(t, err)
	assert.Equal(t, "042", status.VisualNumber)
	require.NotNil(t, status.Assembly)
	assert.Equal(t, f.assembly.ID, status.Assembly.ID)
	assert.Len(t, status.Units, 2)
	require.NotNil(t, status.OpenAgenda)
	assert.Equal(t, f.agenda.ID, status.OpenAgenda.ID)
	assert.Len(t, status.OpenAgenda.Options, 2)
	assert.False(t, status.HasVoted)

	_, err = f.votes.CastVote(ctx(), f.credential.Token, f.agenda.ID, f.agenda.Options[0].ID)
	require.NoError(t, err)

	status, err = f.votes.VoterStatus(ctx(), f.credential.Token)
	require.NoError(t, err)
	assert.True(t, status.HasVoted)
}

func TestVoterStatusWithoutOpenAgenda(t *testing.T) {
	f := setupVoting(t, 1)

	db := f.votes.db
	require.NoError(t, db.Model(&agenda.Agenda{}).Where("id = ?", f.agenda.ID).Update("status", agenda.StatusClosed).Error)

	status, err := f.votes.VoterStatus(ctx(), f.credential.Token)
	require.NoError(t, err)
	assert.Nil(t, status.OpenAgenda)
	assert.False(t, status.HasVoted)
}

func TestVoterStatusBeforeAssemblyOpens(t *testing.T) {
	db := newTestDB(t)
	checkins := NewCheckinService(db, nil)
	votes := NewVotingService(db, nil)

	a := seedAssembly(t, db, 1, assembly.StatusDraft)
	u := seedUnit(t, db, a.ID, "101", "Maria Souza", 1.5)
	cred := seedCredential(t, db, 1, "042")
	item := seedAgenda(t, db, a.ID, agenda.StatusOpen)

	_, err := checkins.CheckIn(ctx(), 1, a.ID, credential.ByToken(cred.Token), []uint{u.ID}, false, 7)
	require.NoError(t, err)

	// An assignment counts as checked in whatever the assembly status.
	status, err := votes.VoterStatus(ctx(), cred.Token)
	require.NoError(t, err)
	require.NotNil(t, status.Assembly)
	assert.Equal(t, a.ID, status.Assembly.ID)
	require.NotNil(t, status.OpenAgenda)
	assert.Equal(t, item.ID, status.OpenAgenda.ID)
}

func TestVoterStatusNotCheckedIn(t *testing.T) {
	db := newTestDB(t)
	votes := NewVotingService(db, nil)

	seedAssembly(t, db, 1, assembly.StatusInProgress)
	cred := seedCredential(t, db, 1, "042")

	_, err := votes.VoterStatus(ctx(), cred.Token)
	assert.True(t, common.IsKind(err, common.KindInvalidRequest))
}
