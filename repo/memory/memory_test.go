package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nettuhq/scheduler/domain"
)

func TestEventRepoInsertFindSave(t *testing.T) {
	ctx := context.Background()
	repo := newEventRepo()

	event := &domain.CalendarEvent{CalendarID: "cal-1", UserID: "u1", StartTS: 1000, Duration: 500}
	require.NoError(t, repo.Insert(ctx, event))
	require.NotEmpty(t, event.ID)

	found, err := repo.Find(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, domain.Millis(1000), found.StartTS)

	found.Duration = 999
	require.NoError(t, repo.Save(ctx, found))

	refetched, err := repo.Find(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Millis(999), refetched.Duration)
}

func TestEventRepoSaveMissingIsNotFound(t *testing.T) {
	repo := newEventRepo()
	err := repo.Save(context.Background(), &domain.CalendarEvent{ID: "missing"})
	var nfe *domain.NotFoundError
	assert.ErrorAs(t, err, &nfe)
}

func TestEventRepoCloneIsolatesCaller(t *testing.T) {
	ctx := context.Background()
	repo := newEventRepo()
	event := &domain.CalendarEvent{CalendarID: "cal-1", UserID: "u1", Exdates: []domain.Millis{1, 2}}
	require.NoError(t, repo.Insert(ctx, event))

	found, _ := repo.Find(ctx, event.ID)
	found.Exdates[0] = 999

	refetched, _ := repo.Find(ctx, event.ID)
	assert.Equal(t, domain.Millis(1), refetched.Exdates[0], "mutating a returned event must not affect stored state")
}

func TestEventRepoClaimRemindersBeforeIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := newEventRepo()
	require.NoError(t, repo.SaveReminders(ctx, []domain.Reminder{
		{EventID: "e1", AccountID: "acc-1", RemindAt: 100},
		{EventID: "e1", AccountID: "acc-1", RemindAt: 200},
		{EventID: "e2", AccountID: "acc-1", RemindAt: 300},
	}))

	claimed, err := repo.ClaimRemindersBefore(ctx, 200)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	// Claiming again at the same watermark returns nothing: the rows were
	// consumed by the first claim.
	second, err := repo.ClaimRemindersBefore(ctx, 200)
	require.NoError(t, err)
	assert.Empty(t, second)

	remaining, err := repo.ClaimRemindersBefore(ctx, 1000)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, domain.ID("e2"), remaining[0].EventID)
}

func TestEventRepoSaveRemindersReplacesSameRemindAt(t *testing.T) {
	ctx := context.Background()
	repo := newEventRepo()
	require.NoError(t, repo.SaveReminders(ctx, []domain.Reminder{{EventID: "e1", RemindAt: 100, Version: 1}}))
	require.NoError(t, repo.SaveReminders(ctx, []domain.Reminder{{EventID: "e1", RemindAt: 100, Version: 2}}))

	claimed, err := repo.ClaimRemindersBefore(ctx, 100)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, int64(2), claimed[0].Version)
}

func TestCalendarRepoDeleteByUser(t *testing.T) {
	ctx := context.Background()
	repo := newCalendarRepo()
	require.NoError(t, repo.Insert(ctx, &domain.Calendar{ID: "c1", UserID: "u1"}))
	require.NoError(t, repo.Insert(ctx, &domain.Calendar{ID: "c2", UserID: "u2"}))

	require.NoError(t, repo.DeleteByUser(ctx, "u1"))

	byUser, err := repo.FindByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, byUser)

	remaining, err := repo.FindByUser(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestServiceRepoRemoveCalendarFromServices(t *testing.T) {
	ctx := context.Background()
	repo := newServiceRepo()
	svc := &domain.Service{
		ID: "svc-1",
		Users: []domain.ServiceResource{
			{UserID: "u1", CalendarIDs: []domain.ID{"cal-1", "cal-2"}},
		},
	}
	require.NoError(t, repo.Insert(ctx, svc))

	require.NoError(t, repo.RemoveCalendarFromServices(ctx, "cal-1"))

	found, err := repo.Find(ctx, "svc-1")
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{"cal-2"}, found.Users[0].CalendarIDs)
}

func TestAccountRepoFindByAPIKey(t *testing.T) {
	ctx := context.Background()
	repo := newAccountRepo()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-key"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, repo.Insert(ctx, &domain.Account{ID: "acc-1", APIKeyHash: string(hash)}))

	found, err := repo.FindByAPIKey(ctx, "secret-key")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, domain.ID("acc-1"), found.ID)

	notFound, err := repo.FindByAPIKey(ctx, "wrong-key")
	require.NoError(t, err)
	assert.Nil(t, notFound)
}
