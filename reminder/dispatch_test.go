package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nettuhq/scheduler/domain"
	"github.com/nettuhq/scheduler/repo"
)

type fakeClock struct{ now domain.Millis }

func (c *fakeClock) NowMillis() domain.Millis { return c.now }

type fakeDispatchEvents struct {
	claimed  []domain.Reminder
	byID     map[domain.ID]domain.CalendarEvent
	claimErr error
}

func (f *fakeDispatchEvents) Find(_ context.Context, id domain.ID) (*domain.CalendarEvent, error) {
	e, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}
func (f *fakeDispatchEvents) FindByCalendar(context.Context, domain.ID, *repo.Window) ([]domain.CalendarEvent, error) {
	return nil, nil
}
func (f *fakeDispatchEvents) FindByUserAndCalendars(context.Context, domain.ID, []domain.ID, *repo.Window) ([]domain.CalendarEvent, error) {
	return nil, nil
}
func (f *fakeDispatchEvents) Insert(context.Context, *domain.CalendarEvent) error { return nil }
func (f *fakeDispatchEvents) Save(context.Context, *domain.CalendarEvent) error  { return nil }
func (f *fakeDispatchEvents) Delete(context.Context, domain.ID) error            { return nil }
func (f *fakeDispatchEvents) FindReminderCandidates(context.Context, domain.Millis) ([]domain.CalendarEvent, error) {
	return nil, nil
}
func (f *fakeDispatchEvents) SaveReminders(context.Context, []domain.Reminder) error { return nil }
func (f *fakeDispatchEvents) ClaimRemindersBefore(context.Context, domain.Millis) ([]domain.Reminder, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	return f.claimed, nil
}
func (f *fakeDispatchEvents) DeleteRemindersByEvent(context.Context, domain.ID) error { return nil }

type fakeAccounts struct {
	byID map[domain.ID]domain.Account
}

func (f *fakeAccounts) Find(_ context.Context, id domain.ID) (*domain.Account, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}
func (f *fakeAccounts) FindByAPIKey(context.Context, string) (*domain.Account, error) { return nil, nil }

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []struct {
		webhook domain.WebhookSettings
		events  []domain.CalendarEvent
	}
	errFor map[string]error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, webhook domain.WebhookSettings, events []domain.CalendarEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, struct {
		webhook domain.WebhookSettings
		events  []domain.CalendarEvent
	}{webhook, events})
	if err, ok := d.errFor[webhook.URL]; ok {
		return err
	}
	return nil
}

func webhookAccount(id domain.ID, url string) domain.Account {
	return domain.Account{ID: id, Settings: domain.AccountSettings{Webhook: &domain.WebhookSettings{URL: url, Key: "k-" + string(id)}}}
}

func TestDispatchGroupsByAccountAndDelivers(t *testing.T) {
	events := &fakeDispatchEvents{
		claimed: []domain.Reminder{
			{EventID: "e1", AccountID: "acc-1", RemindAt: 1000, Version: 1},
			{EventID: "e2", AccountID: "acc-2", RemindAt: 1000, Version: 1},
		},
		byID: map[domain.ID]domain.CalendarEvent{
			"e1": {ID: "e1", Version: 1},
			"e2": {ID: "e2", Version: 1},
		},
	}
	accounts := &fakeAccounts{byID: map[domain.ID]domain.Account{
		"acc-1": webhookAccount("acc-1", "https://a1.example/hook"),
		"acc-2": webhookAccount("acc-2", "https://a2.example/hook"),
	}}
	dispatcher := &fakeDispatcher{}
	d := NewDispatch(events, accounts, &fakeClock{now: 1000}, dispatcher, nil)

	err := d.DispatchOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, dispatcher.calls, 2)
	seen := map[string]int{}
	for _, c := range dispatcher.calls {
		seen[c.webhook.URL] = len(c.events)
	}
	assert.Equal(t, 1, seen["https://a1.example/hook"])
	assert.Equal(t, 1, seen["https://a2.example/hook"])
}

func TestDispatchSkipsStaleVersion(t *testing.T) {
	events := &fakeDispatchEvents{
		claimed: []domain.Reminder{
			{EventID: "e1", AccountID: "acc-1", RemindAt: 1000, Version: 1},
		},
		byID: map[domain.ID]domain.CalendarEvent{
			"e1": {ID: "e1", Version: 2}, // event was updated after this reminder was materialized
		},
	}
	accounts := &fakeAccounts{byID: map[domain.ID]domain.Account{
		"acc-1": webhookAccount("acc-1", "https://a1.example/hook"),
	}}
	dispatcher := &fakeDispatcher{}
	d := NewDispatch(events, accounts, &fakeClock{now: 1000}, dispatcher, nil)

	require.NoError(t, d.DispatchOnce(context.Background()))
	assert.Empty(t, dispatcher.calls)
}

func TestDispatchSkipsDeletedEvent(t *testing.T) {
	events := &fakeDispatchEvents{
		claimed: []domain.Reminder{
			{EventID: "gone", AccountID: "acc-1", RemindAt: 1000, Version: 1},
		},
		byID: map[domain.ID]domain.CalendarEvent{},
	}
	accounts := &fakeAccounts{byID: map[domain.ID]domain.Account{
		"acc-1": webhookAccount("acc-1", "https://a1.example/hook"),
	}}
	dispatcher := &fakeDispatcher{}
	d := NewDispatch(events, accounts, &fakeClock{now: 1000}, dispatcher, nil)

	require.NoError(t, d.DispatchOnce(context.Background()))
	assert.Empty(t, dispatcher.calls)
}

func TestDispatchPerAccountFailureIsNonFatal(t *testing.T) {
	events := &fakeDispatchEvents{
		claimed: []domain.Reminder{
			{EventID: "e1", AccountID: "acc-1", RemindAt: 1000, Version: 1},
			{EventID: "e2", AccountID: "acc-2", RemindAt: 1000, Version: 1},
		},
		byID: map[domain.ID]domain.CalendarEvent{
			"e1": {ID: "e1", Version: 1},
			"e2": {ID: "e2", Version: 1},
		},
	}
	accounts := &fakeAccounts{byID: map[domain.ID]domain.Account{
		"acc-1": webhookAccount("acc-1", "https://a1.example/hook"),
		"acc-2": webhookAccount("acc-2", "https://a2.example/hook"),
	}}
	dispatcher := &fakeDispatcher{errFor: map[string]error{
		"https://a1.example/hook": errors.New("connection refused"),
	}}
	d := NewDispatch(events, accounts, &fakeClock{now: 1000}, dispatcher, nil)

	err := d.DispatchOnce(context.Background())
	require.NoError(t, err) // one account's webhook failure never fails the whole tick
	assert.Len(t, dispatcher.calls, 2)
}

func TestDispatchNoReminderClaimedIsNoop(t *testing.T) {
	events := &fakeDispatchEvents{}
	dispatcher := &fakeDispatcher{}
	d := NewDispatch(events, &fakeAccounts{byID: map[domain.ID]domain.Account{}}, &fakeClock{now: 1000}, dispatcher, nil)

	require.NoError(t, d.DispatchOnce(context.Background()))
	assert.Empty(t, dispatcher.calls)
}

func TestDispatchAccountWithoutWebhookIsSkipped(t *testing.T) {
	events := &fakeDispatchEvents{
		claimed: []domain.Reminder{{EventID: "e1", AccountID: "acc-1", RemindAt: 1000, Version: 1}},
		byID:    map[domain.ID]domain.CalendarEvent{"e1": {ID: "e1", Version: 1}},
	}
	accounts := &fakeAccounts{byID: map[domain.ID]domain.Account{
		"acc-1": {ID: "acc-1", Settings: domain.AccountSettings{Webhook: nil}},
	}}
	dispatcher := &fakeDispatcher{}
	d := NewDispatch(events, accounts, &fakeClock{now: 1000}, dispatcher, nil)

	require.NoError(t, d.DispatchOnce(context.Background()))
	assert.Empty(t, dispatcher.calls)
}

func TestDispatchClaimErrorPropagates(t *testing.T) {
	events := &fakeDispatchEvents{claimErr: errors.New("db down")}
	d := NewDispatch(events, &fakeAccounts{byID: map[domain.ID]domain.Account{}}, &fakeClock{now: 1000}, &fakeDispatcher{}, nil)

	err := d.DispatchOnce(context.Background())
	assert.Error(t, err)
}
