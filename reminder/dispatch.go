package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/nettuhq/scheduler/domain"
	"github.com/nettuhq/scheduler/repo"
)

// WebhookTimeout bounds a single account webhook delivery.
const WebhookTimeout = 5 * time.Second

// Dispatcher delivers a batch of due reminders, for one account, to that
// account's configured webhook.
type Dispatcher interface {
	Dispatch(ctx context.Context, webhook domain.WebhookSettings, events []domain.CalendarEvent) error
}

// DefaultDispatchInterval is how often the dispatch tick runs once aligned.
const DefaultDispatchInterval = time.Minute

// Dispatch runs the per-minute claim-and-deliver tick.
type Dispatch struct {
	Events         repo.EventRepo
	Accounts       repo.AccountRepo
	Clock          repo.Clock
	Dispatcher     Dispatcher
	Interval       time.Duration
	WebhookTimeout time.Duration
	Logger         *slog.Logger
}

// NewDispatch constructs a Dispatch. A nil Logger defaults to
// slog.Default(); Interval defaults to DefaultDispatchInterval.
func NewDispatch(events repo.EventRepo, accounts repo.AccountRepo, clock repo.Clock, dispatcher Dispatcher, logger *slog.Logger) *Dispatch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatch{Events: events, Accounts: accounts, Clock: clock, Dispatcher: dispatcher, Interval: DefaultDispatchInterval, WebhookTimeout: WebhookTimeout, Logger: logger}
}

// Run waits until the next full minute boundary, then ticks
// every Interval until ctx is cancelled, spawning one delivery pass per tick
// so a slow webhook never delays the next claim.
func (d *Dispatch) Run(ctx context.Context) {
	interval := d.Interval
	if interval <= 0 {
		interval = DefaultDispatchInterval
	}

	startDelay := time.Duration(GetStartDelay(d.Clock.NowMillis(), 0)) * time.Second
	timer := time.NewTimer(startDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		go func() {
			if err := d.DispatchOnce(ctx); err != nil {
				d.Logger.Error("reminder dispatch tick failed", "error", err)
			}
		}()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DispatchOnce atomically claims every reminder due now, groups the
// claimed batch by account, and POSTs each account's batch to its webhook.
// Per-account delivery failures are logged and dropped, never retried.
func (d *Dispatch) DispatchOnce(ctx context.Context) error {
	now := d.Clock.NowMillis()
	claimed, err := d.Events.ClaimRemindersBefore(ctx, now)
	if err != nil {
		return domain.NewStorageError("reminder.claim", err)
	}
	if len(claimed) == 0 {
		return nil
	}

	byAccount := make(map[domain.ID][]domain.Reminder)
	for _, r := range claimed {
		byAccount[r.AccountID] = append(byAccount[r.AccountID], r)
	}

	for accountID, reminders := range byAccount {
		d.dispatchAccount(ctx, accountID, reminders)
	}
	return nil
}

func (d *Dispatch) dispatchAccount(ctx context.Context, accountID domain.ID, reminders []domain.Reminder) {
	account, err := d.Accounts.Find(ctx, accountID)
	if err != nil {
		d.Logger.Error("failed to look up account for reminder dispatch", "account_id", accountID, "error", err)
		return
	}
	if account == nil || account.Settings.Webhook == nil {
		return
	}

	events := make([]domain.CalendarEvent, 0, len(reminders))
	for _, r := range reminders {
		event, err := d.Events.Find(ctx, r.EventID)
		if err != nil {
			d.Logger.Warn("failed to look up event for reminder", "event_id", r.EventID, "error", err)
			continue
		}
		// Event deleted, or a newer rule iteration has superseded this
		// reminder's materialization: drop silently.
		if event == nil || event.Version != r.Version {
			continue
		}
		events = append(events, *event)
	}
	if len(events) == 0 {
		return
	}

	timeout := d.WebhookTimeout
	if timeout <= 0 {
		timeout = WebhookTimeout
	}
	webhookCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := d.Dispatcher.Dispatch(webhookCtx, *account.Settings.Webhook, events); err != nil {
		d.Logger.Warn("failed to deliver reminders to account webhook", "account_id", accountID, "error", err)
	}
}
