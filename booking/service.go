package booking

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nettuhq/scheduler/domain"
	"github.com/nettuhq/scheduler/freebusy"
	"github.com/nettuhq/scheduler/repo"
)

// maxConcurrentMembers bounds how many per-member free/busy computations a
// single ServiceBookingPlanner.BookingSlots call runs at once.
const maxConcurrentMembers = 8

// Query is the raw, untrusted input to a service booking-slots request.
type Query struct {
	Date     string
	IanaTz   string
	Duration domain.Millis
	Interval domain.Millis
}

// Timespan is a validated one-day window in the requested timezone.
type Timespan struct {
	StartTS domain.Millis
	EndTS   domain.Millis
}

// ValidateQuery checks interval bounds, timezone, and date format, and
// returns the midnight-to-midnight+24h window they describe. Order of
// validation matches the spec: interval, then timezone, then date.
func ValidateQuery(q Query) (Timespan, error) {
	if !ValidateInterval(q.Interval) {
		return Timespan{}, domain.NewValidationError("InvalidInterval", "interval %d ms out of [%d, %d]", q.Interval, MinSlotInterval, MaxSlotInterval)
	}

	ianaTz := q.IanaTz
	if ianaTz == "" {
		ianaTz = "UTC"
	}
	loc, err := time.LoadLocation(ianaTz)
	if err != nil {
		return Timespan{}, domain.NewValidationError("InvalidTimezone", "unknown timezone %q", ianaTz)
	}

	year, month, day, ok := parseDate(q.Date)
	if !ok {
		return Timespan{}, domain.NewValidationError("InvalidDate", "cannot parse date %q", q.Date)
	}

	start := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	startTS := start.UnixMilli()
	return Timespan{StartTS: startTS, EndTS: startTS + 24*60*60*1000}, nil
}

// parseDate accepts "YYYY-M-D" with optional leading zeros on month/day.
func parseDate(date string) (year, month, day int, ok bool) {
	parts := strings.Split(date, "-")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	y, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	d, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, false
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return 0, 0, 0, false
	}
	return y, m, d, true
}

// ServiceBookingSlot groups one shared start/duration with the member user
// IDs who are free for it, in the order each user first contributed it.
type ServiceBookingSlot struct {
	Start    domain.Millis
	Duration domain.Millis
	UserIDs  []domain.ID
}

// Planner computes a service's joint booking slots.
type Planner struct {
	Services repo.ServiceRepo
	FreeBusy *freebusy.Engine
	Logger   *slog.Logger
}

// NewPlanner constructs a Planner. A nil logger defaults to slog.Default().
func NewPlanner(services repo.ServiceRepo, fb *freebusy.Engine, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{Services: services, FreeBusy: fb, Logger: logger}
}

type memberSlots struct {
	userID domain.ID
	slots  []Slot
}

// BookingSlots resolves the service, computes every member's free/busy view
// concurrently (bounded by maxConcurrentMembers), enumerates each member's
// slots, and groups them by start. A per-member free/busy failure is logged
// and that member contributes no slots; the service itself not being found
// is fatal.
func (p *Planner) BookingSlots(ctx context.Context, serviceID domain.ID, q Query) ([]ServiceBookingSlot, error) {
	span, err := ValidateQuery(q)
	if err != nil {
		return nil, err
	}

	service, err := p.Services.Find(ctx, serviceID)
	if err != nil {
		return nil, domain.NewStorageError("booking.findService", err)
	}
	if service == nil {
		return nil, domain.NewNotFoundError("Service", serviceID)
	}

	results := make([]memberSlots, len(service.Users))
	sem := semaphore.NewWeighted(maxConcurrentMembers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := range service.Users {
		member := service.Users[i]
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			break
		}
		wg.Add(1)
		go func() {
			defer sem.Release(1)
			defer wg.Done()

			fb, err := p.FreeBusy.Compute(ctx, freebusy.Query{
				UserID:      member.UserID,
				CalendarIDs: member.CalendarIDs,
				ScheduleIDs: member.ScheduleIDs,
				Start:       span.StartTS,
				End:         span.EndTS,
			})
			if err != nil {
				p.Logger.Warn("error getting user freebusy", "user_id", member.UserID, "error", err)
				return
			}

			slots := Slots(fb.Free, Options{
				StartTS:  span.StartTS,
				EndTS:    span.EndTS,
				Duration: q.Duration,
				Interval: q.Interval,
			})
			results[i] = memberSlots{userID: member.UserID, slots: slots}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return groupByStart(results), nil
}

// groupByStart folds every member's slot list into ServiceBookingSlots,
// keyed by start. Member iteration order (not completion order) decides
// each slot's user_ids order.
func groupByStart(perMember []memberSlots) []ServiceBookingSlot {
	index := make(map[domain.Millis]*ServiceBookingSlot)
	var order []domain.Millis

	for _, member := range perMember {
		for _, slot := range member.slots {
			existing, ok := index[slot.Start]
			if !ok {
				existing = &ServiceBookingSlot{Start: slot.Start, Duration: slot.Duration}
				index[slot.Start] = existing
				order = append(order, slot.Start)
			}
			existing.UserIDs = append(existing.UserIDs, member.userID)
		}
	}

	out := make([]ServiceBookingSlot, 0, len(order))
	for _, start := range order {
		out = append(out, *index[start])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
