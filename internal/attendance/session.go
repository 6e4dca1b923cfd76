package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"inout-backend/internal/domain"
	"inout-backend/internal/geo"
	"inout-backend/internal/repository"
	"inout-backend/internal/timeutil"
)

// Fix is one geolocation result.
type Fix struct {
	Lat float64
	Lng float64
}

// Biometric is the fingerprint collaborator: a single-shot
// authentication attempt. A nil error is success; declined and
// hardware errors are both failures, the session does not distinguish
// them.
type Biometric interface {
	Authenticate(ctx context.Context) error
}

// Locator is the GPS collaborator: a single-shot current-position
// fix.
type Locator interface {
	CurrentLocation(ctx context.Context) (Fix, error)
}

// Snapshot is the derived view the session recomputes on every store
// emission: the three live inputs plus status and allowed actions.
type Snapshot struct {
	User     *domain.User
	Location *domain.Location
	Record   *domain.AttendanceRecord
	Status   domain.DayStatus
	Allowed  []domain.Action
}

// Result describes a committed action.
type Result struct {
	Action         domain.Action
	RecordID       string
	DistanceMeters float64
	TotalHours     string // set on CHECK_OUT only
}

// Session coordinates one device session for one signed-in user: it
// subscribes to the profile, the assigned site and today's record,
// recomputes the snapshot on every change, and runs verified actions
// with a single in-flight guard.
type Session struct {
	UID string

	Users      repository.Users
	Locations  repository.Locations
	Attendance repository.Attendance
	Logger     *slog.Logger

	// Now is the session clock; tests pin it. Defaults to time.Now.
	Now func() time.Time

	mu       sync.Mutex
	user     *domain.User
	location *domain.Location
	record   *domain.AttendanceRecord

	inFlight atomic.Bool
	runCtx   context.Context
}

func (s *Session) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Start launches the three live subscriptions and returns a snapshot
// channel that emits on every input change. The channel closes when
// ctx is cancelled; once cancelled no further mutation can be
// committed through this session.
func (s *Session) Start(ctx context.Context) (<-chan Snapshot, error) {
	s.runCtx = ctx

	userCh, err := s.Users.Watch(ctx, s.UID)
	if err != nil {
		return nil, fmt.Errorf("watch profile: %w", err)
	}

	out := make(chan Snapshot, 1)
	go s.run(ctx, userCh, out)
	return out, nil
}

func (s *Session) run(ctx context.Context, userCh <-chan repository.UserEvent, out chan Snapshot) {
	defer close(out)

	var (
		locCh     <-chan repository.LocationEvent
		locCancel context.CancelFunc
		recCh     <-chan repository.RecordEvent
		recCancel context.CancelFunc

		watchedLocID  string
		watchedEmpID  string
		watchedDateID string
	)
	defer func() {
		if locCancel != nil {
			locCancel()
		}
		if recCancel != nil {
			recCancel()
		}
	}()

	// watchRecord re-points the record feed at the employee's document
	// for the current calendar day.
	watchRecord := func(empID string) {
		if recCancel != nil {
			recCancel()
			recCancel = nil
			recCh = nil
		}
		s.mu.Lock()
		s.record = nil
		s.mu.Unlock()
		watchedEmpID = empID
		watchedDateID = timeutil.DateID(s.now())
		if empID == "" {
			return
		}
		wctx, cancel := context.WithCancel(ctx)
		ch, err := s.Attendance.WatchDay(wctx, empID, watchedDateID)
		if err != nil {
			s.Logger.Warn("watch record failed", "employeeId", empID, "err", err)
			cancel()
			return
		}
		recCh, recCancel = ch, cancel
	}

	// The record key embeds the calendar day; a long-lived session has
	// to roll its subscription over at midnight.
	dayTick := time.NewTicker(time.Minute)
	defer dayTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-userCh:
			if !ok {
				return
			}
			if ev.Err != nil {
				s.Logger.Warn("profile decode failed", "uid", s.UID, "err", ev.Err)
				continue
			}
			s.mu.Lock()
			s.user = ev.User
			s.mu.Unlock()

			// The site and record feeds derive from profile fields;
			// admin reassignment re-subscribes them on the fly.
			locID := ""
			empID := ""
			if ev.User != nil {
				if ev.User.AssignedLocationID != nil {
					locID = *ev.User.AssignedLocationID
				}
				if ev.User.EmployeeID != nil {
					empID = *ev.User.EmployeeID
				}
			}
			if locID != watchedLocID {
				if locCancel != nil {
					locCancel()
					locCancel = nil
					locCh = nil
				}
				s.mu.Lock()
				s.location = nil
				s.mu.Unlock()
				watchedLocID = locID
				if locID != "" {
					wctx, cancel := context.WithCancel(ctx)
					ch, err := s.Locations.Watch(wctx, locID)
					if err != nil {
						s.Logger.Warn("watch site failed", "locationId", locID, "err", err)
						cancel()
					} else {
						locCh, locCancel = ch, cancel
					}
				}
			}
			if empID != watchedEmpID || timeutil.DateID(s.now()) != watchedDateID {
				watchRecord(empID)
			}
			s.emit(out)

		case <-dayTick.C:
			if timeutil.DateID(s.now()) == watchedDateID {
				continue
			}
			watchRecord(watchedEmpID)
			s.emit(out)

		case ev, ok := <-locCh:
			if !ok {
				locCh = nil
				continue
			}
			if ev.Err != nil {
				s.Logger.Warn("site decode failed", "err", ev.Err)
				continue
			}
			s.mu.Lock()
			s.location = ev.Location
			s.mu.Unlock()
			s.emit(out)

		case ev, ok := <-recCh:
			if !ok {
				recCh = nil
				continue
			}
			if ev.Err != nil {
				s.Logger.Warn("record decode failed", "err", ev.Err)
				continue
			}
			s.mu.Lock()
			s.record = ev.Record
			s.mu.Unlock()
			s.emit(out)
		}
	}
}

// emit sends the current snapshot. If the consumer has not caught up
// the stale pending snapshot is replaced, so the channel always holds
// the latest derived state.
func (s *Session) emit(out chan Snapshot) {
	snap := s.CurrentSnapshot()
	select {
	case out <- snap:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	select {
	case out <- snap:
	default:
	}
}

// CurrentSnapshot derives status and allowed actions from the latest
// store state.
func (s *Session) CurrentSnapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{User: s.user, Location: s.location, Record: s.todayRecordLocked()}
	assignedID := ""
	if s.location != nil {
		assignedID = s.location.ID
	}
	snap.Status = DeriveStatus(snap.Record, assignedID)
	if s.user != nil && s.user.Approved && s.location != nil {
		snap.Allowed = DecideAllowedActions(snap.Record, assignedID)
	}
	return snap
}

// todayRecordLocked returns the subscribed record only when it belongs
// to the current calendar day. A completed record from yesterday must
// never make today look COMPLETED.
func (s *Session) todayRecordLocked() *domain.AttendanceRecord {
	if s.record != nil && s.record.DateID != timeutil.DateID(s.now()) {
		return nil
	}
	return s.record
}

// Attempt runs one verified action: biometric first, then the GPS
// fix, then the geofence check, then the single-document commit. The
// two verification collaborators are supplied per attempt. Only one
// attempt may be in flight per session; failures never mutate the
// record.
func (s *Session) Attempt(ctx context.Context, action domain.Action, biometric Biometric, locator Locator) (*Result, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, domain.ErrActionInFlight
	}
	defer s.inFlight.Store(false)

	s.mu.Lock()
	user := s.user
	location := s.location
	record := s.todayRecordLocked()
	s.mu.Unlock()

	if user == nil || !user.Approved {
		return nil, domain.ErrNotApproved
	}
	if location == nil {
		return nil, domain.ErrNoAssignedLocation
	}
	if user.EmployeeID == nil || *user.EmployeeID == "" {
		return nil, domain.ErrNoEmployeeID
	}
	if !ActionAllowed(action, record, location.ID) {
		return nil, domain.ErrActionNotAllowed
	}

	if err := biometric.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrAuthenticationFailed, err)
	}

	fix, err := locator.CurrentLocation(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrLocationUnavailable, err)
	}

	distance := geo.Distance(fix.Lat, fix.Lng, location.Latitude, location.Longitude)
	if distance > location.RadiusMeters {
		return nil, &domain.OutOfRangeError{
			LocationName:   location.Name,
			DistanceMeters: distance,
			RadiusMeters:   location.RadiusMeters,
		}
	}

	// The verifications are asynchronous; if the session was torn
	// down while they were pending, drop the result without writing.
	if s.runCtx != nil && s.runCtx.Err() != nil {
		return nil, s.runCtx.Err()
	}

	switch action {
	case domain.ActionCheckIn:
		return s.commitCheckIn(ctx, user, location, fix, distance)
	case domain.ActionTransit:
		return s.commitTransit(ctx, record, location, distance)
	default:
		return s.commitCheckOut(ctx, record, fix)
	}
}

func (s *Session) commitCheckIn(ctx context.Context, user *domain.User, location *domain.Location, fix Fix, distance float64) (*Result, error) {
	now := s.now()
	dateID := timeutil.DateID(now)
	displayTime := timeutil.DisplayTime(now)

	rec := &domain.AttendanceRecord{
		RecordID:               repository.RecordID(*user.EmployeeID, dateID),
		EmployeeID:             *user.EmployeeID,
		EmployeeName:           user.Name,
		DateID:                 dateID,
		CreatedTimestamp:       now.UnixMilli(),
		CheckInTime:            &displayTime,
		CheckInLat:             &fix.Lat,
		CheckInLng:             &fix.Lng,
		DistanceMeters:         distance,
		LocationName:           location.Name,
		LastVerifiedLocationID: location.ID,
		MovementLog:            []string{location.Name},
		FingerprintVerified:    true,
		LocationVerified:       true,
	}
	if err := s.Attendance.CreateDay(ctx, rec); err != nil {
		return nil, fmt.Errorf("commit check-in: %w", err)
	}
	s.Logger.Info("checked in", "employeeId", rec.EmployeeID, "site", location.Name, "distanceMeters", distance)
	return &Result{Action: domain.ActionCheckIn, RecordID: rec.RecordID, DistanceMeters: distance}, nil
}

func (s *Session) commitTransit(ctx context.Context, record *domain.AttendanceRecord, location *domain.Location, distance float64) (*Result, error) {
	total := record.DistanceMeters + distance
	if err := s.Attendance.ApplyTransit(ctx, record.RecordID, total, location.Name, location.ID); err != nil {
		return nil, fmt.Errorf("commit transit: %w", err)
	}
	s.Logger.Info("transit verified", "employeeId", record.EmployeeID, "site", location.Name, "totalDistanceMeters", total)
	return &Result{Action: domain.ActionTransit, RecordID: record.RecordID, DistanceMeters: total}, nil
}

func (s *Session) commitCheckOut(ctx context.Context, record *domain.AttendanceRecord, fix Fix) (*Result, error) {
	checkOut := timeutil.DisplayTime(s.now())
	checkIn := ""
	if record.CheckInTime != nil {
		checkIn = *record.CheckInTime
	}
	totalHours := timeutil.Duration(checkIn, checkOut)

	if err := s.Attendance.ApplyCheckOut(ctx, record.RecordID, checkOut, fix.Lat, fix.Lng, totalHours); err != nil {
		return nil, fmt.Errorf("commit check-out: %w", err)
	}
	s.Logger.Info("checked out", "employeeId", record.EmployeeID, "totalHours", totalHours)
	return &Result{Action: domain.ActionCheckOut, RecordID: record.RecordID, TotalHours: totalHours}, nil
}
