package domain

// Enumerations
const (
	RoleAdmin    UserRole = "admin"
	RoleEmployee UserRole = "employee"

	ActionCheckIn  Action = "CHECK_IN"
	ActionTransit  Action = "TRANSIT"
	ActionCheckOut Action = "CHECK_OUT"

	StatusNotStarted            DayStatus = "not_started"
	StatusInProgressSameSite    DayStatus = "in_progress"
	StatusInProgressSiteChanged DayStatus = "in_progress_site_changed"
	StatusCompleted             DayStatus = "completed"
)

type UserRole string
type Action string
type DayStatus string

// User mirrors a document in the users collection. Created at first
// sign-in, mutated only by admins; the attendance core reads it.
type User struct {
	UID                string
	Name               string
	Email              string
	Phone              string
	Role               UserRole
	Approved           bool
	EmployeeID         *string
	AssignedLocationID *string
	PhotoURL           string
}

// Location is an office site with a circular geofence.
type Location struct {
	ID           string
	Name         string
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}

// AttendanceRecord is one document per (employeeId, dateId), keyed
// employeeId + "_" + dateId. MovementLog is append-only and may contain
// the same site name more than once.
type AttendanceRecord struct {
	RecordID         string
	EmployeeID       string
	EmployeeName     string
	DateID           string
	CreatedTimestamp int64

	CheckInTime *string
	CheckInLat  *float64
	CheckInLng  *float64

	CheckOutTime *string
	CheckOutLat  *float64
	CheckOutLng  *float64

	TotalHours *string

	DistanceMeters         float64
	LocationName           string
	LastVerifiedLocationID string
	MovementLog            []string

	FingerprintVerified bool
	LocationVerified    bool
}

// Open reports whether the record is started but not yet checked out.
func (r *AttendanceRecord) Open() bool {
	return r != nil && r.CheckOutTime == nil
}

// Completed reports whether both check-in and check-out are set, which
// makes the record terminal for the day.
func (r *AttendanceRecord) Completed() bool {
	return r != nil && r.CheckOutTime != nil
}
