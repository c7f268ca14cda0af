package database

import (
	"time"

	"github.com/arnavshah/attendance-api-go/pkg/attendance"
	"github.com/arnavshah/attendance-api-go/pkg/geofence"
	"github.com/arnavshah/attendance-api-go/pkg/schedule"
	"gorm.io/datatypes"
)

// AdminUser represents the admin_users table
type AdminUser struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"unique;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Area is a work area managed by supervisors
type Area struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"unique;not null" json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Supervisor is the area staff account that creates assignments
type Supervisor struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"unique;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	FullName     string    `gorm:"not null" json:"full_name"`
	AreaID       uint      `gorm:"not null;index" json:"area_id"`
	Area         *Area     `gorm:"constraint:OnDelete:CASCADE" json:"area,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Role is a job role within an area
type Role struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"not null;uniqueIndex:idx_area_role" json:"name"`
	AreaID      uint   `gorm:"not null;uniqueIndex:idx_area_role" json:"area_id"`
	Description string `json:"description"`
	Area        *Area  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Worker is a field worker who marks attendance
type Worker struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	Username     string      `gorm:"unique;not null" json:"username"`
	PasswordHash string      `gorm:"not null" json:"-"`
	FullName     string      `gorm:"not null" json:"full_name"`
	AreaID       uint        `gorm:"not null;index" json:"area_id"`
	SupervisorID *uint       `gorm:"index" json:"supervisor_id"`
	Roles        []Role      `gorm:"many2many:worker_roles;constraint:OnDelete:CASCADE" json:"roles"`
	Area         *Area       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Supervisor   *Supervisor `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Zone stores a geofence. Only the columns of its kind are set.
type Zone struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Description string
	Kind        string `gorm:"not null"`
	CenterLat   *float64
	CenterLng   *float64
	Radius      *float64
	StartLat    *float64
	StartLng    *float64
	EndLat      *float64
	EndLng      *float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func ptr(f float64) *float64 { return &f }

func val(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// Shape converts the stored columns back into a geofence
func (z *Zone) Shape() geofence.Zone {
	switch geofence.Kind(z.Kind) {
	case geofence.KindCircle:
		return geofence.Circle(geofence.Point{Lat: val(z.CenterLat), Lng: val(z.CenterLng)}, val(z.Radius))
	case geofence.KindRectangle:
		return geofence.Rectangle(
			geofence.Point{Lat: val(z.StartLat), Lng: val(z.StartLng)},
			geofence.Point{Lat: val(z.EndLat), Lng: val(z.EndLng)},
		)
	}
	return geofence.Zone{Kind: geofence.Kind(z.Kind)}
}

// SetShape stores g, clearing the columns of the other kind
func (z *Zone) SetShape(g geofence.Zone) {
	z.Kind = string(g.Kind)
	z.CenterLat, z.CenterLng, z.Radius = nil, nil, nil
	z.StartLat, z.StartLng, z.EndLat, z.EndLng = nil, nil, nil, nil
	switch g.Kind {
	case geofence.KindCircle:
		z.CenterLat, z.CenterLng, z.Radius = ptr(g.Center.Lat), ptr(g.Center.Lng), ptr(g.Radius)
	case geofence.KindRectangle:
		z.StartLat, z.StartLng = ptr(g.Start.Lat), ptr(g.Start.Lng)
		z.EndLat, z.EndLng = ptr(g.End.Lat), ptr(g.End.Lng)
	}
}

// Assignment places a worker in a zone on a weekly schedule
type Assignment struct {
	ID         uint            `gorm:"primaryKey"`
	WorkerID   uint            `gorm:"not null;uniqueIndex:idx_worker_zone"`
	ZoneID     uint            `gorm:"not null;uniqueIndex:idx_worker_zone"`
	CreatorID  *uint           `gorm:"index"` // supervisor, nil when created by an admin
	Days       string          `gorm:"not null"`
	EntryTime  datatypes.Time  `gorm:"not null"`
	ExitTime   datatypes.Time  `gorm:"not null"`
	WindowFrom *datatypes.Time
	WindowTo   *datatypes.Time
	Notes      string
	Worker     *Worker `gorm:"constraint:OnDelete:CASCADE"`
	Zone       *Zone   `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func clockPtr(t *datatypes.Time) *schedule.Clock {
	if t == nil {
		return nil
	}
	c := schedule.Clock(*t)
	return &c
}

func timePtr(c *schedule.Clock) *datatypes.Time {
	if c == nil {
		return nil
	}
	t := datatypes.Time(*c)
	return &t
}

// Schedule parses the stored schedule columns
func (a *Assignment) Schedule() (schedule.Schedule, error) {
	days, err := schedule.ParseWeekdays(a.Days)
	if err != nil {
		return schedule.Schedule{}, err
	}
	return schedule.Schedule{
		Days:       days,
		Entry:      schedule.Clock(a.EntryTime),
		Exit:       schedule.Clock(a.ExitTime),
		WindowFrom: clockPtr(a.WindowFrom),
		WindowTo:   clockPtr(a.WindowTo),
	}, nil
}

// SetSchedule stores s in the schedule columns
func (a *Assignment) SetSchedule(s schedule.Schedule) {
	a.Days = s.Days.String()
	a.EntryTime = datatypes.Time(s.Entry)
	a.ExitTime = datatypes.Time(s.Exit)
	a.WindowFrom = timePtr(s.WindowFrom)
	a.WindowTo = timePtr(s.WindowTo)
}

// ToAttendance builds the evaluator's view. Zone must be preloaded.
func (a *Assignment) ToAttendance() (attendance.Assignment, error) {
	s, err := a.Schedule()
	if err != nil {
		return attendance.Assignment{}, err
	}
	out := attendance.Assignment{
		ID:       a.ID,
		WorkerID: a.WorkerID,
		ZoneID:   a.ZoneID,
		Schedule: s,
	}
	if a.Zone != nil {
		out.Zone = a.Zone.Shape()
	}
	return out, nil
}

// AttendanceMark is one recorded entry or exit. The unique index holds the
// one-entry-one-exit-per-day rule even for concurrent requests.
type AttendanceMark struct {
	ID           uint        `gorm:"primaryKey"`
	AssignmentID uint        `gorm:"not null;uniqueIndex:idx_mark_day"`
	Day          string      `gorm:"size:10;not null;uniqueIndex:idx_mark_day"`
	Kind         string      `gorm:"size:8;not null;uniqueIndex:idx_mark_day"`
	WorkerID     uint        `gorm:"not null;index"`
	Lat          float64     `gorm:"not null"`
	Lng          float64     `gorm:"not null"`
	At           time.Time   `gorm:"not null"`
	Assignment   *Assignment `gorm:"constraint:OnDelete:CASCADE"`
}

func (m *AttendanceMark) ToMark() attendance.Mark {
	return attendance.Mark{
		ID:           m.ID,
		WorkerID:     m.WorkerID,
		AssignmentID: m.AssignmentID,
		Kind:         attendance.Kind(m.Kind),
		Position:     geofence.Point{Lat: m.Lat, Lng: m.Lng},
		At:           m.At,
	}
}

// WorkerDay keeps per-day mark counters for a worker
type WorkerDay struct {
	ID       uint   `gorm:"primaryKey" json:"-"`
	WorkerID uint   `gorm:"uniqueIndex:idx_worker_day;not null" json:"worker_id"`
	Day      string `gorm:"uniqueIndex:idx_worker_day;not null" json:"day"`
	Entries  int    `gorm:"default:0" json:"entries"`
	Exits    int    `gorm:"default:0" json:"exits"`
}
