package models

import (
	"time"

	"github.com/arnavshah/attendance-api-go/pkg/attendance"
	"github.com/arnavshah/attendance-api-go/pkg/geofence"
	"github.com/arnavshah/attendance-api-go/pkg/schedule"
	"github.com/arnavshah/attendance-api-go/pkg/session"
)

// LoginInput is the body of the three login endpoints
type LoginInput struct {
	Username string `json:"username" binding:"required,notblank"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the token and the profile of the account
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	Role        session.Role `json:"role"`
	User        session.User `json:"user"`
}

type AreaInput struct {
	Name        string `json:"name" binding:"required,notblank"`
	Description string `json:"description"`
}

// SupervisorInput creates or updates an area supervisor. Password is only
// required on create; an empty password on update keeps the old one.
type SupervisorInput struct {
	Username string `json:"username" binding:"required,notblank"`
	Password string `json:"password"`
	FullName string `json:"full_name" binding:"required,notblank"`
	AreaID   uint   `json:"area_id" binding:"required"`
}

type RoleInput struct {
	Name        string `json:"name" binding:"required,notblank"`
	AreaID      uint   `json:"area_id" binding:"required"`
	Description string `json:"description"`
}

// WorkerInput follows the same password rule as SupervisorInput
type WorkerInput struct {
	Username     string `json:"username" binding:"required,notblank"`
	Password     string `json:"password"`
	FullName     string `json:"full_name" binding:"required,notblank"`
	AreaID       uint   `json:"area_id" binding:"required"`
	SupervisorID *uint  `json:"supervisor_id"`
	RoleIDs      []uint `json:"role_ids"`
}

// ZoneInput is a named geofence
type ZoneInput struct {
	Name        string        `json:"name" binding:"required,notblank"`
	Description string        `json:"description"`
	Shape       geofence.Zone `json:"shape"`
}

type ZoneResponse struct {
	ID          uint          `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Shape       geofence.Zone `json:"shape"`
	CreatedAt   time.Time     `json:"created_at"`
}

// AssignmentInput places a worker in a zone. Times are HH:MM.
type AssignmentInput struct {
	WorkerID   uint    `json:"worker_id" binding:"required"`
	ZoneID     uint    `json:"zone_id" binding:"required"`
	Days       string  `json:"days" binding:"required,weekdays"`
	EntryTime  string  `json:"entry_time" binding:"required,clock"`
	ExitTime   string  `json:"exit_time" binding:"required,clock"`
	WindowFrom *string `json:"window_from" binding:"omitempty,clock"`
	WindowTo   *string `json:"window_to" binding:"omitempty,clock"`
	Notes      string  `json:"notes"`
}

func parseOptionalClock(s *string) (*schedule.Clock, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	c, err := schedule.ParseClock(*s)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Schedule parses and validates the schedule fields
func (in AssignmentInput) Schedule() (schedule.Schedule, error) {
	var s schedule.Schedule
	var err error
	if s.Days, err = schedule.ParseWeekdays(in.Days); err != nil {
		return s, err
	}
	if s.Entry, err = schedule.ParseClock(in.EntryTime); err != nil {
		return s, err
	}
	if s.Exit, err = schedule.ParseClock(in.ExitTime); err != nil {
		return s, err
	}
	if s.WindowFrom, err = parseOptionalClock(in.WindowFrom); err != nil {
		return s, err
	}
	if s.WindowTo, err = parseOptionalClock(in.WindowTo); err != nil {
		return s, err
	}
	return s, s.Validate()
}

type WorkerSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

type AssignmentResponse struct {
	ID         uint           `json:"id"`
	WorkerID   uint           `json:"worker_id"`
	ZoneID     uint           `json:"zone_id"`
	CreatorID  *uint          `json:"creator_id"`
	Days       string         `json:"days"`
	EntryTime  string         `json:"entry_time"`
	ExitTime   string         `json:"exit_time"`
	WindowFrom *string        `json:"window_from"`
	WindowTo   *string        `json:"window_to"`
	Notes      string         `json:"notes"`
	Zone       *ZoneResponse  `json:"zone,omitempty"`
	Worker     *WorkerSummary `json:"worker,omitempty"`
}

// ToAttendance converts the response into the evaluator's view. The zone
// must be present.
func (r AssignmentResponse) ToAttendance() (attendance.Assignment, error) {
	in := AssignmentInput{
		Days:       r.Days,
		EntryTime:  r.EntryTime,
		ExitTime:   r.ExitTime,
		WindowFrom: r.WindowFrom,
		WindowTo:   r.WindowTo,
	}
	s, err := in.Schedule()
	if err != nil {
		return attendance.Assignment{}, err
	}
	a := attendance.Assignment{ID: r.ID, WorkerID: r.WorkerID, ZoneID: r.ZoneID, Schedule: s}
	if r.Zone != nil {
		a.Zone = r.Zone.Shape
	}
	return a, nil
}

// AssignmentCheck is the result of a dry-run assignment validation
type AssignmentCheck struct {
	Valid     bool                `json:"valid"`
	Error     string              `json:"error,omitempty"`
	Conflicts []schedule.Conflict `json:"conflicts,omitempty"`
}

// MarkInput is sent by a worker's device
type MarkInput struct {
	AssignmentID uint            `json:"assignment_id" binding:"required"`
	Kind         attendance.Kind `json:"kind" binding:"required,oneof=entry exit"`
	Lat          *float64        `json:"lat" binding:"required,min=-90,max=90"`
	Lng          *float64        `json:"lng" binding:"required,min=-180,max=180"`
}

type MarkResponse struct {
	attendance.Mark
	Day string `json:"day"`
}

// EligibilityResponse is the server-side evaluation of an assignment
type EligibilityResponse struct {
	AssignmentID uint `json:"assignment_id"`
	attendance.Eligibility
	EntryReason string `json:"entry_reason,omitempty"`
	ExitReason  string `json:"exit_reason,omitempty"`
}

// NewEligibilityResponse fills in the human readable reasons
func NewEligibilityResponse(id uint, e attendance.Eligibility) EligibilityResponse {
	r := EligibilityResponse{AssignmentID: id, Eligibility: e}
	if err := e.Check(attendance.KindEntry); err != nil {
		r.EntryReason = err.Error()
	}
	if err := e.Check(attendance.KindExit); err != nil {
		r.ExitReason = err.Error()
	}
	return r
}

// DaySummary is one day of a worker's attendance summary
type DaySummary struct {
	Day     string `json:"day"`
	Entries int    `json:"entries"`
	Exits   int    `json:"exits"`
}

type SummaryResponse struct {
	WorkerID uint         `json:"worker_id"`
	History  []DaySummary `json:"history"`
	Totals   DaySummary   `json:"totals"`
}
