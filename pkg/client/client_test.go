package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arnavshah/attendance-api-go/pkg/attendance"
	"github.com/arnavshah/attendance-api-go/pkg/auth"
	"github.com/arnavshah/attendance-api-go/pkg/config"
	"github.com/arnavshah/attendance-api-go/pkg/database"
	"github.com/arnavshah/attendance-api-go/pkg/geofence"
	"github.com/arnavshah/attendance-api-go/pkg/geolocation"
	"github.com/arnavshah/attendance-api-go/pkg/handlers"
	"github.com/arnavshah/attendance-api-go/pkg/models"
	"github.com/arnavshah/attendance-api-go/pkg/session"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var plaza = geofence.Point{Lat: -16.5, Lng: -68.15}

type world struct {
	url    string
	worker database.Worker
}

// newWorld starts the API on an in-memory database seeded with an admin,
// an area and one worker
func newWorld(t *testing.T) *world {
	t.Helper()
	return newWorldIn(t, time.UTC)
}

func newWorldIn(t *testing.T, loc *time.Location) *world {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	require.NoError(t, auth.EnsureAdminExists(db, "admin", "admin123"))

	area := database.Area{Name: "Parks"}
	require.NoError(t, db.Create(&area).Error)
	hash, err := auth.HashPassword("workpass")
	require.NoError(t, err)
	w := database.Worker{Username: "jdoe", PasswordHash: hash, FullName: "John Doe", AreaID: area.ID}
	require.NoError(t, db.Create(&w).Error)

	cfg := &config.Config{JWTSecret: "client-secret", TokenTTL: time.Hour, Location: loc}
	h := handlers.New(db, cfg)
	srv := httptest.NewServer(handlers.NewRouter(h))
	t.Cleanup(srv.Close)

	return &world{url: srv.URL + "/api", worker: w}
}

func (w *world) admin(t *testing.T) *Client {
	c := New(w.url)
	_, err := c.Login(context.Background(), session.RoleAdmin, "admin", "admin123")
	require.NoError(t, err)
	return c
}

func (w *world) setupAssignment(t *testing.T) models.AssignmentResponse {
	t.Helper()
	ctx := context.Background()
	admin := w.admin(t)

	z, err := admin.CreateZone(ctx, models.ZoneInput{Name: "Plaza", Shape: geofence.Circle(plaza, 100)})
	require.NoError(t, err)
	a, err := admin.CreateAssignment(ctx, models.AssignmentInput{
		WorkerID:  w.worker.ID,
		ZoneID:    z.ID,
		Days:      "mon,tue,wed,thu,fri,sat,sun",
		EntryTime: "08:00",
		ExitTime:  "17:00",
	})
	require.NoError(t, err)
	return a
}

func TestLoginAndSession(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	c := New(w.url + "/")

	_, err := c.Login(ctx, session.RoleWorker, "jdoe", "wrong")
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
	assert.False(t, c.Session.Valid())

	resp, err := c.Login(ctx, session.RoleWorker, "jdoe", "workpass")
	require.NoError(t, err)
	assert.Equal(t, session.RoleWorker, resp.Role)
	assert.True(t, c.Session.Valid())
	assert.Equal(t, "John Doe", c.Session.User().FullName)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, w.worker.ID, me.ID)

	_, err = c.Login(ctx, session.Role("root"), "x", "y")
	assert.Error(t, err)
}

func TestExpiredTokenClearsSession(t *testing.T) {
	w := newWorld(t)
	c := New(w.url)
	c.Session.Set("not-a-token", session.RoleWorker, session.User{ID: 1})

	_, err := c.Zones(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, c.Session.Valid())
}

func TestServerLocationUnknownZoneUsesOffset(t *testing.T) {
	w := newWorldIn(t, time.FixedZone("BOT", -4*3600))

	loc, err := New(w.url).ServerLocation(context.Background())
	require.NoError(t, err)
	_, offset := time.Date(2024, 1, 1, 21, 0, 0, 0, time.UTC).In(loc).Zone()
	assert.Equal(t, -4*3600, offset)
	assert.Equal(t, "BOT", loc.String())
}

func TestZonesAndValidation(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	admin := w.admin(t)

	z, err := admin.CreateZone(ctx, models.ZoneInput{
		Name:  "Block",
		Shape: geofence.Rectangle(geofence.Point{Lat: 1, Lng: 1}, geofence.Point{Lat: 2, Lng: 2}),
	})
	require.NoError(t, err)
	assert.Equal(t, geofence.KindRectangle, z.Shape.Kind)

	z, err = admin.UpdateZone(ctx, z.ID, models.ZoneInput{Name: "Block B", Shape: z.Shape})
	require.NoError(t, err)
	assert.Equal(t, "Block B", z.Name)

	_, err = admin.CreateZone(ctx, models.ZoneInput{Name: " ", Shape: geofence.Circle(plaza, 10)})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Fields, "name")

	require.NoError(t, admin.DeleteZone(ctx, z.ID))
	_, err = admin.Zone(ctx, z.ID)
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
}

func TestAssignmentsAndDryRun(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	a := w.setupAssignment(t)
	admin := w.admin(t)

	list, err := admin.Assignments(ctx, AssignmentFilter{WorkerID: w.worker.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].CreatorID)

	in := models.AssignmentInput{
		WorkerID: w.worker.ID, ZoneID: a.ZoneID, Days: "mon",
		EntryTime: "09:00", ExitTime: "10:00",
	}
	check, err := admin.ValidateAssignment(ctx, 0, in)
	require.NoError(t, err)
	assert.False(t, check.Valid)
	require.Len(t, check.Conflicts, 1)

	check, err = admin.ValidateAssignment(ctx, a.ID, in)
	require.NoError(t, err)
	assert.True(t, check.Valid)

	updated, err := admin.UpdateAssignment(ctx, a.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "09:00", updated.EntryTime)

	require.NoError(t, admin.DeleteAssignment(ctx, a.ID))
	_, err = admin.Assignment(ctx, a.ID)
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
}

func TestMarkerAgainstServer(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	a := w.setupAssignment(t)

	c := New(w.url)
	_, err := c.Login(ctx, session.RoleWorker, "jdoe", "workpass")
	require.NoError(t, err)

	list, err := c.Assignments(ctx, AssignmentFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	asg, err := list[0].ToAttendance()
	require.NoError(t, err)
	assert.Equal(t, a.ID, asg.ID)

	loc, err := c.ServerLocation(ctx)
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	tracker := geolocation.NewTracker(geolocation.StaticSource{Fix: geolocation.Fix{Position: plaza}}, time.Minute)
	marker := attendance.NewMarker(c, tracker)
	marker.SetLocation(loc)
	require.NoError(t, marker.Load(ctx, w.worker.ID))
	assert.Empty(t, marker.Marks())

	_, err = marker.Mark(ctx, asg, attendance.KindExit)
	assert.ErrorIs(t, err, attendance.ErrEntryMissing)

	entry, err := marker.Mark(ctx, asg, attendance.KindEntry)
	require.NoError(t, err)
	assert.Equal(t, attendance.KindEntry, entry.Kind)
	assert.NotZero(t, entry.ID)

	_, err = marker.Mark(ctx, asg, attendance.KindExit)
	require.NoError(t, err)

	fresh := attendance.NewMarker(c, tracker)
	require.NoError(t, fresh.Load(ctx, w.worker.ID))
	assert.Len(t, fresh.Marks(), 2)
	assert.True(t, fresh.Eligibility(&plaza, asg).State.Complete())

	// the server refuses even when the local state is stale
	_, err = c.CreateMark(ctx, attendance.MarkRequest{AssignmentID: asg.ID, Kind: attendance.KindEntry, Position: plaza})
	assert.Equal(t, http.StatusConflict, StatusOf(err))

	e, err := c.Eligibility(ctx, asg.ID, &plaza.Lat, &plaza.Lng)
	require.NoError(t, err)
	assert.False(t, e.Entry)
	assert.False(t, e.Exit)
	assert.NotEmpty(t, e.EntryReason)

	summary, err := c.Summary(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Totals.Entries)
	assert.Equal(t, 1, summary.Totals.Exits)

	own, err := c.Attendance(ctx, AttendanceFilter{})
	require.NoError(t, err)
	require.Len(t, own, 2)

	rows, err := w.admin(t).Attendance(ctx, AttendanceFilter{AssignmentID: asg.ID, Date: own[0].Day})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
