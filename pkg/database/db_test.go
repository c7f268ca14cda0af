package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/arnavshah/attendance-api-go/pkg/geofence"
	"github.com/arnavshah/attendance-api-go/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func seed(t *testing.T, db *gorm.DB) (Worker, Zone) {
	t.Helper()
	area := Area{Name: "Parks"}
	require.NoError(t, db.Create(&area).Error)
	w := Worker{Username: "jdoe", PasswordHash: "x", FullName: "John Doe", AreaID: area.ID}
	require.NoError(t, db.Create(&w).Error)
	z := Zone{Name: "Plaza"}
	z.SetShape(geofence.Circle(geofence.Point{Lat: -16.5, Lng: -68.15}, 100))
	require.NoError(t, db.Create(&z).Error)
	return w, z
}

func TestZone_ShapeRoundTrip(t *testing.T) {
	db := openTestDB(t)

	z := Zone{Name: "Block"}
	rect := geofence.Rectangle(geofence.Point{Lat: -16.49, Lng: -68.14}, geofence.Point{Lat: -16.51, Lng: -68.16})
	z.SetShape(rect)
	require.NoError(t, db.Create(&z).Error)

	var got Zone
	require.NoError(t, db.First(&got, z.ID).Error)
	assert.Equal(t, rect, got.Shape())
	assert.Nil(t, got.CenterLat)
	assert.Nil(t, got.Radius)

	circle := geofence.Circle(geofence.Point{Lat: 1, Lng: 2}, 30)
	got.SetShape(circle)
	require.NoError(t, db.Save(&got).Error)
	require.NoError(t, db.First(&got, z.ID).Error)
	assert.Equal(t, circle, got.Shape())
	assert.Nil(t, got.StartLat)
}

func TestAssignment_ScheduleRoundTrip(t *testing.T) {
	db := openTestDB(t)
	w, z := seed(t, db)

	days, err := schedule.ParseWeekdays("mon,wed,fri")
	require.NoError(t, err)
	from := schedule.NewClock(7, 30)
	s := schedule.Schedule{Days: days, Entry: schedule.NewClock(8, 0), Exit: schedule.NewClock(16, 45), WindowFrom: &from}

	a := Assignment{WorkerID: w.ID, ZoneID: z.ID}
	a.SetSchedule(s)
	require.NoError(t, db.Create(&a).Error)

	var got Assignment
	require.NoError(t, db.Preload("Zone").First(&got, a.ID).Error)
	gs, err := got.Schedule()
	require.NoError(t, err)
	assert.Equal(t, "mon,wed,fri", gs.Days.String())
	assert.Equal(t, "08:00", gs.Entry.String())
	assert.Equal(t, "16:45", gs.Exit.String())
	require.NotNil(t, gs.WindowFrom)
	assert.Equal(t, "07:30", gs.WindowFrom.String())
	assert.Nil(t, gs.WindowTo)

	att, err := got.ToAttendance()
	require.NoError(t, err)
	assert.Equal(t, geofence.KindCircle, att.Zone.Kind)
	assert.Equal(t, w.ID, att.WorkerID)

	dup := Assignment{WorkerID: w.ID, ZoneID: z.ID}
	dup.SetSchedule(s)
	assert.Error(t, db.Create(&dup).Error, "worker+zone must be unique")
}

func TestAttendanceMark_OnePerDayAndKind(t *testing.T) {
	db := openTestDB(t)
	w, z := seed(t, db)
	days, _ := schedule.ParseWeekdays("mon")
	a := Assignment{WorkerID: w.ID, ZoneID: z.ID}
	a.SetSchedule(schedule.Schedule{Days: days, Entry: schedule.NewClock(8, 0), Exit: schedule.NewClock(9, 0)})
	require.NoError(t, db.Create(&a).Error)

	at := time.Date(2024, 1, 1, 8, 5, 0, 0, time.UTC)
	insert := func(kind string) int64 {
		m := AttendanceMark{AssignmentID: a.ID, WorkerID: w.ID, Day: "2024-01-01", Kind: kind, Lat: -16.5, Lng: -68.15, At: at}
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
		require.NoError(t, res.Error)
		return res.RowsAffected
	}
	assert.EqualValues(t, 1, insert("entry"))
	assert.EqualValues(t, 0, insert("entry"))
	assert.EqualValues(t, 1, insert("exit"))

	var marks []AttendanceMark
	require.NoError(t, db.Find(&marks).Error)
	require.Len(t, marks, 2)
	assert.Equal(t, "entry", string(marks[0].ToMark().Kind))
}

func TestZone_DeleteCascades(t *testing.T) {
	db := openTestDB(t)
	w, z := seed(t, db)
	days, _ := schedule.ParseWeekdays("mon")
	a := Assignment{WorkerID: w.ID, ZoneID: z.ID}
	a.SetSchedule(schedule.Schedule{Days: days, Entry: schedule.NewClock(8, 0), Exit: schedule.NewClock(9, 0)})
	require.NoError(t, db.Create(&a).Error)

	require.NoError(t, db.Delete(&Zone{}, z.ID).Error)
	var count int64
	db.Model(&Assignment{}).Count(&count)
	assert.Zero(t, count)
}
