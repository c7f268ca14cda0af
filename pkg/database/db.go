package database

import (
	"log"
	"strings"

	"github.com/arnavshah/attendance-api-go/pkg/config"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models lists every table, in migration order
func Models() []interface{} {
	return []interface{}{
		&AdminUser{},
		&Area{},
		&Supervisor{},
		&Role{},
		&Worker{},
		&Zone{},
		&Assignment{},
		&AttendanceMark{},
		&WorkerDay{},
	}
}

// InitDB opens Postgres when DATABASE_URL is set, otherwise the SQLite file
// at DATA_PATH, and migrates the schema
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	if cfg.DatabaseURL != "" {
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DatabaseURL,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt:    false,
			TranslateError: true,
		})
	} else {
		db, err = OpenSQLite(cfg.DataPath)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Printf("database ready (%s)", db.Dialector.Name())
	return db, nil
}

// OpenSQLite opens a SQLite database with foreign keys enforced on every
// connection. Tests pass a shared-cache memory DSN.
func OpenSQLite(path string) (*gorm.DB, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return gorm.Open(sqlite.Open(path+sep+"_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
}

// Migrate creates or updates all tables
func Migrate(db *gorm.DB) error {
	return errors.Wrap(db.AutoMigrate(Models()...), "auto migrate")
}
