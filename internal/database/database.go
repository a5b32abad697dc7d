package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/config"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/logger"
)

// slowQueryLogger only reports slow statements and real errors.
type slowQueryLogger struct {
	SlowThreshold time.Duration
}

func (l *slowQueryLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return l }

func (l *slowQueryLogger) Info(context.Context, string, ...interface{}) {}

func (l *slowQueryLogger) Warn(context.Context, string, ...interface{}) {}

func (l *slowQueryLogger) Error(_ context.Context, msg string, data ...interface{}) {
	logger.Component("gorm").Errorf(msg, data...)
}

func (l *slowQueryLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		sql, rows := fc()
		logger.Component("gorm").WithError(err).WithFields(map[string]interface{}{
			"elapsed": elapsed.String(),
			"rows":    rows,
		}).Error(sql)
		return
	}
	if elapsed >= l.SlowThreshold {
		sql, rows := fc()
		logger.Component("gorm").WithFields(map[string]interface{}{
			"elapsed": elapsed.String(),
			"rows":    rows,
		}).Warn("slow query: " + sql)
	}
}

// Connect opens postgres for postgres DSNs and SQLite for anything else.
func Connect(dsn string) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger: &slowQueryLogger{SlowThreshold: 200 * time.Millisecond},
	}

	var dialector gorm.Dialector
	if config.IsSQLite(dsn) {
		dialector = sqlite.Open(dsn)
	} else {
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	if config.IsSQLite(dsn) {
		// SQLite serialises writers; one connection avoids "database is locked".
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}
