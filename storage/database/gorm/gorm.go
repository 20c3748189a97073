// Package gormrepos implements the ML service repositories on Postgres with gorm.
package gormrepos

import (
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/urfu-lab/studyhub/core/chat"
)

// Open connects to the database at dsn and pings it.
func Open(dsn string, debug bool) (*gorm.DB, error) {
	conf := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	if debug {
		conf.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(dsn), conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err = sqlDB.Ping(); err != nil {
		return nil, errors.Wrap(err, "pinging database")
	}
	return db, nil
}

// Migrate creates or updates the users, chats and chat_messages tables.
func Migrate(db *gorm.DB) error {
	return errors.Wrap(db.AutoMigrate(&chat.User{}, &chat.Chat{}, &chat.Message{}), "migrating database")
}

// first maps gorm.ErrRecordNotFound to notFound.
func first(err, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return err
}
