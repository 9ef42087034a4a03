package database

import (
	"github.com/plaza-social/plaza/pkg/internal/models"
	"gorm.io/gorm"
)

var AutoMaintainRange = []any{
	&models.Post{},
	&models.Poll{},
}

func RunMigration(source *gorm.DB) error {
	if err := source.AutoMigrate(
		append(
			AutoMaintainRange,
			&models.PollAnswer{},
		)...,
	); err != nil {
		return err
	}

	return nil
}
