package models

import (
	"log"

	"github.com/uxlens/uxaudit_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Recording{},
		&Frame{},
		&TemporalMetric{},
		&AuditResultRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
