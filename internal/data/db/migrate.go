package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/curriculum-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.AllModels()...); err != nil {
		return err
	}
	return EnsureJobIndexes(db)
}

// EnsureJobIndexes installs the store-level guard behind "one active job per program":
// a second PENDING/PROCESSING row for the same program fails with a duplicate key.
func EnsureJobIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS ux_generation_job_active_program
		ON generation_job (program_id)
		WHERE status IN ('PENDING', 'PROCESSING');
	`).Error; err != nil {
		return fmt.Errorf("create ux_generation_job_active_program: %w", err)
	}

	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_generation_job_program_created_at
		ON generation_job (program_id, created_at DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_generation_job_program_created_at: %w", err)
	}

	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_program_content_program_position
		ON program_content (program_id, position);
	`).Error; err != nil {
		return fmt.Errorf("create idx_program_content_program_position: %w", err)
	}
	return nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...", "driver", s.driver)
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}
