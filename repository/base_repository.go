package repository

import (
	"dbgateway/config"

	"gorm.io/gorm"
)

// BaseRepository provides transaction management capabilities for
// definition-store operations. Create/update flows run their
// read-modify-write inside one transaction per definition row.
type BaseRepository interface {
	Begin() *gorm.DB
}

type baseRepository struct {
	db *gorm.DB
}

// NewBaseRepository creates a new base repository instance with database connection.
func NewBaseRepository() BaseRepository {
	return &baseRepository{
		db: config.DB,
	}
}

// NewBaseRepositoryWithDB creates a base repository for an explicit
// connection. Used by tests.
func NewBaseRepositoryWithDB(db *gorm.DB) BaseRepository {
	return &baseRepository{db: db}
}

func (r *baseRepository) Begin() *gorm.DB {
	return r.db.Begin()
}
