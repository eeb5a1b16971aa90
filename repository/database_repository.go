package repository

import (
	"dbgateway/config"
	"dbgateway/models"

	"gorm.io/gorm"
)

// DatabaseDefRepository provides data access for database definitions.
// Every method accepts an optional transaction handle; nil falls back to
// the shared connection.
type DatabaseDefRepository interface {
	Create(tx *gorm.DB, def *models.DatabaseDef) error
	Update(tx *gorm.DB, def *models.DatabaseDef) error
	Delete(tx *gorm.DB, def *models.DatabaseDef) error
	GetByUserAndName(tx *gorm.DB, userID uint, name string) (*models.DatabaseDef, error)
	ListByUser(tx *gorm.DB, userID uint) ([]models.DatabaseDef, error)
	CountByUserAndName(tx *gorm.DB, userID uint, name string) (int64, error)
}

type databaseDefRepository struct {
	db *gorm.DB
}

// NewDatabaseDefRepository creates a repository bound to the global store.
func NewDatabaseDefRepository() DatabaseDefRepository {
	return &databaseDefRepository{db: config.DB}
}

// NewDatabaseDefRepositoryWithDB creates a repository for an explicit
// connection. Used by tests.
func NewDatabaseDefRepositoryWithDB(db *gorm.DB) DatabaseDefRepository {
	return &databaseDefRepository{db: db}
}

func (r *databaseDefRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *databaseDefRepository) Create(tx *gorm.DB, def *models.DatabaseDef) error {
	return r.conn(tx).Create(def).Error
}

func (r *databaseDefRepository) Update(tx *gorm.DB, def *models.DatabaseDef) error {
	return r.conn(tx).Save(def).Error
}

func (r *databaseDefRepository) Delete(tx *gorm.DB, def *models.DatabaseDef) error {
	return r.conn(tx).Delete(def).Error
}

func (r *databaseDefRepository) GetByUserAndName(tx *gorm.DB, userID uint, name string) (*models.DatabaseDef, error) {
	var def models.DatabaseDef
	if err := r.conn(tx).Table(models.DatabaseDef{}.TableName()).
		Where("user_id = ? AND name = ?", userID, name).
		First(&def).Error; err != nil {
		return nil, err
	}
	return &def, nil
}

func (r *databaseDefRepository) ListByUser(tx *gorm.DB, userID uint) ([]models.DatabaseDef, error) {
	var defs []models.DatabaseDef
	if err := r.conn(tx).Table(models.DatabaseDef{}.TableName()).
		Where("user_id = ?", userID).
		Order("name").
		Find(&defs).Error; err != nil {
		return nil, err
	}
	return defs, nil
}

func (r *databaseDefRepository) CountByUserAndName(tx *gorm.DB, userID uint, name string) (int64, error) {
	var count int64
	if err := r.conn(tx).Model(&models.DatabaseDef{}).
		Where("user_id = ? AND name = ?", userID, name).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
