package models

import "time"

// DatabaseDef represents one registered external database definition.
// Configuration always holds the encrypted codec token, never a plaintext
// structure. The active flag reflects the outcome of the last explicit
// connectivity test on create/update; it is not re-verified in the
// background, so a definition can drift from declared-active to
// actually-unreachable between updates.
type DatabaseDef struct {
	ID              uint       `gorm:"primaryKey;column:id" json:"id"`
	UserID          uint       `gorm:"column:user_id;index;not null;uniqueIndex:uix_user_database_name" json:"user_id"`
	Name            string     `gorm:"column:name;size:255;not null;uniqueIndex:uix_user_database_name" json:"name"`
	DBType          string     `gorm:"column:db_type;size:50;not null" json:"db_type"`
	Configuration   string     `gorm:"column:configuration;type:text;not null" json:"-"`
	IsActive        bool       `gorm:"column:is_active" json:"is_active"`
	LastConnectedAt *time.Time `gorm:"column:last_connected_at" json:"last_connected_at"`
	CreatedAt       time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

// TableName specifies the static table name for GORM.
// Required to override GORM's default pluralization behavior.
func (DatabaseDef) TableName() string {
	return "gateway_databases"
}
