package types

import (
	"time"

	"gorm.io/datatypes"
)

// KvEntry backs the postgres key-value store. Values are always JSON documents.
type KvEntry struct {
	Key       string         `gorm:"primaryKey;column:key;type:text"`
	Value     datatypes.JSON `gorm:"column:value;type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null;default:now()"`
	UpdatedAt time.Time      `gorm:"not null;default:now()"`
}

func (KvEntry) TableName() string {
	return "kv_entry"
}
