package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dengue-gen/denguegen-backend/internal/types"
)

// PostgresStore keeps entries in the kv_entry table. Values must be valid
// JSON because the column is jsonb.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	defer observe("postgres", "get", time.Now())
	var entry types.KvEntry
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(entry.Value), true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	defer observe("postgres", "set", time.Now())
	if !json.Valid(value) {
		return fmt.Errorf("kv: value for %q is not valid JSON", key)
	}
	entry := types.KvEntry{
		Key:       key,
		Value:     datatypes.JSON(value),
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&entry).Error
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	defer observe("postgres", "delete", time.Now())
	return s.db.WithContext(ctx).Where("key = ?", key).Delete(&types.KvEntry{}).Error
}

func (s *PostgresStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	defer observe("postgres", "keys", time.Now())
	var keys []string
	err := s.db.WithContext(ctx).
		Model(&types.KvEntry{}).
		Where("key LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%").
		Pluck("key", &keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
