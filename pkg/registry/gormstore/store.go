// Package gormstore implements the registry read path directly against the
// registry database, for deployments that colocate the engine with the
// platform database instead of going through the registry API.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pipehooks/pkg/registry"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Config holds database connection settings.
type Config struct {
	Driver string
	DSN    string
	// AutoMigrate creates the tables when missing. Intended for tests and
	// local setups; production schemas are owned by the registry service.
	AutoMigrate bool
}

// Store implements registry.Store on top of GORM. The underlying pool makes
// it safe for concurrent lookups.
type Store struct {
	db *gorm.DB
}

type targetRow struct {
	Key           string `gorm:"column:key;size:255;primaryKey"`
	Name          string `gorm:"column:name;size:255;not null"`
	Namespace     string `gorm:"column:namespace;size:255"`
	DefaultBranch string `gorm:"column:default_branch;size:255"`
}

func (targetRow) TableName() string { return "registry_targets" }

type branchRow struct {
	TargetKey     string `gorm:"column:target_key;size:255;primaryKey"`
	Name          string `gorm:"column:name;size:255;primaryKey"`
	PipelinesJSON string `gorm:"column:pipelines;type:text"`
}

func (branchRow) TableName() string { return "registry_branches" }

// Open connects to the registry database.
func Open(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("registry database dsn is required")
	}
	db, err := openGorm(normalizeDriver(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if cfg.AutoMigrate {
		if err := db.AutoMigrate(&targetRow{}, &branchRow{}); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func (s *Store) LookupTarget(ctx context.Context, key string) (*registry.TargetRecord, error) {
	var row targetRow
	err := s.db.WithContext(ctx).Where("key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, registry.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &registry.TargetRecord{
		Key:           row.Key,
		Name:          row.Name,
		Namespace:     row.Namespace,
		DefaultBranch: row.DefaultBranch,
	}, nil
}

func (s *Store) LookupBranch(ctx context.Context, target *registry.TargetRecord, branch string) (*registry.BranchRecord, error) {
	var row branchRow
	err := s.db.WithContext(ctx).
		Where("target_key = ? AND name = ?", target.Key, branch).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, registry.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	pipelines := map[string]string{}
	if row.PipelinesJSON != "" {
		if err := json.Unmarshal([]byte(row.PipelinesJSON), &pipelines); err != nil {
			return nil, fmt.Errorf("decode pipelines for %s@%s: %w", target.Key, branch, err)
		}
	}
	return &registry.BranchRecord{
		TargetKey: row.TargetKey,
		Name:      row.Name,
		Pipelines: pipelines,
	}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertTarget and UpsertBranch exist for tests and local seeding; the
// engine itself never writes to the registry.
func (s *Store) UpsertTarget(ctx context.Context, record registry.TargetRecord) error {
	row := targetRow{
		Key:           record.Key,
		Name:          record.Name,
		Namespace:     record.Namespace,
		DefaultBranch: record.DefaultBranch,
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *Store) UpsertBranch(ctx context.Context, record registry.BranchRecord) error {
	encoded, err := json.Marshal(record.Pipelines)
	if err != nil {
		return err
	}
	row := branchRow{
		TargetKey:     record.TargetKey,
		Name:          record.Name,
		PipelinesJSON: string(encoded),
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

func normalizeDriver(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "postgres", "postgresql", "pgx":
		return "postgres"
	case "mysql":
		return "mysql"
	case "", "sqlite", "sqlite3":
		return "sqlite"
	default:
		return value
	}
}

func openGorm(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case "mysql":
		return gorm.Open(mysql.Open(dsn), &gorm.Config{})
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unsupported registry database driver: %s", driver)
	}
}
