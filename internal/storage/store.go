// Package storage persists node records and guild settings in sqlite.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps the sqlite database.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore opens (or creates) the database at path and migrates the schema.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}

	if err := db.AutoMigrate(&NodeRecord{}, &GuildSettings{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	logger.Info("Storage ready", zap.String("path", path))

	return &Store{db: db, logger: logger.Named("storage")}, nil
}

// NodeByOwner returns the private node record owned by the given user.
func (s *Store) NodeByOwner(ctx context.Context, ownerID string) (*NodeRecord, error) {
	var rec NodeRecord
	err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// NodeByIdentifier returns the node record with the given identifier.
func (s *Store) NodeByIdentifier(ctx context.Context, identifier string) (*NodeRecord, error) {
	var rec NodeRecord
	err := s.db.WithContext(ctx).First(&rec, "identifier = ?", identifier).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// SaveNode inserts or updates a node record.
func (s *Store) SaveNode(ctx context.Context, rec *NodeRecord) error {
	return s.db.WithContext(ctx).Save(rec).Error
}

// DeleteNode removes a node record by identifier.
func (s *Store) DeleteNode(ctx context.Context, identifier string) error {
	return s.db.WithContext(ctx).Delete(&NodeRecord{}, "identifier = ?", identifier).Error
}

// ActiveNodes returns every node record with IsActive set.
func (s *Store) ActiveNodes(ctx context.Context) ([]NodeRecord, error) {
	var recs []NodeRecord
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Find(&recs).Error; err != nil {
		return nil, err
	}

	return recs, nil
}

// GuildAlwaysOn reports whether 24/7 mode is enabled for the guild.
// Missing settings default to off.
func (s *Store) GuildAlwaysOn(ctx context.Context, guildID string) bool {
	var settings GuildSettings
	err := s.db.WithContext(ctx).First(&settings, "guild_id = ?", guildID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("Failed to read guild settings", zap.String("guildID", guildID), zap.Error(err))
		}

		return false
	}

	return settings.AlwaysOn
}

// SetGuildAlwaysOn toggles 24/7 mode for the guild.
func (s *Store) SetGuildAlwaysOn(ctx context.Context, guildID string, on bool) error {
	settings := GuildSettings{GuildID: guildID, AlwaysOn: on, UpdatedAt: time.Now()}

	return s.db.WithContext(ctx).Save(&settings).Error
}
