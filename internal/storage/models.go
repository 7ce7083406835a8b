package storage

import "time"

// NodeRecord is the persisted configuration of a user-owned private audio node.
// Identifier is globally unique across the shared pool and all private nodes;
// OwnerID is unique because each user may own at most one node.
type NodeRecord struct {
	Identifier   string `gorm:"primaryKey"`
	OwnerID      string `gorm:"uniqueIndex;not null"`
	Host         string `gorm:"not null"`
	Port         int    `gorm:"not null"`
	Password     string
	Secure       bool
	RetryCount   int
	IsActive     bool
	AutoFallback bool
	LastError    string
	AddedAt      time.Time
}

// GuildSettings stores per-guild behavior flags.
type GuildSettings struct {
	GuildID   string `gorm:"primaryKey"`
	AlwaysOn  bool   // 24/7 mode: never disconnect on empty voice channel
	UpdatedAt time.Time
}
