package activity

import (
	"sync"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"go.uber.org/zap"
)

// Registry keys monitors by guild, one per active playback session.
type Registry struct {
	logger    *zap.Logger
	client    MessageClient
	destroyer Destroyer

	checkInterval  time.Duration
	responseWindow time.Duration

	mu       sync.Mutex
	monitors map[discord.GuildID]*Monitor
}

func NewRegistry(client MessageClient, destroyer Destroyer, checkInterval, responseWindow time.Duration, logger *zap.Logger) *Registry {
	return &Registry{
		logger:         logger,
		client:         client,
		destroyer:      destroyer,
		checkInterval:  checkInterval,
		responseWindow: responseWindow,
		monitors:       make(map[discord.GuildID]*Monitor),
	}
}

// GetOrCreate returns the monitor for the session's guild, starting one if
// none exists.
func (r *Registry) GetOrCreate(session Session) *Monitor {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.monitors[session.GuildID()]; ok {
		return m
	}

	m := NewMonitor(r.client, session, r.destroyer, r.checkInterval, r.responseWindow, r.logger)
	r.monitors[session.GuildID()] = m
	return m
}

func (r *Registry) Get(guildID discord.GuildID) (*Monitor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.monitors[guildID]
	return m, ok
}

// Remove stops and forgets the guild's monitor. Safe to call when none
// exists.
func (r *Registry) Remove(guildID discord.GuildID) {
	r.mu.Lock()
	m, ok := r.monitors[guildID]
	delete(r.monitors, guildID)
	r.mu.Unlock()

	if ok {
		m.Destroy()
	}
}

// RemoveAll stops every monitor. Used during shutdown.
func (r *Registry) RemoveAll() {
	r.mu.Lock()
	monitors := make([]*Monitor, 0, len(r.monitors))
	for _, m := range r.monitors {
		monitors = append(monitors, m)
	}
	r.monitors = make(map[discord.GuildID]*Monitor)
	r.mu.Unlock()

	for _, m := range monitors {
		m.Destroy()
	}
}
