package nowplaying

import (
	"sync"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"go.uber.org/zap"
)

// BotIDFunc resolves the bot's own user ID. Resolved lazily because the
// gateway identity is only known once the session is open.
type BotIDFunc func() (discord.UserID, error)

// Registry keys presenters by guild. Exactly one presenter exists per guild
// with an active playback session.
type Registry struct {
	logger *zap.Logger
	client MessageClient
	botID  BotIDFunc

	interval time.Duration
	minGap   time.Duration
	backoff  time.Duration

	mu         sync.Mutex
	presenters map[discord.GuildID]*Presenter
}

func NewRegistry(client MessageClient, botID BotIDFunc, interval, minGap, backoff time.Duration, logger *zap.Logger) *Registry {
	return &Registry{
		logger:     logger,
		client:     client,
		botID:      botID,
		interval:   interval,
		minGap:     minGap,
		backoff:    backoff,
		presenters: make(map[discord.GuildID]*Presenter),
	}
}

// GetOrCreate returns the presenter for the session's guild, starting one if
// none exists.
func (r *Registry) GetOrCreate(session Session) (*Presenter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.presenters[session.GuildID()]; ok {
		return p, nil
	}

	botID, err := r.botID()
	if err != nil {
		return nil, err
	}

	p := NewPresenter(r.client, botID, session, r.interval, r.minGap, r.backoff, r.logger)
	r.presenters[session.GuildID()] = p
	return p, nil
}

func (r *Registry) Get(guildID discord.GuildID) (*Presenter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.presenters[guildID]
	return p, ok
}

// Remove stops and forgets the guild's presenter. Safe to call when none
// exists.
func (r *Registry) Remove(guildID discord.GuildID) {
	r.mu.Lock()
	p, ok := r.presenters[guildID]
	delete(r.presenters, guildID)
	r.mu.Unlock()

	if ok {
		p.Destroy()
	}
}

// RemoveAll stops every presenter. Used during shutdown.
func (r *Registry) RemoveAll() {
	r.mu.Lock()
	presenters := make([]*Presenter, 0, len(r.presenters))
	for _, p := range r.presenters {
		presenters = append(presenters, p)
	}
	r.presenters = make(map[discord.GuildID]*Presenter)
	r.mu.Unlock()

	for _, p := range presenters {
		p.Destroy()
	}
}
