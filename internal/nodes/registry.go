// Package nodes maintains the pool of audio node configurations: shared
// default nodes plus at most one private node per user, with connectivity
// testing and failure bookkeeping.
package nodes

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muralianand12345/pepper-bot/internal/audio"
	"github.com/muralianand12345/pepper-bot/internal/config"
	"github.com/muralianand12345/pepper-bot/internal/storage"
)

const maxRetries = 5

// privatePrefix namespaces user-owned nodes so health bookkeeping can tell
// them apart from the shared pool.
const privatePrefix = "user-"

var (
	// ErrConnectionTimeout is returned when the connectivity test does not
	// complete within the configured window. The message is shown to users.
	ErrConnectionTimeout = errors.New("Connection timeout")
	// ErrInvalidHost means the host failed the character check.
	ErrInvalidHost = errors.New("host contains invalid characters")
	// ErrAlreadyRegistered means the owner already has a private node.
	ErrAlreadyRegistered = errors.New("you already have a private node registered")
	// ErrNotRegistered means the owner has no private node.
	ErrNotRegistered = errors.New("no private node registered for this user")
	// ErrNodeInUse means a live session is still bound to the node.
	ErrNodeInUse = errors.New("a session is currently playing on this node")
)

// hostPattern accepts hostnames and IPv4/IPv6 literals, nothing else.
var hostPattern = regexp.MustCompile(`^[a-zA-Z0-9.\-:\[\]]+$`)

// PrivateNodeID derives the node identifier for a user's private node.
func PrivateNodeID(ownerID string) string {
	return privatePrefix + ownerID
}

// IsPrivateNodeID reports whether the identifier names a private node.
func IsPrivateNodeID(identifier string) bool {
	return len(identifier) > len(privatePrefix) && identifier[:len(privatePrefix)] == privatePrefix
}

// Store is the persistence the registry needs.
type Store interface {
	NodeByOwner(ctx context.Context, ownerID string) (*storage.NodeRecord, error)
	NodeByIdentifier(ctx context.Context, identifier string) (*storage.NodeRecord, error)
	SaveNode(ctx context.Context, rec *storage.NodeRecord) error
	DeleteNode(ctx context.Context, identifier string) error
	ActiveNodes(ctx context.Context) ([]storage.NodeRecord, error)
}

// Pool is the live node pool the registry mediates. *audio.Manager implements it.
type Pool interface {
	AddNode(opts audio.NodeOptions) error
	RemoveNode(identifier string) error
	ConnectNode(ctx context.Context, identifier string) error
	NodeConnected(identifier string) bool
	BoundSessions(identifier string) int
	SessionNodeID(guildID discord.GuildID) (string, bool)
}

// Registry owns node configuration and health. It governs which node future
// sessions are bound to; it never interrupts in-flight playback itself.
type Registry struct {
	logger *zap.Logger
	store  Store
	pool   Pool
	timing config.TimingConfig
}

// NewRegistry creates a Registry.
func NewRegistry(store Store, pool Pool, timing config.TimingConfig, logger *zap.Logger) *Registry {
	return &Registry{
		logger: logger.Named("nodes"),
		store:  store,
		pool:   pool,
		timing: timing,
	}
}

// RegisterPrivateNode validates, connectivity-tests and persists a private
// node for the owner. On any failure no partial state is left behind: the
// temporary test node is always removed, and nothing is persisted unless the
// test succeeded.
func (r *Registry) RegisterPrivateNode(ctx context.Context, ownerID string, opts audio.NodeOptions, autoFallback bool) (string, error) {
	if !hostPattern.MatchString(opts.Host) {
		return "", ErrInvalidHost
	}

	_, err := r.store.NodeByOwner(ctx, ownerID)
	switch {
	case err == nil:
		return "", ErrAlreadyRegistered
	case !errors.Is(err, storage.ErrNotFound):
		return "", fmt.Errorf("failed to look up existing node: %w", err)
	}

	if err := r.testConnectivity(ctx, opts); err != nil {
		return "", err
	}

	nodeID := PrivateNodeID(ownerID)
	opts.Identifier = nodeID

	if err := r.pool.AddNode(opts); err != nil {
		return "", fmt.Errorf("failed to add node to pool: %w", err)
	}

	rec := &storage.NodeRecord{
		Identifier:   nodeID,
		OwnerID:      ownerID,
		Host:         opts.Host,
		Port:         opts.Port,
		Password:     opts.Password,
		Secure:       opts.Secure,
		IsActive:     true,
		AutoFallback: autoFallback,
		AddedAt:      time.Now(),
	}
	if err := r.store.SaveNode(ctx, rec); err != nil {
		// Roll the pool back so a failed persist leaves nothing registered.
		if rmErr := r.pool.RemoveNode(nodeID); rmErr != nil {
			r.logger.Warn("Failed to roll back pool node", zap.String("nodeID", nodeID), zap.Error(rmErr))
		}

		return "", fmt.Errorf("failed to persist node record: %w", err)
	}

	if err := r.pool.ConnectNode(ctx, nodeID); err != nil {
		r.logger.Warn("Initial connect of registered node failed; health poll will track it",
			zap.String("nodeID", nodeID), zap.Error(err))
	}
	go r.healthPoll(nodeID)

	r.logger.Info("Private node registered",
		zap.String("ownerID", ownerID), zap.String("nodeID", nodeID), zap.String("host", opts.Host))

	return nodeID, nil
}

// testConnectivity spins up a throwaway node with the candidate options and
// waits for it to come up. The test node is removed regardless of outcome.
func (r *Registry) testConnectivity(ctx context.Context, opts audio.NodeOptions) error {
	testID := "test-" + uuid.NewString()
	testOpts := opts
	testOpts.Identifier = testID

	if err := r.pool.AddNode(testOpts); err != nil {
		return fmt.Errorf("failed to create test node: %w", err)
	}
	defer func() {
		if err := r.pool.RemoveNode(testID); err != nil {
			r.logger.Warn("Failed to remove test node", zap.String("nodeID", testID), zap.Error(err))
		}
	}()

	if err := r.pool.ConnectNode(ctx, testID); err != nil {
		return err
	}

	deadline := time.NewTimer(r.timing.NodeTestTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(r.timing.NodeTestPollInterval)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			if r.pool.NodeConnected(testID) {
				return nil
			}
		case <-deadline.C:
			return ErrConnectionTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// UnregisterPrivateNode tears down and deletes the owner's private node. It
// refuses while any live session is bound to the node.
func (r *Registry) UnregisterPrivateNode(ctx context.Context, ownerID string) error {
	rec, err := r.store.NodeByOwner(ctx, ownerID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotRegistered
	}
	if err != nil {
		return fmt.Errorf("failed to look up node: %w", err)
	}

	if r.pool.BoundSessions(rec.Identifier) > 0 {
		return ErrNodeInUse
	}

	if err := r.pool.RemoveNode(rec.Identifier); err != nil {
		// The pool may never have had it (node registered as inactive).
		r.logger.Debug("Pool removal during unregister", zap.String("nodeID", rec.Identifier), zap.Error(err))
	}

	if err := r.store.DeleteNode(ctx, rec.Identifier); err != nil {
		return fmt.Errorf("failed to delete node record: %w", err)
	}

	r.logger.Info("Private node unregistered", zap.String("ownerID", ownerID), zap.String("nodeID", rec.Identifier))

	return nil
}

// SelectNodeForSession picks the node a new or existing session should use.
// An existing session keeps its node; otherwise the requester's private node
// is preferred when active and connected. An empty result means the caller
// falls back to the shared default pool.
func (r *Registry) SelectNodeForSession(ctx context.Context, userID string, guildID discord.GuildID) (string, bool) {
	if nodeID, ok := r.pool.SessionNodeID(guildID); ok {
		return nodeID, true
	}

	rec, err := r.store.NodeByOwner(ctx, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			r.logger.Warn("Failed to look up private node for selection",
				zap.String("userID", userID), zap.Error(err))
		}

		return "", false
	}

	if rec.IsActive && r.pool.NodeConnected(rec.Identifier) {
		return rec.Identifier, true
	}

	return "", false
}

// NodeStatus is a point-in-time snapshot of one private node.
type NodeStatus struct {
	Identifier    string
	Host          string
	Port          int
	Secure        bool
	Connected     bool
	IsActive      bool
	AutoFallback  bool
	RetryCount    int
	LastError     string
	BoundSessions int
}

// Status reports the owner's private node, live connection state included.
func (r *Registry) Status(ctx context.Context, ownerID string) (*NodeStatus, error) {
	rec, err := r.store.NodeByOwner(ctx, ownerID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up node: %w", err)
	}

	return &NodeStatus{
		Identifier:    rec.Identifier,
		Host:          rec.Host,
		Port:          rec.Port,
		Secure:        rec.Secure,
		Connected:     r.pool.NodeConnected(rec.Identifier),
		IsActive:      rec.IsActive,
		AutoFallback:  rec.AutoFallback,
		RetryCount:    rec.RetryCount,
		LastError:     rec.LastError,
		BoundSessions: r.pool.BoundSessions(rec.Identifier),
	}, nil
}

// ReportNodeFailure increments the retry counter for a private node and
// disables it once the threshold is crossed with autoFallback enabled.
// Shared pool identifiers are ignored.
func (r *Registry) ReportNodeFailure(ctx context.Context, identifier string) {
	if !IsPrivateNodeID(identifier) {
		return
	}

	rec, err := r.store.NodeByIdentifier(ctx, identifier)
	if err != nil {
		r.logger.Warn("Failure report for unknown node", zap.String("nodeID", identifier), zap.Error(err))

		return
	}

	rec.RetryCount++
	if rec.RetryCount >= maxRetries && rec.AutoFallback {
		rec.IsActive = false
		rec.LastError = fmt.Sprintf("node unreachable after %d retries", rec.RetryCount)
		r.logger.Warn("Private node disabled after repeated failures",
			zap.String("nodeID", identifier), zap.Int("retryCount", rec.RetryCount))
	}

	if err := r.store.SaveNode(ctx, rec); err != nil {
		r.logger.Error("Failed to persist failure count", zap.String("nodeID", identifier), zap.Error(err))
	}
}

// ReportNodeRecovered resets the retry bookkeeping for a private node.
func (r *Registry) ReportNodeRecovered(ctx context.Context, identifier string) {
	if !IsPrivateNodeID(identifier) {
		return
	}

	rec, err := r.store.NodeByIdentifier(ctx, identifier)
	if err != nil {
		return
	}

	if rec.RetryCount == 0 && rec.LastError == "" {
		return
	}

	rec.RetryCount = 0
	rec.LastError = ""
	if err := r.store.SaveNode(ctx, rec); err != nil {
		r.logger.Error("Failed to persist recovery", zap.String("nodeID", identifier), zap.Error(err))
	}
}

// healthPoll watches a freshly registered node for its first minute. A single
// failed call never disables a node; only sustained disconnection observed
// across polls accumulates retries.
func (r *Registry) healthPoll(identifier string) {
	tick := time.NewTicker(r.timing.HealthPollInterval)
	defer tick.Stop()
	lifetime := time.NewTimer(r.timing.HealthPollLifetime)
	defer lifetime.Stop()

	for {
		select {
		case <-tick.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.timing.HealthPollInterval)
			if r.pool.NodeConnected(identifier) {
				r.ReportNodeRecovered(ctx, identifier)
			} else {
				r.ReportNodeFailure(ctx, identifier)
			}
			cancel()
		case <-lifetime.C:
			// Initial stability confirmed (or the node was disabled); the
			// pool's own reconnect handling takes it from here.
			return
		}
	}
}

// RestoreNodes loads every active private node from storage into the pool.
// Called once on startup.
func (r *Registry) RestoreNodes(ctx context.Context) error {
	recs, err := r.store.ActiveNodes(ctx)
	if err != nil {
		return fmt.Errorf("failed to load node records: %w", err)
	}

	for _, rec := range recs {
		opts := audio.NodeOptions{
			Identifier: rec.Identifier,
			Host:       rec.Host,
			Port:       rec.Port,
			Password:   rec.Password,
			Secure:     rec.Secure,
		}
		if err := r.pool.AddNode(opts); err != nil {
			r.logger.Warn("Failed to restore node", zap.String("nodeID", rec.Identifier), zap.Error(err))

			continue
		}
		if err := r.pool.ConnectNode(ctx, rec.Identifier); err != nil {
			r.logger.Warn("Failed to connect restored node", zap.String("nodeID", rec.Identifier), zap.Error(err))
		}
	}

	r.logger.Info("Restored private nodes", zap.Int("count", len(recs)))

	return nil
}
