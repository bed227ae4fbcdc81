package service

import (
	"context"
	"fmt"

	"healthchat/internal/cache"
	"healthchat/internal/config"
	"healthchat/internal/directory"
	"healthchat/internal/membership"
	"healthchat/internal/profiles"
)

// Service bundles the profile store with the collaborators it was built
// from, so main and the health endpoints can reach them.
type Service struct {
	Store  *profiles.Store
	Feed   *membership.NATSFeed
	Roster *membership.Roster
}

// Ready checks whether dependencies are available (the membership feed
// connection, which also carries invalidation traffic).
func (s *Service) Ready(ctx context.Context) error {
	return s.Feed.Ready(ctx)
}

// Close tears the service down in dependency order.
func (s *Service) Close() error {
	s.Store.Close()
	s.Roster.Close()
	if err := s.Feed.Close(); err != nil {
		return fmt.Errorf("failed to close membership feed: %w", err)
	}
	return nil
}

// Builder assembles a complete profile service from configuration.
type Builder struct {
	config *config.Config
}

// NewBuilder creates a new service builder
func NewBuilder(config *config.Config) *Builder {
	return &Builder{config: config}
}

// Build builds and configures all service components
func (b *Builder) Build() (*Service, error) {
	feed, err := membership.NewNATSFeed(membership.FeedConfig{
		ServerURL:    b.config.NATS.ServerURL,
		Subject:      b.config.NATS.Subject,
		Embedded:     b.config.NATS.Embedded,
		DataDir:      b.config.NATS.DataDir,
		StartTimeout: b.config.NATS.StartTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create membership feed: %w", err)
	}

	roster, err := membership.NewRoster(b.config.Matrix.UserID, feed)
	if err != nil {
		feed.Close()
		return nil, fmt.Errorf("failed to create roster: %w", err)
	}

	timeout, err := b.config.Matrix.GetRequestTimeout()
	if err != nil {
		roster.Close()
		feed.Close()
		return nil, fmt.Errorf("invalid matrix request timeout: %w", err)
	}

	dir, err := directory.NewMatrixDirectory(directory.MatrixConfig{
		HomeserverURL:  b.config.Matrix.HomeserverURL,
		UserID:         b.config.Matrix.UserID,
		AccessToken:    b.config.Matrix.AccessToken,
		RequestTimeout: timeout,
	}, roster)
	if err != nil {
		roster.Close()
		feed.Close()
		return nil, fmt.Errorf("failed to create matrix directory: %w", err)
	}

	store, err := profiles.NewStore(dir, feed, cache.Config{
		Backend:     b.config.Cache.Backend,
		Capacity:    b.config.Cache.Capacity,
		NumCounters: b.config.Cache.NumCounters,
		BufferItems: b.config.Cache.BufferItems,
	})
	if err != nil {
		roster.Close()
		feed.Close()
		return nil, fmt.Errorf("failed to create profile store: %w", err)
	}

	return &Service{
		Store:  store,
		Feed:   feed,
		Roster: roster,
	}, nil
}
