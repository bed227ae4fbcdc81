package profiles

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"healthchat/internal/cache"
	"healthchat/internal/directory"
	"healthchat/internal/membership"
	"healthchat/internal/metrics"
	"healthchat/internal/models"
)

// Cache partition names, used for metrics labels.
const (
	profilesPartition     = "profiles"
	lookupErrorsPartition = "profile_lookup_errors"
	knownPartition        = "known_profiles"
)

// ErrUnknownUser is returned by FetchKnownProfile when the user neither is
// cached as known nor currently shares a room with the local user.
var ErrUnknownUser = errors.New("user does not share a room with the local user")

// profileEntry is a cached lookup result. absent marks the tombstone: the
// user was looked up and has no profile.
type profileEntry struct {
	profile models.Profile
	absent  bool
}

func (e profileEntry) state() models.LookupState {
	if e.absent {
		return models.LookupAbsent
	}
	return models.LookupFound
}

// Store caches user profiles and extended profile properties between API
// consumers and the remote directory. Basic profiles, lookup errors and
// known profiles live in bounded caches; per-server capability flags and
// extended property values are unbounded and survive until Flush.
//
// The store subscribes to the membership feed at construction: whenever a
// member's freshly observed display name or avatar differs from the cached
// copy, the stale entry is evicted so the next access re-fetches.
type Store struct {
	mu            sync.Mutex
	cacheCfg      cache.Config
	profiles      cache.Cache[profileEntry]
	lookupErrors  cache.Cache[*directory.Error]
	knownProfiles cache.Cache[profileEntry]
	serverSupport map[string]bool
	properties    map[string]map[string]models.PropertyValue

	dir         directory.Directory
	unsubscribe membership.Unsubscribe

	// Concurrent fetches for the same key are coalesced into one remote
	// call; every waiter receives the shared result.
	profileFlights  singleflight.Group
	propertyFlights singleflight.Group

	log *logrus.Entry
}

// NewStore creates a profile store reading from dir and invalidating from
// feed. A nil feed disables membership-driven invalidation.
func NewStore(dir directory.Directory, feed membership.Feed, cacheCfg cache.Config) (*Store, error) {
	if err := cacheCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache config: %w", err)
	}

	s := &Store{
		cacheCfg:      cacheCfg,
		serverSupport: make(map[string]bool),
		properties:    make(map[string]map[string]models.PropertyValue),
		dir:           dir,
		log:           logrus.WithField("component", "profiles"),
	}

	var err error
	if s.profiles, err = cache.New[profileEntry](cacheCfg, profilesPartition); err != nil {
		return nil, err
	}
	if s.lookupErrors, err = cache.New[*directory.Error](cacheCfg, lookupErrorsPartition); err != nil {
		return nil, err
	}
	if s.knownProfiles, err = cache.New[profileEntry](cacheCfg, knownPartition); err != nil {
		return nil, err
	}

	if feed != nil {
		unsubscribe, err := feed.Subscribe(s.handleMembershipEvent)
		if err != nil {
			return nil, fmt.Errorf("failed to subscribe to membership feed: %w", err)
		}
		s.unsubscribe = unsubscribe
	}

	return s, nil
}

// Close detaches the store from the membership feed.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// fetchOptions control error propagation on profile fetches.
type fetchOptions struct {
	propagateError bool
}

// FetchOption customises a profile fetch.
type FetchOption func(*fetchOptions)

// PropagateError makes fetch failures surface as errors to the caller
// instead of degrading to the absent state. The profile cache is left
// unwritten for that caller's failure.
func PropagateError() FetchOption {
	return func(o *fetchOptions) { o.propagateError = true }
}

func applyFetchOptions(opts []FetchOption) fetchOptions {
	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Profile is the synchronous, read-only lookup. It never touches the
// network. LookupUncached tells the caller to use ProfileOrFetch.
func (s *Store) Profile(userID string) (models.Profile, models.LookupState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.profiles.Get(userID)
	if !ok {
		return models.Profile{}, models.LookupUncached
	}
	return entry.profile, entry.state()
}

// ProfileOrFetch returns the cached profile when present and fetches it
// otherwise.
func (s *Store) ProfileOrFetch(ctx context.Context, userID string, opts ...FetchOption) (models.Profile, models.LookupState, error) {
	if profile, state := s.Profile(userID); state != models.LookupUncached {
		return profile, state, nil
	}
	return s.FetchProfile(ctx, userID, opts...)
}

// FetchProfile unconditionally queries the remote directory, overwriting
// whatever is cached. Any previously recorded lookup error for the user is
// cleared before the attempt; failures of a recognized kind are recorded.
// Without PropagateError a failure caches the tombstone and resolves to
// the absent state.
func (s *Store) FetchProfile(ctx context.Context, userID string, opts ...FetchOption) (models.Profile, models.LookupState, error) {
	o := applyFetchOptions(opts)

	result, err, _ := s.profileFlights.Do(userID, func() (interface{}, error) {
		s.mu.Lock()
		s.lookupErrors.Delete(userID)
		s.mu.Unlock()

		profile, err := s.dir.ProfileInfo(ctx, userID)
		if err != nil {
			metrics.FetchResult("profile", "error")
			var dirErr *directory.Error
			if errors.As(err, &dirErr) {
				s.mu.Lock()
				s.lookupErrors.Set(userID, dirErr)
				s.mu.Unlock()
			}
			return nil, err
		}

		metrics.FetchResult("profile", "ok")
		s.mu.Lock()
		s.profiles.Set(userID, profileEntry{profile: profile})
		s.mu.Unlock()
		return profile, nil
	})

	if err != nil {
		if o.propagateError {
			return models.Profile{}, models.LookupAbsent, err
		}
		s.log.WithError(err).WithField("user_id", userID).Debug("profile lookup failed")
		s.mu.Lock()
		s.profiles.Set(userID, profileEntry{absent: true})
		s.mu.Unlock()
		return models.Profile{}, models.LookupAbsent, nil
	}
	return result.(models.Profile), models.LookupFound, nil
}

// ProfileLookupError exposes the last recorded lookup failure for the user,
// for diagnostics. It is not cleared by reads.
func (s *Store) ProfileLookupError(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dirErr, ok := s.lookupErrors.Get(userID)
	if !ok {
		return nil
	}
	return dirErr
}

// KnownProfile is the synchronous lookup over the known-profiles cache.
func (s *Store) KnownProfile(userID string) (models.Profile, models.LookupState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.knownProfiles.Get(userID)
	if !ok {
		return models.Profile{}, models.LookupUncached
	}
	return entry.profile, entry.state()
}

// FetchKnownProfile fetches a profile only for users known to share at
// least one room with the local user. An existing known-cache entry
// short-circuits the membership check: membership is append-only from this
// store's perspective, so "was known" implies "is known". Unknown users
// yield ErrUnknownUser without a network call.
func (s *Store) FetchKnownProfile(ctx context.Context, userID string) (models.Profile, models.LookupState, error) {
	s.mu.Lock()
	_, known := s.knownProfiles.Peek(userID)
	s.mu.Unlock()

	if !known && !s.sharesRoomWithLocalUser(userID) {
		return models.Profile{}, models.LookupUncached, ErrUnknownUser
	}

	profile, state, _ := s.FetchProfile(ctx, userID)
	s.mu.Lock()
	s.knownProfiles.Set(userID, profileEntry{profile: profile, absent: state == models.LookupAbsent})
	s.mu.Unlock()
	return profile, state, nil
}

func (s *Store) sharesRoomWithLocalUser(userID string) bool {
	for _, room := range s.dir.Rooms() {
		if _, ok := room.Member(userID); ok {
			return true
		}
	}
	return false
}

// ServerSupportsExtendedProfiles reports whether the user's server supports
// extended profile properties. The answer is memoized per server name; a
// failed probe memoizes false and never propagates.
func (s *Store) ServerSupportsExtendedProfiles(ctx context.Context, userID string) bool {
	server := models.ServerName(userID)

	s.mu.Lock()
	if supported, ok := s.serverSupport[server]; ok {
		s.mu.Unlock()
		return supported
	}
	s.mu.Unlock()

	supported, err := s.dir.SupportsExtendedProfiles(ctx)
	if err != nil {
		metrics.FetchResult("capability", "error")
		s.log.WithError(err).WithField("server", server).Warn("extended profile capability probe failed")
		supported = false
	} else {
		metrics.FetchResult("capability", "ok")
	}

	s.mu.Lock()
	s.serverSupport[server] = supported
	s.mu.Unlock()
	return supported
}

// ExtendedProperty is the synchronous lookup of one extended profile
// property. The second return distinguishes a cached null from "uncached".
func (s *Store) ExtendedProperty(userID, key string) (models.PropertyValue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	props, ok := s.properties[userID]
	if !ok {
		return models.NullValue(), false
	}
	value, ok := props[key]
	if !ok {
		return models.NullValue(), false
	}
	return value, true
}

// ExtendedPropertyOrFetch returns the cached value when present and fetches
// it otherwise.
func (s *Store) ExtendedPropertyOrFetch(ctx context.Context, userID, key string) models.PropertyValue {
	if value, ok := s.ExtendedProperty(userID, key); ok {
		return value
	}
	return s.FetchExtendedProperty(ctx, userID, key)
}

// FetchExtendedProperty queries the remote directory for one property.
// Failures are logged and resolve to null, never to an error; raw values
// outside the legal union are coerced to null with a warning.
func (s *Store) FetchExtendedProperty(ctx context.Context, userID, key string) models.PropertyValue {
	flightKey := userID + "\x00" + key
	result, _, _ := s.propertyFlights.Do(flightKey, func() (interface{}, error) {
		raw, err := s.dir.ExtendedProperty(ctx, userID, key)
		if err != nil {
			metrics.FetchResult("extended_property", "error")
			s.log.WithError(err).WithFields(logrus.Fields{
				"user_id": userID,
				"key":     key,
			}).Warn("extended profile property fetch failed")
			value := models.NullValue()
			s.setProperty(userID, key, value)
			return value, nil
		}

		metrics.FetchResult("extended_property", "ok")
		value, coerced := models.PropertyValueFromJSON(raw)
		if coerced {
			s.log.WithFields(logrus.Fields{
				"user_id": userID,
				"key":     key,
			}).Warn("coerced malformed extended profile value to null")
		}
		s.setProperty(userID, key, value)
		return value, nil
	})
	return result.(models.PropertyValue)
}

// SetExtendedProperty writes a property on the local user's profile. The
// remote write happens first; the cache is updated only after the remote
// confirms. Returns false, never an error, on remote failure.
func (s *Store) SetExtendedProperty(ctx context.Context, key string, value models.PropertyValue) bool {
	if err := s.dir.SetExtendedProperty(ctx, key, value); err != nil {
		s.log.WithError(err).WithField("key", key).Error("failed to set extended profile property")
		return false
	}
	s.setProperty(s.dir.SafeUserID(), key, value)
	return true
}

// DeleteExtendedProperty removes a property from the local user's profile,
// remote first. Returns false, never an error, on remote failure.
func (s *Store) DeleteExtendedProperty(ctx context.Context, key string) bool {
	if err := s.dir.DeleteExtendedProperty(ctx, key); err != nil {
		s.log.WithError(err).WithField("key", key).Error("failed to delete extended profile property")
		return false
	}

	userID := s.dir.SafeUserID()
	s.mu.Lock()
	defer s.mu.Unlock()
	if props, ok := s.properties[userID]; ok {
		delete(props, key)
		if len(props) == 0 {
			delete(s.properties, userID)
		}
	}
	return true
}

func (s *Store) setProperty(userID, key string, value models.PropertyValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	props, ok := s.properties[userID]
	if !ok {
		props = make(map[string]models.PropertyValue)
		s.properties[userID] = props
	}
	props[key] = value
}

// Flush replaces every internal store with a fresh empty instance. In-flight
// fetches are unaffected; their results populate the new caches when they
// resolve.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = rebuildCache(s.profiles, s.cacheCfg, profilesPartition, s.log)
	s.lookupErrors = rebuildCache(s.lookupErrors, s.cacheCfg, lookupErrorsPartition, s.log)
	s.knownProfiles = rebuildCache(s.knownProfiles, s.cacheCfg, knownPartition, s.log)
	s.serverSupport = make(map[string]bool)
	s.properties = make(map[string]map[string]models.PropertyValue)
}

// rebuildCache returns a fresh cache partition. The config was validated at
// construction so failure is not expected; if it happens anyway the old
// partition is purged and reused.
func rebuildCache[V any](old cache.Cache[V], cfg cache.Config, name string, log *logrus.Entry) cache.Cache[V] {
	fresh, err := cache.New[V](cfg, name)
	if err != nil {
		log.WithError(err).WithField("cache", name).Error("failed to rebuild cache, purging in place")
		old.Purge()
		return old
	}
	return fresh
}

// handleMembershipEvent evicts cached profiles whose display name or avatar
// no longer matches the freshly observed membership record. Comparison is
// field-by-field; tombstones carry no fields and are left alone.
func (s *Store) handleMembershipEvent(event models.MembershipEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evictOnMismatch(s.profiles, event)
	evictOnMismatch(s.knownProfiles, event)
}

func evictOnMismatch(c cache.Cache[profileEntry], event models.MembershipEvent) {
	entry, ok := c.Peek(event.UserID)
	if !ok || entry.absent {
		return
	}
	if entry.profile.DisplayName != event.DisplayName || entry.profile.AvatarURL != event.AvatarURL {
		c.Delete(event.UserID)
	}
}
