package directory

import (
	"context"
	"encoding/json"
	"fmt"

	"healthchat/internal/models"
)

// Directory is the remote profile directory the store fetches from. It also
// exposes the locally known room state used for known-user gating and the
// identity used as the subject of extended property writes.
type Directory interface {
	// ProfileInfo looks up the basic profile of a user.
	ProfileInfo(ctx context.Context, userID string) (models.Profile, error)
	// SupportsExtendedProfiles probes the connected server's capability to
	// serve extended profile properties.
	SupportsExtendedProfiles(ctx context.Context) (bool, error)
	// ExtendedProperty reads one extended profile property. A nil raw value
	// with a nil error means the property is unset.
	ExtendedProperty(ctx context.Context, userID, key string) (json.RawMessage, error)
	// SetExtendedProperty writes a property on the local user's profile.
	SetExtendedProperty(ctx context.Context, key string, value models.PropertyValue) error
	// DeleteExtendedProperty removes a property from the local user's profile.
	DeleteExtendedProperty(ctx context.Context, key string) error
	// Rooms returns the rooms the local user currently knows about.
	Rooms() []Room
	// SafeUserID returns the validated local user ID.
	SafeUserID() string
}

// Room is a view over one room's membership.
type Room interface {
	ID() string
	Member(userID string) (Member, bool)
}

// Member is the membership record of one user in one room.
type Member struct {
	UserID      string
	DisplayName string
	AvatarURL   string
	Membership  models.Membership
}

// RoomSource supplies local room state to a Directory implementation.
type RoomSource interface {
	Rooms() []Room
}

// Matrix error codes the store recognizes.
const (
	CodeNotFound     = "M_NOT_FOUND"
	CodeForbidden    = "M_FORBIDDEN"
	CodeUnrecognized = "M_UNRECOGNIZED"
)

// Error is a recognized directory failure carrying the Matrix error code.
// Only errors of this type are recorded in the store's lookup-error cache;
// transport-level failures stay anonymous.
type Error struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	return fmt.Sprintf("directory: %s (%s, HTTP %d)", e.Message, e.Code, e.StatusCode)
}

// IsNotFound reports whether the error is a profile-not-found response.
func (e *Error) IsNotFound() bool { return e.Code == CodeNotFound }
