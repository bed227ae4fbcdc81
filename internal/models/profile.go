package models

import (
	"errors"
	"strings"
)

// Profile holds the basic profile fields of a Matrix user.
type Profile struct {
	DisplayName string `json:"displayname,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// LookupState describes what the profile store knows about a user ID.
type LookupState int

const (
	// LookupUncached means the user ID was never looked up (or was evicted).
	LookupUncached LookupState = iota
	// LookupFound means a profile is cached for the user ID.
	LookupFound
	// LookupAbsent is the tombstone state: the user ID was looked up and
	// confirmed to have no profile.
	LookupAbsent
)

func (s LookupState) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupAbsent:
		return "absent"
	default:
		return "uncached"
	}
}

// Well-known HealthChat extended profile property keys for healthcare
// providers. Values are vendor-namespaced per the extended profile
// convention.
const (
	PropertyTitle           = "io.healthchat.title"
	PropertySpecialization  = "io.healthchat.specialization"
	PropertyPracticeAddress = "io.healthchat.practice_address"
	PropertyContactEmail    = "io.healthchat.contact_email"
	PropertyContactPhone    = "io.healthchat.contact_phone"
)

// ServerName derives the server portion of a Matrix user ID, i.e. the text
// after the first ':'. IDs without a server part map to themselves so that
// malformed IDs still get a stable memoization key.
func ServerName(userID string) string {
	if _, server, ok := strings.Cut(userID, ":"); ok {
		return server
	}
	return userID
}

// ValidateUserID performs the minimal sanity check applied to user IDs
// accepted over the API.
func ValidateUserID(userID string) error {
	if userID == "" {
		return errors.New("user_id is required")
	}
	if !strings.HasPrefix(userID, "@") {
		return errors.New("user_id must start with '@'")
	}
	return nil
}
