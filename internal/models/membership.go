package models

import "errors"

// Membership is the membership state carried by a room membership event.
type Membership string

const (
	MembershipJoin   Membership = "join"
	MembershipInvite Membership = "invite"
	MembershipLeave  Membership = "leave"
	MembershipBan    Membership = "ban"
	MembershipKnock  Membership = "knock"
)

// IsValid checks if the membership state is one the feed understands.
func (m Membership) IsValid() bool {
	switch m {
	case MembershipJoin, MembershipInvite, MembershipLeave, MembershipBan, MembershipKnock:
		return true
	default:
		return false
	}
}

// MembershipEvent is the payload published on the membership feed whenever a
// room member changes. It carries the freshly observed profile fields so
// consumers can compare them against cached copies.
type MembershipEvent struct {
	RoomID      string     `json:"room_id"`
	UserID      string     `json:"user_id"`
	Membership  Membership `json:"membership"`
	DisplayName string     `json:"displayname,omitempty"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
}

// Validate validates the event before it is published or dispatched.
func (e *MembershipEvent) Validate() error {
	if e.RoomID == "" {
		return errors.New("room_id is required")
	}
	if e.UserID == "" {
		return errors.New("user_id is required")
	}
	if !e.Membership.IsValid() {
		return errors.New("invalid membership")
	}
	return nil
}
