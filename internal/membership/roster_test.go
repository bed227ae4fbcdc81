package membership

import (
	"testing"

	"healthchat/internal/models"
)

// stubFeed delivers events synchronously to a single handler.
type stubFeed struct {
	handler      func(models.MembershipEvent)
	unsubscribed bool
}

func (f *stubFeed) Subscribe(handler func(models.MembershipEvent)) (Unsubscribe, error) {
	f.handler = handler
	return func() { f.unsubscribed = true }, nil
}

func (f *stubFeed) emit(event models.MembershipEvent) {
	f.handler(event)
}

const rosterLocalUser = "@local:healthchat.io"

func newTestRoster(t *testing.T) (*Roster, *stubFeed) {
	t.Helper()
	feed := &stubFeed{}
	roster, err := NewRoster(rosterLocalUser, feed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(roster.Close)
	return roster, feed
}

func joinEvent(roomID, userID string) models.MembershipEvent {
	return models.MembershipEvent{
		RoomID:     roomID,
		UserID:     userID,
		Membership: models.MembershipJoin,
	}
}

func TestRosterJoinAddsMember(t *testing.T) {
	roster, feed := newTestRoster(t)

	feed.emit(joinEvent("!room:x", rosterLocalUser))
	feed.emit(models.MembershipEvent{
		RoomID:      "!room:x",
		UserID:      "@alice:x",
		Membership:  models.MembershipJoin,
		DisplayName: "Alice",
	})

	rooms := roster.Rooms()
	if len(rooms) != 1 || rooms[0].ID() != "!room:x" {
		t.Fatalf("unexpected rooms: %v", rooms)
	}
	member, ok := rooms[0].Member("@alice:x")
	if !ok {
		t.Fatal("expected alice to be a member")
	}
	if member.DisplayName != "Alice" {
		t.Errorf("unexpected member: %+v", member)
	}
}

func TestRosterInviteAddsMember(t *testing.T) {
	roster, feed := newTestRoster(t)

	feed.emit(models.MembershipEvent{
		RoomID:     "!room:x",
		UserID:     "@bob:x",
		Membership: models.MembershipInvite,
	})

	rooms := roster.Rooms()
	if len(rooms) != 1 {
		t.Fatalf("expected one room, got %d", len(rooms))
	}
	if _, ok := rooms[0].Member("@bob:x"); !ok {
		t.Error("expected invited user to be a member")
	}
}

func TestRosterLeaveRemovesMember(t *testing.T) {
	roster, feed := newTestRoster(t)

	feed.emit(joinEvent("!room:x", rosterLocalUser))
	feed.emit(joinEvent("!room:x", "@alice:x"))
	feed.emit(models.MembershipEvent{
		RoomID:     "!room:x",
		UserID:     "@alice:x",
		Membership: models.MembershipLeave,
	})

	rooms := roster.Rooms()
	if len(rooms) != 1 {
		t.Fatalf("expected room to remain, got %d rooms", len(rooms))
	}
	if _, ok := rooms[0].Member("@alice:x"); ok {
		t.Error("expected alice to be gone after leave")
	}
}

func TestRosterBanRemovesMember(t *testing.T) {
	roster, feed := newTestRoster(t)

	feed.emit(joinEvent("!room:x", rosterLocalUser))
	feed.emit(joinEvent("!room:x", "@troll:x"))
	feed.emit(models.MembershipEvent{
		RoomID:     "!room:x",
		UserID:     "@troll:x",
		Membership: models.MembershipBan,
	})

	if _, ok := roster.Rooms()[0].Member("@troll:x"); ok {
		t.Error("expected banned user to be gone")
	}
}

func TestRosterLocalUserLeaveDropsRoom(t *testing.T) {
	roster, feed := newTestRoster(t)

	feed.emit(joinEvent("!room:x", rosterLocalUser))
	feed.emit(joinEvent("!room:x", "@alice:x"))
	feed.emit(models.MembershipEvent{
		RoomID:     "!room:x",
		UserID:     rosterLocalUser,
		Membership: models.MembershipLeave,
	})

	if rooms := roster.Rooms(); len(rooms) != 0 {
		t.Errorf("expected no rooms after local user left, got %v", rooms)
	}
}

func TestRosterEmptyRoomIsDropped(t *testing.T) {
	roster, feed := newTestRoster(t)

	feed.emit(joinEvent("!room:x", "@alice:x"))
	feed.emit(models.MembershipEvent{
		RoomID:     "!room:x",
		UserID:     "@alice:x",
		Membership: models.MembershipLeave,
	})

	if rooms := roster.Rooms(); len(rooms) != 0 {
		t.Errorf("expected no rooms once the last member left, got %v", rooms)
	}
}

func TestRosterRoomsAreSorted(t *testing.T) {
	roster, feed := newTestRoster(t)

	feed.emit(joinEvent("!zzz:x", "@alice:x"))
	feed.emit(joinEvent("!aaa:x", "@alice:x"))

	rooms := roster.Rooms()
	if len(rooms) != 2 || rooms[0].ID() != "!aaa:x" || rooms[1].ID() != "!zzz:x" {
		t.Errorf("expected rooms sorted by ID, got %v", rooms)
	}
}

func TestRosterCloseUnsubscribes(t *testing.T) {
	roster, feed := newTestRoster(t)
	roster.Close()
	if !feed.unsubscribed {
		t.Error("expected close to unsubscribe from the feed")
	}
	// A second close must be a no-op.
	roster.Close()
}
