package membership

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"healthchat/internal/directory"
	"healthchat/internal/models"
)

// Roster maintains the local user's room membership state from feed events.
// It implements directory.RoomSource, so known-user checks are answered from
// memory. Membership is effectively append-only for profile-store purposes:
// a user who once shared a room stays "known" in the store's bounded cache
// even after leaving here.
type Roster struct {
	mu          sync.RWMutex
	localUserID string
	rooms       map[string]map[string]directory.Member
	unsubscribe Unsubscribe
	log         *logrus.Entry
}

// NewRoster creates a roster tracking the given local user and subscribes
// it to the feed.
func NewRoster(localUserID string, feed Feed) (*Roster, error) {
	r := &Roster{
		localUserID: localUserID,
		rooms:       make(map[string]map[string]directory.Member),
		log:         logrus.WithField("component", "roster"),
	}
	unsubscribe, err := feed.Subscribe(r.handleEvent)
	if err != nil {
		return nil, err
	}
	r.unsubscribe = unsubscribe
	return r, nil
}

func (r *Roster) handleEvent(event models.MembershipEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch event.Membership {
	case models.MembershipJoin, models.MembershipInvite:
		members, ok := r.rooms[event.RoomID]
		if !ok {
			members = make(map[string]directory.Member)
			r.rooms[event.RoomID] = members
		}
		members[event.UserID] = directory.Member{
			UserID:      event.UserID,
			DisplayName: event.DisplayName,
			AvatarURL:   event.AvatarURL,
			Membership:  event.Membership,
		}
	case models.MembershipLeave, models.MembershipBan:
		if event.UserID == r.localUserID {
			// The room is no longer shared with anyone.
			delete(r.rooms, event.RoomID)
			return
		}
		if members, ok := r.rooms[event.RoomID]; ok {
			delete(members, event.UserID)
			if len(members) == 0 {
				delete(r.rooms, event.RoomID)
			}
		}
	}
}

// Rooms implements directory.RoomSource.
func (r *Roster) Rooms() []directory.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]directory.Room, 0, len(r.rooms))
	for id := range r.rooms {
		rooms = append(rooms, roomView{id: id, roster: r})
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].(roomView).id < rooms[j].(roomView).id
	})
	return rooms
}

// Close detaches the roster from the feed.
func (r *Roster) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
}

// roomView is a live read-only view over one room's members.
type roomView struct {
	id     string
	roster *Roster
}

func (v roomView) ID() string { return v.id }

func (v roomView) Member(userID string) (directory.Member, bool) {
	v.roster.mu.RLock()
	defer v.roster.mu.RUnlock()

	members, ok := v.roster.rooms[v.id]
	if !ok {
		return directory.Member{}, false
	}
	member, ok := members[userID]
	return member, ok
}
