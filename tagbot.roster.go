package tagbot

import (
	"context"
	"sync"
)

// Roster is an in-memory view of guilds and their members, fed by a platform
// bridge (see NewGatewayHandler). It implements PermissionChecker,
// MemberDirectory, GuildDirectory and InviteProvider.
type Roster struct {
	mu      sync.RWMutex
	guilds  map[string]Guild
	members map[string]map[string]Member   // guildID -> userID -> member
	left    map[string]map[string]struct{} // guildID -> userIDs seen leaving
	users   map[string]Member              // every user ever seen
}

var (
	_ PermissionChecker = (*Roster)(nil)
	_ MemberDirectory   = (*Roster)(nil)
	_ GuildDirectory    = (*Roster)(nil)
	_ InviteProvider    = (*Roster)(nil)
)

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{
		guilds:  make(map[string]Guild),
		members: make(map[string]map[string]Member),
		left:    make(map[string]map[string]struct{}),
		users:   make(map[string]Member),
	}
}

// UpsertGuild records guild metadata.
func (r *Roster) UpsertGuild(guild Guild) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.guilds[guild.ID] = guild
}

// UpsertMember records a member joining or changing.
func (r *Roster) UpsertMember(guildID string, member Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.members[guildID]
	if !ok {
		members = make(map[string]Member)
		r.members[guildID] = members
	}
	members[member.ID] = member
	r.users[member.ID] = member
	delete(r.left[guildID], member.ID)
}

// RemoveMember records a member leaving. The user stays known to User and
// is reported absent by IsMember until they join again.
func (r *Roster) RemoveMember(guildID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if members, ok := r.members[guildID]; ok {
		delete(members, userID)
	}
	left, ok := r.left[guildID]
	if !ok {
		left = make(map[string]struct{})
		r.left[guildID] = left
	}
	left[userID] = struct{}{}
}

// Guild returns the guild, with MemberCount filled from the roster when the
// bridge did not supply one.
func (r *Roster) Guild(_ context.Context, guildID string) (*Guild, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	guild, ok := r.guilds[guildID]
	if !ok {
		return nil, nil
	}
	if guild.MemberCount == 0 {
		guild.MemberCount = len(r.members[guildID])
	}
	return &guild, nil
}

// Member returns the guild member or nil.
func (r *Roster) Member(_ context.Context, guildID, userID string) (*Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	member, ok := r.members[guildID][userID]
	if !ok {
		return nil, nil
	}
	return &member, nil
}

// User returns the last known profile of any user or nil.
func (r *Roster) User(_ context.Context, userID string) (*Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// IsMember reports false only for users seen leaving the guild. A user the
// bridge has never reported cannot be proven absent and counts as a member.
func (r *Roster) IsMember(_ context.Context, guildID, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, departed := r.left[guildID][userID]
	return !departed, nil
}

// IsElevated reports the member's Elevated flag. Non-members are never elevated.
func (r *Roster) IsElevated(_ context.Context, guildID, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	member, ok := r.members[guildID][userID]
	return ok && member.Elevated, nil
}

// Invite returns the guild's invite link.
func (r *Roster) Invite(_ context.Context, guildID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.guilds[guildID].Invite, nil
}
