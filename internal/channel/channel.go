// Package channel implements named broadcast groups: membership, invite
// and verified-only gates, a bounded replay ring, and last-activity
// tracking.
package channel

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ReplayEntry is one message retained in a channel's replay ring.
type ReplayEntry struct {
	MsgID     string
	From      string
	Content   string
	Timestamp time.Time
}

// Channel is one named broadcast group.
type Channel struct {
	Name         string
	InviteOnly   bool
	VerifiedOnly bool

	mu           sync.RWMutex
	members      map[string]bool
	invited      map[string]bool
	ring         []ReplayEntry
	ringCap      int
	lastActivity time.Time
}

func newChannel(name string, inviteOnly, verifiedOnly bool, ringCap int) *Channel {
	if ringCap <= 0 {
		ringCap = 100
	}
	return &Channel{
		Name:         name,
		InviteOnly:   inviteOnly,
		VerifiedOnly: verifiedOnly,
		members:      make(map[string]bool),
		invited:      make(map[string]bool),
		ringCap:      ringCap,
	}
}

// ValidName reports whether a channel name conforms to the "#name" rule.
func ValidName(name string) bool {
	return strings.HasPrefix(name, "#") && len(name) > 1
}

// IsMember reports whether agentID is currently a member.
func (c *Channel) IsMember(agentID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.members[agentID]
}

// IsInvited reports whether agentID has been invited.
func (c *Channel) IsInvited(agentID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.invited[agentID]
}

// Invite adds agentID to the invited set.
func (c *Channel) Invite(agentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invited[agentID] = true
}

// Join adds agentID as a member, returning false if it was already a
// member (idempotent re-join per spec.md §4.3).
func (c *Channel) Join(agentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.members[agentID] {
		return false
	}
	c.members[agentID] = true
	delete(c.invited, agentID)
	c.lastActivity = time.Now()
	return true
}

// Leave removes agentID from membership, returning false if it was not a member.
func (c *Channel) Leave(agentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.members[agentID] {
		return false
	}
	delete(c.members, agentID)
	c.lastActivity = time.Now()
	return true
}

// Members returns a snapshot of current member ids.
func (c *Channel) Members() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.members))
	for id := range c.members {
		out = append(out, id)
	}
	return out
}

// MemberCount returns the number of current members.
func (c *Channel) MemberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.members)
}

// Append adds an entry to the replay ring, evicting the oldest if full,
// and bumps last-activity.
func (c *Channel) Append(entry ReplayEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ring = append(c.ring, entry)
	if len(c.ring) > c.ringCap {
		c.ring = c.ring[len(c.ring)-c.ringCap:]
	}
	c.lastActivity = time.Now()
}

// Replay returns a snapshot of the current replay ring, oldest first.
func (c *Channel) Replay() []ReplayEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ReplayEntry, len(c.ring))
	copy(out, c.ring)
	return out
}

// LastActivity returns the last time this channel saw a join/leave/message.
func (c *Channel) LastActivity() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActivity
}

// CanJoin evaluates the invite-only/verified-only gates for agentID.
func (c *Channel) CanJoin(agentID string, verified bool) error {
	if c.VerifiedOnly && !verified {
		return fmt.Errorf("channel: verified-only channel requires a verified agent")
	}
	if c.InviteOnly && !c.IsInvited(agentID) && !c.IsMember(agentID) {
		return fmt.Errorf("channel: invite-only channel requires an invitation")
	}
	return nil
}
