package channel

import (
	"fmt"
	"sync"
)

// Store owns the set of live channels, keyed by name. Grounded in the
// roster-map-plus-RWMutex shape this codebase uses for any shared
// membership table.
type Store struct {
	mu       sync.RWMutex
	channels map[string]*Channel
	ringCap  int
}

func NewStore(ringCap int) *Store {
	return &Store{channels: make(map[string]*Channel), ringCap: ringCap}
}

// Get returns an existing channel.
func (s *Store) Get(name string) (*Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.channels[name]
	return c, ok
}

// Create registers a new channel. Fails if one already exists with this name.
func (s *Store) Create(name string, inviteOnly, verifiedOnly bool) (*Channel, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("channel: invalid name %q", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.channels[name]; exists {
		return nil, fmt.Errorf("channel: %q already exists", name)
	}
	c := newChannel(name, inviteOnly, verifiedOnly, s.ringCap)
	s.channels[name] = c
	return c, nil
}

// GetOrCreate returns the named channel, creating a default (public,
// non-invite, non-verified) one if absent. Used by JOIN, which implicitly
// creates public channels on first join.
func (s *Store) GetOrCreate(name string) (*Channel, error) {
	if c, ok := s.Get(name); ok {
		return c, nil
	}
	if !ValidName(name) {
		return nil, fmt.Errorf("channel: invalid name %q", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, exists := s.channels[name]; exists {
		return c, nil
	}
	c := newChannel(name, false, false, s.ringCap)
	s.channels[name] = c
	return c, nil
}

// List returns a snapshot of all channels.
func (s *Store) List() []*Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Channel, 0, len(s.channels))
	for _, c := range s.channels {
		out = append(out, c)
	}
	return out
}

// ChannelsFor returns every channel in which agentID is a member.
func (s *Store) ChannelsFor(agentID string) []*Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Channel
	for _, c := range s.channels {
		if c.IsMember(agentID) {
			out = append(out, c)
		}
	}
	return out
}

// RemoveAgent removes agentID from every channel's membership (used on
// disconnect / ban / kick).
func (s *Store) RemoveAgent(agentID string) {
	s.mu.RLock()
	chans := make([]*Channel, 0, len(s.channels))
	for _, c := range s.channels {
		chans = append(chans, c)
	}
	s.mu.RUnlock()
	for _, c := range chans {
		c.Leave(agentID)
	}
}
