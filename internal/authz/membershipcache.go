package authz

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
)

// MembershipCache stores each user's resolved group membership for ttl,
// backed by a fiber.Storage so the teacher's session-store pluggability
// (in-memory vs bbolt-persisted) carries over unchanged (spec.md §4.7
// "cached per user for cacheTtl").
type MembershipCache struct {
	store fiber.Storage
	ttl   time.Duration
}

// NewMembershipCache wraps store with a fixed per-entry ttl.
func NewMembershipCache(store fiber.Storage, ttl time.Duration) *MembershipCache {
	return &MembershipCache{store: store, ttl: ttl}
}

func membershipKey(uid string) string {
	return "authz:membership:" + uid
}

// Get returns the cached group list for uid, and whether it was present
// (and not yet expired — fiber.Storage handles expiry itself).
func (c *MembershipCache) Get(uid string) ([]string, bool) {
	raw, err := c.store.Get(membershipKey(uid))
	if err != nil || len(raw) == 0 {
		return nil, false
	}

	var groups []string
	if err := json.Unmarshal(raw, &groups); err != nil {
		return nil, false
	}

	return groups, true
}

// Set stores groups for uid, expiring after the cache's configured ttl.
func (c *MembershipCache) Set(uid string, groups []string) error {
	raw, err := json.Marshal(groups)
	if err != nil {
		return err
	}

	return c.store.Set(membershipKey(uid), raw, c.ttl)
}

// Invalidate drops any cached entry for uid, forcing the next lookup to
// re-fetch from LDAP.
func (c *MembershipCache) Invalidate(uid string) error {
	return c.store.Delete(membershipKey(uid))
}
