package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	gocache "github.com/patrickmn/go-cache"

	"github.com/MrSnakeDoc/consentgate/internal/kv"
)

// Store keeps visitor records in process memory.
// Entries never expire; the record is lost on restart.
type Store struct {
	c *gocache.Cache
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{c: gocache.New(gocache.NoExpiration, 0)}
}

// Scope returns the store view for a single visitor
func (s *Store) Scope(visitorID string) kv.Store {
	return &visitorStore{c: s.c, prefix: visitorPrefix(visitorID)}
}

// CountVisitors returns the number of visitors with at least one key
func (s *Store) CountVisitors(_ context.Context) (int64, error) {
	seen := make(map[string]struct{})
	for k := range s.c.Items() {
		if id, ok := visitorFromKey(k); ok {
			seen[id] = struct{}{}
		}
	}
	return int64(len(seen)), nil
}

// visitorFromKey reverses visitorPrefix; the length prefix keeps IDs
// containing separators unambiguous.
func visitorFromKey(k string) (string, bool) {
	colon := strings.IndexByte(k, ':')
	if colon <= 0 {
		return "", false
	}
	n, err := strconv.Atoi(k[:colon])
	if err != nil || colon+1+n > len(k) {
		return "", false
	}
	return k[colon+1 : colon+1+n], true
}

func visitorPrefix(visitorID string) string {
	return fmt.Sprintf("%d:%s|", len(visitorID), visitorID)
}

type visitorStore struct {
	c      *gocache.Cache
	prefix string
}

func (v *visitorStore) Get(_ context.Context, key string) (string, bool, error) {
	raw, ok := v.c.Get(v.prefix + key)
	if !ok {
		return "", false, nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", false, fmt.Errorf("unexpected value type %T for key %s", raw, key)
	}
	return value, true, nil
}

func (v *visitorStore) Set(_ context.Context, key, value string) error {
	v.c.Set(v.prefix+key, value, gocache.NoExpiration)
	return nil
}
