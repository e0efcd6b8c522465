package cache_test

import (
	"testing"
	"time"

	"planwise/internal/cache"
	"planwise/internal/session"

	"github.com/stretchr/testify/assert"
)

func TestKeyIgnoresTimestampsAndIDs(t *testing.T) {
	a := []session.Message{
		{ID: "1", Role: session.RoleUser, Content: "hello", Timestamp: time.Now()},
	}
	b := []session.Message{
		{ID: "2", Role: session.RoleUser, Content: "hello", Timestamp: time.Now().Add(time.Hour)},
	}
	assert.Equal(t, cache.Key(a), cache.Key(b))
}

func TestKeyDistinguishesContent(t *testing.T) {
	a := []session.Message{{Role: session.RoleUser, Content: "hello"}}
	b := []session.Message{{Role: session.RoleUser, Content: "hullo"}}
	assert.NotEqual(t, cache.Key(a), cache.Key(b))
}

func TestKeySeparatesFields(t *testing.T) {
	// Role/content boundaries must not collide.
	a := []session.Message{{Role: "userh", Content: "i"}}
	b := []session.Message{{Role: "user", Content: "hi"}}
	assert.NotEqual(t, cache.Key(a), cache.Key(b))
}
