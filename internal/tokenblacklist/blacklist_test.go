package tokenblacklist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBlacklistAndIsBlacklisted(t *testing.T) {
	b := NewBlacklist(time.Hour, time.Hour)
	assert.False(t, b.IsBlacklisted("token-a"))

	b.Blacklist("token-a", time.Time{})
	assert.True(t, b.IsBlacklisted("token-a"))
}

func TestBlacklistExpiresAtPastTimeIsImmediatelyExpired(t *testing.T) {
	b := NewBlacklist(time.Hour, time.Hour)
	b.Blacklist("token-b", time.Now().Add(-time.Minute))
	time.Sleep(5 * time.Millisecond)
	assert.False(t, b.IsBlacklisted("token-b"))
}

func TestBlacklistRespectsFutureExpiry(t *testing.T) {
	b := NewBlacklist(time.Hour, time.Hour)
	b.Blacklist("token-c", time.Now().Add(50*time.Millisecond))
	assert.True(t, b.IsBlacklisted("token-c"))
	time.Sleep(100 * time.Millisecond)
	assert.False(t, b.IsBlacklisted("token-c"))
}

func TestStatsReportsActiveEntries(t *testing.T) {
	b := NewBlacklist(time.Hour, time.Hour)
	b.Blacklist("token-d", time.Time{})
	b.Blacklist("token-e", time.Time{})

	stats := b.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Active)
	assert.False(t, stats.NextCleanup.Before(stats.LastCleanup))
}
