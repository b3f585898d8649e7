package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quickcommerce/deals-engine/pkg/models"
)

func testResult(marker string) *models.QueryResult {
	return &models.QueryResult{
		Rows:    &models.RowSet{Columns: []string{"name"}, Rows: []map[string]any{{"name": marker}}},
		SQLUsed: "SELECT name FROM products LIMIT 1",
	}
}

// sameShardFingerprints finds n distinct fingerprints that hash to one
// shard, so LRU ordering can be asserted without sharding interference.
func sameShardFingerprints(t *testing.T, n int) []string {
	t.Helper()
	target := shardFor(Fingerprint("seed", nil))
	fps := []string{Fingerprint("seed", nil)}
	for i := 0; len(fps) < n; i++ {
		fp := Fingerprint(fmt.Sprintf("question %d", i), nil)
		if shardFor(fp) == target {
			fps = append(fps, fp)
		}
	}
	return fps
}

func TestFingerprint_NormalizesQuestion(t *testing.T) {
	a := Fingerprint("  Cheapest Onions  ", []string{"products"})
	b := Fingerprint("cheapest onions", []string{"products"})
	assert.Equal(t, a, b)
}

func TestFingerprint_TableOrderIrrelevant(t *testing.T) {
	a := Fingerprint("q", []string{"products", "platforms"})
	b := Fingerprint("q", []string{"platforms", "products"})
	assert.Equal(t, a, b)
}

func TestFingerprint_SensitiveToQuestionAndTables(t *testing.T) {
	base := Fingerprint("cheapest onions", []string{"products"})
	assert.NotEqual(t, base, Fingerprint("cheapest apples", []string{"products"}))
	assert.NotEqual(t, base, Fingerprint("cheapest onions", []string{"platforms"}))
}

func TestLookup_MissThenHit(t *testing.T) {
	c := New(100, time.Minute, zap.NewNop())
	fp := Fingerprint("q", nil)

	assert.Nil(t, c.Lookup(fp))

	c.Store(fp, testResult("a"), "SELECT 1", []string{"products"})

	entry := c.Lookup(fp)
	require.NotNil(t, entry)
	assert.Equal(t, int64(1), entry.HitCount)
	assert.Equal(t, []string{"products"}, entry.TablesUsed)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestLookup_ExpiredEntryIsMiss(t *testing.T) {
	c := New(100, 10*time.Millisecond, zap.NewNop())
	fp := Fingerprint("q", nil)

	c.Store(fp, testResult("a"), "", nil)
	time.Sleep(20 * time.Millisecond)

	assert.Nil(t, c.Lookup(fp))
	assert.Equal(t, 0, c.Stats().Size, "expired entry should be removed on lookup")
}

func TestStore_EvictsLeastRecentlyUsed(t *testing.T) {
	// Capacity 16 gives each shard exactly one slot, so two fingerprints in
	// the same shard force an eviction deterministically.
	c := New(16, time.Minute, zap.NewNop())
	fps := sameShardFingerprints(t, 2)

	c.Store(fps[0], testResult("a"), "", nil)
	c.Store(fps[1], testResult("b"), "", nil)

	assert.Nil(t, c.Lookup(fps[0]), "oldest entry should have been evicted")
	assert.NotNil(t, c.Lookup(fps[1]))
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestStore_LookupRefreshesLRUPosition(t *testing.T) {
	c := New(32, time.Minute, zap.NewNop()) // two slots per shard
	fps := sameShardFingerprints(t, 3)

	c.Store(fps[0], testResult("a"), "", nil)
	c.Store(fps[1], testResult("b"), "", nil)

	// Touch the older entry so the newer one becomes the eviction victim.
	require.NotNil(t, c.Lookup(fps[0]))

	c.Store(fps[2], testResult("c"), "", nil)

	assert.NotNil(t, c.Lookup(fps[0]))
	assert.Nil(t, c.Lookup(fps[1]))
}

func TestStore_ReplaceDoesNotEvict(t *testing.T) {
	c := New(16, time.Minute, zap.NewNop())
	fp := Fingerprint("q", nil)

	c.Store(fp, testResult("a"), "", nil)
	c.Store(fp, testResult("b"), "", nil)

	entry := c.Lookup(fp)
	require.NotNil(t, entry)
	assert.Equal(t, "b", entry.Result.Rows.Rows[0]["name"])
	assert.Equal(t, int64(0), c.Stats().Evictions)
}

func TestClear_EmptiesEverything(t *testing.T) {
	c := New(100, time.Minute, zap.NewNop())
	for i := 0; i < 10; i++ {
		c.Store(Fingerprint(fmt.Sprintf("q%d", i), nil), testResult("x"), "", nil)
	}
	require.Equal(t, 10, c.Stats().Size)

	c.Clear()
	assert.Equal(t, 0, c.Stats().Size)
}

func TestTopAccessed_OrdersByHitCount(t *testing.T) {
	c := New(100, time.Minute, zap.NewNop())
	hot := Fingerprint("hot", nil)
	cold := Fingerprint("cold", nil)

	c.Store(hot, testResult("h"), "SELECT hot", []string{"products"})
	c.Store(cold, testResult("c"), "SELECT cold", nil)
	for i := 0; i < 3; i++ {
		c.Lookup(hot)
	}

	top := c.TopAccessed(1)
	require.Len(t, top, 1)
	assert.Equal(t, hot, top[0].Fingerprint)
	assert.Equal(t, "SELECT hot", top[0].GeneratedSQL)
	assert.Equal(t, int64(3), top[0].HitCount)
}

func TestRemoveExpired_SweepsAllShards(t *testing.T) {
	c := New(100, 5*time.Millisecond, zap.NewNop())
	for i := 0; i < 20; i++ {
		c.Store(Fingerprint(fmt.Sprintf("q%d", i), nil), testResult("x"), "", nil)
	}
	time.Sleep(10 * time.Millisecond)

	removed := c.removeExpired()
	assert.Equal(t, 20, removed)
	assert.Equal(t, 0, c.Stats().Size)
}
