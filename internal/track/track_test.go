package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ironsheep/numscan/internal/geometry"
)

var (
	t0      = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	regionA = geometry.Rect{X: 0.1, Y: 0.1, W: 0.2, H: 0.05}
	regionB = geometry.Rect{X: 0.3, Y: 0.4, W: 0.2, H: 0.05}
)

func testPolicy() Policy {
	return Policy{AcceptConfidence: 0.5, LockHits: 3, MaxMisses: 3, Timeout: 300 * time.Millisecond}
}

func TestNewTrack(t *testing.T) {
	tr := NewTrack("1234", regionA, t0, testPolicy())

	assert.Equal(t, "1234", tr.Value)
	assert.Equal(t, 1, tr.HitCount)
	assert.Equal(t, 0, tr.MissCount)
	assert.False(t, tr.Locked)
	assert.Equal(t, t0, tr.FirstSeenAt)
	assert.Equal(t, t0, tr.LastSeenAt)
	assert.NotEqual(t, [16]byte{}, [16]byte(tr.RenderID))
}

func TestNewTrack_LockHitsOne(t *testing.T) {
	p := testPolicy()
	p.LockHits = 1
	assert.True(t, NewTrack("1234", regionA, t0, p).Locked)
}

func TestAdvanced_AcceptedLocksAndSaturates(t *testing.T) {
	p := testPolicy()
	tr := NewTrack("1234", regionA, t0, p)

	for i := 1; i <= 5; i++ {
		tr = tr.Advanced(Observation{Region: regionB, Confidence: 0.9, Found: true}, t0.Add(time.Duration(i)*33*time.Millisecond), p)
	}

	assert.Equal(t, regionB, tr.Region)
	assert.Equal(t, 3, tr.HitCount, "hit count saturates at the lock threshold")
	assert.True(t, tr.Locked)
	assert.Equal(t, t0.Add(165*time.Millisecond), tr.LastSeenAt)
}

func TestAdvanced_RejectedCountsMiss(t *testing.T) {
	p := testPolicy()
	tr := NewTrack("1234", regionA, t0, p)

	tests := []struct {
		name string
		obs  Observation
	}{
		{"not found", Observation{}},
		{"low confidence", Observation{Region: regionB, Confidence: 0.2, Found: true}},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr = tr.Advanced(tt.obs, t0.Add(time.Second), p)
			assert.Equal(t, i+1, tr.MissCount)
			assert.Equal(t, regionA, tr.Region, "region untouched on miss")
			assert.Equal(t, t0, tr.LastSeenAt, "lastSeenAt untouched on miss")
			assert.Equal(t, 0, tr.HitCount)
		})
	}
}

func TestAdvanced_OffScreenCountsMiss(t *testing.T) {
	p := testPolicy()
	tr := NewTrack("1234", regionA, t0, p)
	offScreen := Observation{Region: geometry.Rect{X: -0.5, Y: 0.4, W: 0.2, H: 0.1}, Confidence: 0.9, Found: true}

	next := tr.Advanced(offScreen, t0.Add(33*time.Millisecond), p)
	assert.Equal(t, regionA, next.Region)
	assert.Equal(t, 1, next.MissCount)
	assert.Equal(t, 0, next.HitCount)
	assert.Equal(t, t0, next.LastSeenAt)

	for i := 2; i <= p.MaxMisses; i++ {
		next = next.Advanced(offScreen, t0.Add(time.Duration(i)*33*time.Millisecond), p)
	}
	assert.True(t, next.Stale(t0.Add(100*time.Millisecond), p), "off-screen results evict by miss count")
}

func TestAdvanced_PartlyOffScreenIsClipped(t *testing.T) {
	p := testPolicy()
	tr := NewTrack("1234", regionA, t0, p)

	tr = tr.Advanced(Observation{Region: geometry.Rect{X: -0.1, Y: 0.4, W: 0.3, H: 0.1}, Confidence: 0.9, Found: true}, t0.Add(33*time.Millisecond), p)
	assert.Equal(t, 0, tr.MissCount)
	assert.Equal(t, 0.0, tr.Region.X)
	assert.InDelta(t, 0.2, tr.Region.W, 1e-9)
}

func TestAdvanced_LockLatches(t *testing.T) {
	p := testPolicy()
	tr := NewTrack("1234", regionA, t0, p)
	hit := Observation{Region: regionA, Confidence: 1, Found: true}
	tr = tr.Advanced(hit, t0, p)
	tr = tr.Advanced(hit, t0, p)
	assert.True(t, tr.Locked)

	tr = tr.Advanced(Observation{}, t0, p)
	assert.True(t, tr.Locked, "a miss does not unlock a stable label")
}

func TestDetected_HealsMisses(t *testing.T) {
	p := testPolicy()
	tr := NewTrack("1234", regionA, t0, p)
	tr = tr.Advanced(Observation{}, t0.Add(10*time.Millisecond), p)
	tr = tr.Advanced(Observation{}, t0.Add(20*time.Millisecond), p)
	assert.Equal(t, 2, tr.MissCount)

	tr = tr.Detected(regionB, t0.Add(30*time.Millisecond), p)
	assert.Equal(t, 0, tr.MissCount)
	assert.Equal(t, regionB, tr.Region)
	assert.Equal(t, t0.Add(30*time.Millisecond), tr.LastSeenAt)
	assert.Equal(t, 1, tr.HitCount)
}

func TestLastSeenAt_Monotonic(t *testing.T) {
	p := testPolicy()
	tr := NewTrack("1234", regionA, t0.Add(time.Second), p)
	tr = tr.Detected(regionB, t0, p)
	assert.Equal(t, t0.Add(time.Second), tr.LastSeenAt, "an older timestamp never moves lastSeenAt back")
}

func TestStale(t *testing.T) {
	p := testPolicy()
	fresh := NewTrack("1234", regionA, t0, p)

	assert.False(t, fresh.Stale(t0.Add(300*time.Millisecond), p), "exactly at timeout is not stale")
	assert.True(t, fresh.Stale(t0.Add(301*time.Millisecond), p))

	missed := fresh
	missed.MissCount = 3
	assert.True(t, missed.Stale(t0, p), "max misses evicts before the timeout")

	assert.Equal(t, 2*time.Second, fresh.Age(t0.Add(2*time.Second)))
}
