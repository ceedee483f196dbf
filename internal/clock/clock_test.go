package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	clock := Fake(epoch)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	clock.Advance(90 * time.Minute)
	want := epoch.Add(90 * time.Minute)
	if got := clock.Now(); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeClockSetNormalisesToUTC(t *testing.T) {
	clock := Fake(epoch)
	local := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))
	clock.Set(local)
	got := clock.Now()
	if got.Location() != time.UTC {
		t.Fatalf("Now().Location() = %v, want UTC", got.Location())
	}
	if !got.Equal(local) {
		t.Fatalf("Now() = %v, want instant %v", got, local)
	}
}

func TestRealClockIsUTC(t *testing.T) {
	if loc := Real().Now().Location(); loc != time.UTC {
		t.Fatalf("Real().Now().Location() = %v, want UTC", loc)
	}
}
