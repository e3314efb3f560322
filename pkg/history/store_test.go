package history

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pathsense/go-pathsense/pkg/navigation"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "readings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	readings := []navigation.Reading{
		{DistanceCM: 120, Direction: navigation.DirectionLeft, Confidence: 1, Source: "demo", At: base},
		{DistanceCM: 30, Direction: navigation.DirectionRight, Confidence: 0.7, Source: "cam-1", At: base.Add(2 * time.Second)},
		{DistanceCM: 80, Direction: navigation.DirectionStraight, Confidence: 0.4, Source: "cam-1", At: base.Add(4 * time.Second)},
	}
	for _, r := range readings {
		require.NoError(t, s.Record(r, "demo", r.DistanceCM < 50))
	}

	entries, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Newest first
	require.Equal(t, 80.0, entries[0].DistanceCM)
	require.Equal(t, 30.0, entries[1].DistanceCM)
	require.Equal(t, 120.0, entries[2].DistanceCM)

	require.True(t, entries[1].Obstacle)
	require.False(t, entries[0].Obstacle)
	require.Equal(t, "cam-1", entries[1].Source)
	require.Equal(t, "right", entries[1].Direction)

	n, err := s.Count()
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestRecentLimit(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 20; i++ {
		r := navigation.Reading{
			DistanceCM: float64(10 + i),
			Direction:  navigation.DirectionLeft,
			At:         time.Now(),
		}
		require.NoError(t, s.Record(r, "demo", false))
	}

	entries, err := s.Recent(5)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	// Newest of the 20 has distance 29
	require.Equal(t, 29.0, entries[0].DistanceCM)

	// Nonsense limits fall back to the default
	entries, err = s.Recent(-1)
	require.NoError(t, err)
	require.Len(t, entries, 20)
}

func TestSummarize(t *testing.T) {
	s := openTestStore(t)

	sum, err := s.Summarize(100)
	require.NoError(t, err)
	require.Equal(t, 0, sum.Count)

	distances := []float64{40, 60, 80, 100}
	for _, d := range distances {
		r := navigation.Reading{DistanceCM: d, Direction: navigation.DirectionLeft, At: time.Now()}
		require.NoError(t, s.Record(r, "demo", d < 50))
	}

	sum, err = s.Summarize(100)
	require.NoError(t, err)
	require.Equal(t, 4, sum.Count)
	require.InDelta(t, 70.0, sum.MeanCM, 1e-9)
	require.Equal(t, 40.0, sum.MinCM)
	require.Equal(t, 100.0, sum.MaxCM)
	require.InDelta(t, 0.25, sum.ObstacleRatio, 1e-9)

	// Sample standard deviation of {40,60,80,100}
	require.InDelta(t, math.Sqrt(2000.0/3.0), sum.StdDevCM, 1e-9)
}

func TestSummarizeWindow(t *testing.T) {
	s := openTestStore(t)

	for _, d := range []float64{10, 10, 200, 200} {
		r := navigation.Reading{DistanceCM: d, Direction: navigation.DirectionLeft, At: time.Now()}
		require.NoError(t, s.Record(r, "camera", false))
	}

	// Only the two newest readings (200, 200) fall inside the window
	sum, err := s.Summarize(2)
	require.NoError(t, err)
	require.Equal(t, 2, sum.Count)
	require.Equal(t, 200.0, sum.MeanCM)
	require.Equal(t, 0.0, sum.StdDevCM)
}
