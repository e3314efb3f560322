// Package vision turns camera frames into obstacle readings using cheap
// pixel statistics: mean brightness, edge gradients, and block variance.
// The estimates are heuristic by design; confidence reports how much frame
// structure actually backed a guess, and callers treat the numbers as hints
// rather than measurements.
package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // frame decode
	_ "image/png"  // simulator frames in tests
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/pathsense/go-pathsense/pkg/navigation"
)

// Analyzer scores frames into distance/direction readings.
// Successive estimates are smoothed exponentially, matching the cadence of
// a camera source pushing a few frames per second.
type Analyzer struct {
	mu  sync.Mutex
	cfg Config

	smoothed float64
	hasLast  bool
	misses   int
}

// NewAnalyzer creates an analyzer with the given configuration.
func NewAnalyzer(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Config returns a copy of the current configuration.
func (a *Analyzer) Config() Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// SetConfig validates and applies a new configuration at runtime.
func (a *Analyzer) SetConfig(cfg Config) []string {
	if errs := cfg.Validate(); errs != nil {
		return errs
	}
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
	return nil
}

// Reset clears the smoothing and failure state, e.g. when a camera
// source reconnects.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	a.hasLast = false
	a.smoothed = 0
	a.misses = 0
	a.mu.Unlock()
}

// Misses returns the number of consecutive failed analyses.
func (a *Analyzer) Misses() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.misses
}

// AnalyzeJPEG decodes an encoded frame and analyzes it.
func (a *Analyzer) AnalyzeJPEG(data []byte) (navigation.Reading, error) {
	if len(data) == 0 {
		a.recordMiss()
		return navigation.Reading{}, ErrEmptyFrame
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		a.recordMiss()
		return navigation.Reading{}, fmt.Errorf("vision: decode frame: %w", err)
	}
	return a.Analyze(img)
}

// Analyze scores a decoded frame into a reading.
func (a *Analyzer) Analyze(img image.Image) (navigation.Reading, error) {
	a.mu.Lock()
	cfg := a.cfg
	a.mu.Unlock()

	fs, err := measure(img, cfg)
	if err != nil {
		a.recordMiss()
		return navigation.Reading{}, err
	}

	dark := 1 - fs.meanLuma/255
	closeness := clamp01(cfg.DarkGain*dark + cfg.EdgeGain*fs.edgeDensity/255)
	raw := cfg.MaxDistanceCM - closeness*(cfg.MaxDistanceCM-cfg.MinDistanceCM)

	a.mu.Lock()
	if a.hasLast {
		a.smoothed = cfg.Smoothing*raw + (1-cfg.Smoothing)*a.smoothed
	} else {
		a.smoothed = raw
		a.hasLast = true
	}
	distance := a.smoothed
	a.misses = 0
	a.mu.Unlock()

	if distance < cfg.MinDistanceCM {
		distance = cfg.MinDistanceCM
	}
	if distance > cfg.MaxDistanceCM {
		distance = cfg.MaxDistanceCM
	}

	return navigation.Reading{
		DistanceCM: distance,
		Direction:  fs.direction(cfg.DirectionMargin),
		Confidence: fs.confidence(),
		At:         time.Now(),
	}, nil
}

// Fallback returns the reading the engine should use when analysis keeps
// failing: maximum distance, no turn hint, minimal confidence. The failure
// itself is still reported to the caller as an error.
func (a *Analyzer) Fallback() navigation.Reading {
	a.mu.Lock()
	maxCM := a.cfg.MaxDistanceCM
	a.mu.Unlock()

	return navigation.Reading{
		DistanceCM: maxCM,
		Direction:  navigation.DirectionStraight,
		Confidence: 0.1,
		Source:     "fallback",
		At:         time.Now(),
	}
}

func (a *Analyzer) recordMiss() {
	a.mu.Lock()
	a.misses++
	a.mu.Unlock()
}

// frameStats holds the raw statistics measured from one frame.
type frameStats struct {
	meanLuma    float64    // 0-255
	edgeDensity float64    // mean weighted neighbor delta, 0-255
	lumaStdDev  float64    // spread of individual samples
	blockStdDev float64    // spread of 4x4 block means
	colScores   [3]float64 // left/center/right obstacle scores, 0-1
}

// measure samples the frame on a coarse grid and computes luma, edge, and
// variance statistics.
func measure(img image.Image, cfg Config) (frameStats, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 2 || h < 2 {
		return frameStats{}, ErrFrameTooSmall
	}

	cols := cfg.SampleGrid
	rows := cfg.SampleGrid
	if cols > w {
		cols = w
	}
	if rows > h {
		rows = h
	}

	// Luma samples on a rows x cols grid
	luma := make([][]float64, rows)
	flat := make([]float64, 0, rows*cols)
	for j := 0; j < rows; j++ {
		luma[j] = make([]float64, cols)
		y := bounds.Min.Y + j*h/rows
		for i := 0; i < cols; i++ {
			x := bounds.Min.X + i*w/cols
			r, g, b, _ := img.At(x, y).RGBA()
			// 16-bit channels down to a 0-255 luma
			l := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257
			luma[j][i] = l
			flat = append(flat, l)
		}
	}

	var fs frameStats
	fs.meanLuma = stat.Mean(flat, nil)
	fs.lumaStdDev = stat.StdDev(flat, nil)

	// Edge gradients: mean absolute neighbor delta, with the bottom half
	// of the frame weighted up since near obstacles sit low in the frame.
	var edgeSum, weightSum float64
	colEdge := [3]float64{}
	colEdgeN := [3]float64{}
	colLuma := [3]float64{}
	colLumaN := [3]float64{}

	for j := 0; j < rows; j++ {
		for i := 0; i < cols; i++ {
			col := columnIndex(i, cols)
			colLuma[col] += luma[j][i]
			colLumaN[col]++

			if i+1 >= cols || j+1 >= rows {
				continue
			}
			dh := abs(luma[j][i+1] - luma[j][i])
			dv := abs(luma[j+1][i] - luma[j][i])
			edge := (dh + dv) / 2

			weight := 1.0
			if j >= rows/2 {
				weight += cfg.BottomWeight
			}
			edgeSum += edge * weight
			weightSum += weight

			colEdge[col] += edge
			colEdgeN[col]++
		}
	}
	if weightSum > 0 {
		fs.edgeDensity = edgeSum / weightSum
	}

	// Block variance: 4x4 grid of block means. A frame with no spatial
	// structure cannot support a confident estimate.
	const blocks = 4
	blockSum := make([]float64, blocks*blocks)
	blockN := make([]float64, blocks*blocks)
	for j := 0; j < rows; j++ {
		bj := j * blocks / rows
		for i := 0; i < cols; i++ {
			bi := i * blocks / cols
			blockSum[bj*blocks+bi] += luma[j][i]
			blockN[bj*blocks+bi]++
		}
	}
	blockMeans := make([]float64, 0, blocks*blocks)
	for k := range blockSum {
		if blockN[k] > 0 {
			blockMeans = append(blockMeans, blockSum[k]/blockN[k])
		}
	}
	fs.blockStdDev = stat.StdDev(blockMeans, nil)

	// Column obstacle scores: darker and busier columns score higher.
	for k := 0; k < 3; k++ {
		var meanL, meanE float64
		if colLumaN[k] > 0 {
			meanL = colLuma[k] / colLumaN[k]
		}
		if colEdgeN[k] > 0 {
			meanE = colEdge[k] / colEdgeN[k]
		}
		fs.colScores[k] = clamp01(0.5*(1-meanL/255) + 0.5*meanE/255)
	}

	return fs, nil
}

// direction suggests the way around the busiest part of the frame.
// A column-score spread below the margin is treated as no signal.
func (fs frameStats) direction(margin float64) navigation.Direction {
	min, max := fs.colScores[0], fs.colScores[0]
	maxIdx := 0
	for k, s := range fs.colScores {
		if s < min {
			min = s
		}
		if s > max {
			max, maxIdx = s, k
		}
	}

	if max <= 0 || max-min < margin*max {
		return navigation.DirectionStraight
	}
	switch maxIdx {
	case 0:
		return navigation.DirectionRight
	case 2:
		return navigation.DirectionLeft
	}
	// Obstacle in the center: turn toward the calmer side.
	if fs.colScores[0] <= fs.colScores[2] {
		return navigation.DirectionLeft
	}
	return navigation.DirectionRight
}

// confidence maps frame structure to 0-1. Uniform frames score near zero.
func (fs frameStats) confidence() float64 {
	spread := fs.lumaStdDev
	if fs.blockStdDev > spread {
		spread = fs.blockStdDev
	}
	return clamp01(spread / 64)
}

func columnIndex(i, cols int) int {
	idx := i * 3 / cols
	if idx > 2 {
		idx = 2
	}
	return idx
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
