package baseline

import (
	"math"
	"time"
)

// Point is one numeric observation inside a statistics window.
type Point struct {
	Value      float64
	CapturedAt time.Time
}

// WindowStats summarizes the points of one trailing window.
type WindowStats struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	Count  int
}

// Summarize computes mean, sample standard deviation and observed min/max.
// A single point yields zero spread.
func Summarize(points []Point) WindowStats {
	if len(points) == 0 {
		return WindowStats{}
	}

	sum := 0.0
	min := points[0].Value
	max := points[0].Value
	for _, p := range points {
		sum += p.Value
		if p.Value < min {
			min = p.Value
		}
		if p.Value > max {
			max = p.Value
		}
	}
	mean := sum / float64(len(points))

	stddev := 0.0
	if len(points) > 1 {
		var sq float64
		for _, p := range points {
			d := p.Value - mean
			sq += d * d
		}
		stddev = math.Sqrt(sq / float64(len(points)-1))
	}

	return WindowStats{
		Mean:   mean,
		StdDev: stddev,
		Min:    min,
		Max:    max,
		Count:  len(points),
	}
}
