package stroke

import (
	"math"

	"github.com/gogpu/gg/geom"
	"github.com/gogpu/gg/outline"
)

// Dash is an alternating dash/gap length pattern plus a starting offset
// into it, the same shape as the teacher's own dash.go (Array/Offset,
// odd-length patterns implicitly duplicated), generalized here to operate
// on flattened outline geometry instead of a gg.Path, per
// original_source/pathfinder's core/stroke.h dashing step (which also
// resamples along arc length before offsetting).
type Dash struct {
	Array  []float32
	Offset float32
}

// NewDash builds a Dash from alternating on/off lengths, normalizing away
// negative lengths. Returns nil if every length is zero.
func NewDash(lengths ...float32) *Dash {
	if len(lengths) == 0 {
		return nil
	}
	anyPositive := false
	norm := make([]float32, len(lengths))
	for i, l := range lengths {
		if l < 0 {
			l = -l
		}
		if l > 0 {
			anyPositive = true
		}
		norm[i] = l
	}
	if !anyPositive {
		return nil
	}
	return &Dash{Array: norm}
}

// IsDashed reports whether d describes an actual dash pattern.
func (d *Dash) IsDashed() bool {
	if d == nil || len(d.Array) == 0 {
		return false
	}
	for _, l := range d.Array {
		if l > 0 {
			return true
		}
	}
	return false
}

func (d *Dash) effectiveArray() []float32 {
	if d == nil {
		return nil
	}
	if len(d.Array)%2 == 0 {
		return d.Array
	}
	out := make([]float32, len(d.Array)*2)
	copy(out, d.Array)
	copy(out[len(d.Array):], d.Array)
	return out
}

// PatternLength is the length of one full dash/gap cycle.
func (d *Dash) PatternLength() float32 {
	arr := d.effectiveArray()
	var total float32
	for _, l := range arr {
		total += l
	}
	return total
}

func (d *Dash) normalizedOffset() float32 {
	total := d.PatternLength()
	if total <= 0 {
		return 0
	}
	off := float32(math.Mod(float64(d.Offset), float64(total)))
	if off < 0 {
		off += total
	}
	return off
}

// ApplyDash resamples each contour of o to line segments and splits it
// into the "on" sub-runs of the dash pattern, returning an outline made of
// short open contours ready to feed to an Expander. The walk measures
// distance along the flattened polyline, matching the teacher's own
// arc-length convention for stroke dashing.
func ApplyDash(o outline.Outline, dash *Dash, tolerance float32) outline.Outline {
	var result outline.Outline
	if !dash.IsDashed() {
		return o
	}
	pattern := dash.effectiveArray()

	for _, c := range o.Contours {
		pts := outline.FlattenContour(c, tolerance)
		if c.Closed && len(pts) > 0 {
			pts = append(pts, pts[0])
		}
		if len(pts) < 2 {
			continue
		}

		pos := dash.normalizedOffset()
		idx, into := patternIndexAt(pattern, pos)
		on := idx%2 == 0

		var cur outline.Contour
		haveCur := on

		for i := 1; i < len(pts); i++ {
			segStart := pts[i-1]
			segEnd := pts[i]
			segLen := segEnd.Sub(segStart).Length()
			if segLen == 0 {
				continue
			}
			walked := float32(0)
			for walked < segLen {
				remaining := pattern[idx] - into
				step := segLen - walked
				if remaining < step {
					step = remaining
				}
				t0 := walked / segLen
				t1 := (walked + step) / segLen
				p0 := segStart.Lerp(segEnd, t0)
				p1 := segStart.Lerp(segEnd, t1)

				if haveCur {
					appendDashPoint(&cur, p0, p1)
				}

				walked += step
				into += step
				if into >= pattern[idx]-1e-6 {
					idx = (idx + 1) % len(pattern)
					into = 0
					if haveCur {
						result.PushContour(cur)
						cur = outline.Contour{}
					}
					haveCur = !haveCur
				}
			}
		}
		if haveCur && len(cur.Segments) > 0 {
			result.PushContour(cur)
		}
	}
	return result
}

// appendDashPoint extends the current dash run with the segment [p0,p1],
// seeding the run's first segment explicitly since the run starts empty.
func appendDashPoint(c *outline.Contour, p0, p1 geom.Vec2) {
	if len(c.Segments) == 0 {
		c.Segments = append(c.Segments, outline.Segment{
			Baseline: outline.Line{From: p0, To: p1},
			Kind:     outline.SegmentLine,
		})
		return
	}
	c.PushLine(p1)
}

// patternIndexAt finds which pattern slot a starting offset falls in and
// how far into that slot it already is.
func patternIndexAt(pattern []float32, pos float32) (idx int, into float32) {
	for i, l := range pattern {
		if pos < l {
			return i, pos
		}
		pos -= l
	}
	return 0, 0
}
