// Package corridor builds the per-station lateral envelope a smoothed path
// must stay within.
//
// The reference line is sampled at a fixed spacing starting at the ego's
// arc length. Each station first receives the lane envelope (widened to the
// ego's own extent when the ego already sits outside the lane, but never
// past the road edge). Static obstacles then shrink contiguous station
// ranges, in the order they are supplied: later obstacles overwrite earlier
// ones on overlapping ranges.
//
// An obstacle that blocks both sides while straddling the reference line is
// left alone here; resolving it is the job of a downstream stop decision.
package corridor
