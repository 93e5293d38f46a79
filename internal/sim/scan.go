package sim

import "math"

// normalizeDeg folds an arbitrary angle into [0, 360), matching the
// clockwise-positive, +x-axis-zero convention used throughout this package.
// Screen-style y-down coordinates make atan2(dy, dx) already clockwise, so
// no sign flip is needed anywhere bearings are computed.
func normalizeDeg(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// IsInScanArc is the pure predicate behind the scan action (§4.C): is the
// target within range and within the arc swept clockwise from aDeg to bDeg
// relative to the scanner's heading?
//
// A degenerate arc (a == b, after normalization) is treated as a full
// circle, matching "scan(0, 0)" meaning "scan everywhere in range".
//
// Grounded on the same atan2/normalize idiom the teacher uses for its
// hitbox arc test (internal/game/hitbox.go), adapted to the two-angle,
// clockwise-span algorithm this spec calls for instead of a symmetric
// half-width cone.
func IsInScanArc(scannerX, scannerY, headingDeg, targetX, targetY, aDeg, bDeg, rng float64) bool {
	dx := targetX - scannerX
	dy := targetY - scannerY

	if dx*dx+dy*dy > rng*rng {
		return false
	}
	if dx == 0 && dy == 0 {
		return true
	}

	bearing := normalizeDeg(math.Atan2(dy, dx) * 180 / math.Pi)
	rel := normalizeDeg(bearing - headingDeg)

	a := normalizeDeg(aDeg)
	b := normalizeDeg(bDeg)
	if a == b {
		return true
	}

	arcSpan := normalizeDeg(b - a)
	offset := normalizeDeg(rel - a)
	return offset <= arcSpan
}

// evaluateScan runs IsInScanArc against every other living tank, in
// SlotOrder.
func evaluateScan(w *World, scanner *Tank, aDeg, bDeg float64) bool {
	for _, slot := range w.SlotOrder {
		if slot == scanner.Slot {
			continue
		}
		other := w.Tanks[slot]
		if !other.Alive() {
			continue
		}
		if IsInScanArc(scanner.X, scanner.Y, scanner.HeadingDeg, other.X, other.Y, aDeg, bDeg, w.Constants.ScanRange) {
			return true
		}
	}
	return false
}
