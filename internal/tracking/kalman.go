package tracking

import "math"

// Spawn covariance: position σ² 1000 mm², velocity σ² 10000 (mm/s)².
const (
	spawnPosVariance float32 = 1000
	spawnVelVariance float32 = 10000

	// minInnovationDet is the smallest innovation covariance determinant
	// that is still inverted.
	minInnovationDet float32 = 1e-6
)

// KalmanFilter is a constant-velocity linear Kalman filter over the state
// [x, y, vx, vy] (mm, mm/s) with a fixed step of DTSec.
type KalmanFilter struct {
	X [4]float32  // State vector
	P [16]float32 // Covariance, 4x4 row-major
}

// noiseModel holds variances (σ²) derived from the configured deviations.
type noiseModel struct {
	qPos float32
	qVel float32
	r    float32
}

// init places the filter at (x, y) with zero velocity and spawn covariance.
func (f *KalmanFilter) init(x, y float32) {
	f.X = [4]float32{x, y, 0, 0}
	f.P = [16]float32{
		spawnPosVariance, 0, 0, 0,
		0, spawnPosVariance, 0, 0,
		0, 0, spawnVelVariance, 0,
		0, 0, 0, spawnVelVariance,
	}
}

// predict advances the filter by one frame.
func (f *KalmanFilter) predict(n noiseModel) {
	const dt = DTSec

	// F = [1 0 dt 0; 0 1 0 dt; 0 0 1 0; 0 0 0 1]
	f.X[0] += f.X[2] * dt
	f.X[1] += f.X[3] * dt

	// P' = F * P * F^T + Q
	P := f.P
	var FP [16]float32
	for j := 0; j < 4; j++ {
		FP[0*4+j] = P[0*4+j] + dt*P[2*4+j]
		FP[1*4+j] = P[1*4+j] + dt*P[3*4+j]
		FP[2*4+j] = P[2*4+j]
		FP[3*4+j] = P[3*4+j]
	}
	for i := 0; i < 4; i++ {
		f.P[i*4+0] = FP[i*4+0] + dt*FP[i*4+2]
		f.P[i*4+1] = FP[i*4+1] + dt*FP[i*4+3]
		f.P[i*4+2] = FP[i*4+2]
		f.P[i*4+3] = FP[i*4+3]
	}

	f.P[0*4+0] += n.qPos
	f.P[1*4+1] += n.qPos
	f.P[2*4+2] += n.qVel
	f.P[3*4+3] += n.qVel
}

// update corrects the filter with a measured position. If the filter has
// diverged, before or after the correction, it is re-initialised from the
// measurement and update reports reset=true.
func (f *KalmanFilter) update(zx, zy float32, n noiseModel) (reset bool) {
	if f.diverged() {
		f.init(zx, zy)
		return true
	}

	// Innovation y = z - Hx
	yX := zx - f.X[0]
	yY := zy - f.X[1]

	// S = H P H^T + R
	S00 := f.P[0*4+0] + n.r
	S01 := f.P[0*4+1]
	S10 := f.P[1*4+0]
	S11 := f.P[1*4+1] + n.r

	det := S00*S11 - S01*S10
	if !(det >= minInnovationDet) || isInf32(det) {
		f.init(zx, zy)
		return true
	}
	invS00 := S11 / det
	invS01 := -S01 / det
	invS10 := -S10 / det
	invS11 := S00 / det

	// K = P H^T S^-1, a 4x2 matrix
	var K [8]float32
	for i := 0; i < 4; i++ {
		K[i*2+0] = f.P[i*4+0]*invS00 + f.P[i*4+1]*invS10
		K[i*2+1] = f.P[i*4+0]*invS01 + f.P[i*4+1]*invS11
	}

	for i := 0; i < 4; i++ {
		f.X[i] += K[i*2+0]*yX + K[i*2+1]*yY
	}

	// P' = (I - K H) P. H selects x and y, so (KH)[i][j] is K[i][j] for
	// j < 2 and zero otherwise.
	var IminusKH [16]float32
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var v float32
			if i == j {
				v = 1
			}
			if j < 2 {
				v -= K[i*2+j]
			}
			IminusKH[i*4+j] = v
		}
	}
	var newP [16]float32
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += IminusKH[i*4+k] * f.P[k*4+j]
			}
			newP[i*4+j] = sum
		}
	}
	f.P = newP

	if f.diverged() {
		f.init(zx, zy)
		return true
	}
	return false
}

// finite reports whether the state vector holds only finite values.
func (f *KalmanFilter) finite() bool {
	for _, v := range f.X {
		if !isFinite32(v) {
			return false
		}
	}
	return true
}

// diverged reports a non-finite state or covariance, or a covariance
// diagonal entry outside [MinCovariance, MaxCovariance].
func (f *KalmanFilter) diverged() bool {
	if !f.finite() {
		return true
	}
	for _, v := range f.P {
		if !isFinite32(v) {
			return true
		}
	}
	for i := 0; i < 4; i++ {
		d := f.P[i*4+i]
		if d < MinCovariance || d > MaxCovariance {
			return true
		}
	}
	return false
}

func isFinite32(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func isInf32(v float32) bool {
	return math.IsInf(float64(v), 0)
}

// roundSaturate16 rounds to nearest (half away from zero) and clamps to the
// int16 range. NaN maps to zero.
func roundSaturate16(v float32) int16 {
	f := float64(v)
	if math.IsNaN(f) {
		return 0
	}
	f = math.Round(f)
	if f >= math.MaxInt16 {
		return math.MaxInt16
	}
	if f <= math.MinInt16 {
		return math.MinInt16
	}
	return int16(f)
}
