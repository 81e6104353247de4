package robot

import "math"

// jacobianStep is the finite-difference step for Jacobian evaluation (rad).
const jacobianStep = 1e-6

// legSign is -1 for right legs and +1 for left legs.
func legSign(leg int) float64 {
	if leg%2 == 0 {
		return -1
	}
	return 1
}

// clamp restricts v to the range [min, max].
func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// FootPositionInHipFrame computes forward kinematics for one leg.
func (s ProfileSpec) FootPositionInHipFrame(leg int, angles [MotorsPerLeg]float64) Vec3 {
	thetaAb, thetaHip, thetaKnee := angles[0], angles[1], angles[2]
	lUp, lLow := s.UpperLength, s.LowerLength
	lHip := s.HipLength * legSign(leg)

	legDistance := math.Sqrt(lUp*lUp + lLow*lLow + 2*lUp*lLow*math.Cos(thetaKnee))
	effSwing := thetaHip + thetaKnee/2

	offXHip := -legDistance * math.Sin(effSwing)
	offZHip := -legDistance * math.Cos(effSwing)
	offYHip := lHip

	return Vec3{
		offXHip,
		math.Cos(thetaAb)*offYHip - math.Sin(thetaAb)*offZHip,
		math.Sin(thetaAb)*offYHip + math.Cos(thetaAb)*offZHip,
	}
}

// FootPositionInBaseFrame computes forward kinematics relative to the base origin.
func (s ProfileSpec) FootPositionInBaseFrame(leg int, angles [MotorsPerLeg]float64) Vec3 {
	return s.FootPositionInHipFrame(leg, angles).Add(s.HipOffsets[leg])
}

// JointAnglesFromHipFrame solves inverse kinematics for a foot position in
// the hip frame. Unreachable targets are clamped to the workspace boundary.
func (s ProfileSpec) JointAnglesFromHipFrame(leg int, foot Vec3) [MotorsPerLeg]float64 {
	lUp, lLow := s.UpperLength, s.LowerLength
	lHip := s.HipLength * legSign(leg)
	x, y, z := foot[0], foot[1], foot[2]

	cosKnee := (x*x + y*y + z*z - lHip*lHip - lLow*lLow - lUp*lUp) / (2 * lLow * lUp)
	thetaKnee := -math.Acos(clamp(cosKnee, -1, 1))

	l := math.Sqrt(lUp*lUp + lLow*lLow + 2*lUp*lLow*math.Cos(thetaKnee))
	var thetaHip float64
	if l > 0 {
		thetaHip = math.Asin(clamp(-x/l, -1, 1)) - thetaKnee/2
	}

	c1 := lHip*y - l*math.Cos(thetaHip+thetaKnee/2)*z
	s1 := l*math.Cos(thetaHip+thetaKnee/2)*y + lHip*z
	thetaAb := math.Atan2(s1, c1)

	return [MotorsPerLeg]float64{thetaAb, thetaHip, thetaKnee}
}

// JointAnglesFromBaseFrame solves inverse kinematics for a foot position
// relative to the base origin.
func (s ProfileSpec) JointAnglesFromBaseFrame(leg int, foot Vec3) [MotorsPerLeg]float64 {
	return s.JointAnglesFromHipFrame(leg, foot.Sub(s.HipOffsets[leg]))
}

// Jacobian returns d(foot position)/d(motor angles) for one leg using
// central differences. Row i is foot axis i, column j is motor j.
func (s ProfileSpec) Jacobian(leg int, angles [MotorsPerLeg]float64) [3][3]float64 {
	var j [3][3]float64
	for m := 0; m < MotorsPerLeg; m++ {
		plus, minus := angles, angles
		plus[m] += jacobianStep
		minus[m] -= jacobianStep
		fp := s.FootPositionInHipFrame(leg, plus)
		fm := s.FootPositionInHipFrame(leg, minus)
		for axis := 0; axis < 3; axis++ {
			j[axis][m] = (fp[axis] - fm[axis]) / (2 * jacobianStep)
		}
	}
	return j
}
