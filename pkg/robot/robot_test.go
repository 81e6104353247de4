package robot

import (
	"errors"
	"math"
	"testing"
	"time"
)

const floatTolerance = 1e-6

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

func vecEquals(a, b Vec3, tol float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func TestVec3_Arithmetic(t *testing.T) {
	a := Vec3{1, 2, 3}
	b := Vec3{0.5, -1, 2}

	if got := a.Add(b); got != (Vec3{1.5, 1, 5}) {
		t.Errorf("Add: got %v", got)
	}
	if got := a.Sub(b); got != (Vec3{0.5, 3, 1}) {
		t.Errorf("Sub: got %v", got)
	}
	if got := a.Scale(2); got != (Vec3{2, 4, 6}) {
		t.Errorf("Scale: got %v", got)
	}
	if !floatEquals((Vec3{3, 4, 0}).Norm(), 5) {
		t.Errorf("Norm: got %v, want 5", (Vec3{3, 4, 0}).Norm())
	}
	if (Vec3{math.NaN(), 0, 0}).IsFinite() {
		t.Error("NaN vector should not be finite")
	}
}

func TestParseProfile(t *testing.T) {
	for _, p := range Profiles() {
		got, err := ParseProfile(p.String())
		if err != nil {
			t.Fatalf("ParseProfile(%q): %v", p.String(), err)
		}
		if got != p {
			t.Errorf("ParseProfile(%q) = %v, want %v", p.String(), got, p)
		}
	}

	if got, err := ParseProfile(" A1 "); err != nil || got != ProfileA1 {
		t.Errorf("ParseProfile should be case-insensitive, got %v, %v", got, err)
	}

	if _, err := ParseProfile("spot"); !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("expected ErrUnknownProfile, got %v", err)
	}
}

func TestProfileSpec_Multipliers(t *testing.T) {
	if m := ProfileA1.Spec().VelocityMultiplier; m != 0.5 {
		t.Errorf("A1 multiplier: got %v, want 0.5", m)
	}
	if m := ProfileLaikago.Spec().VelocityMultiplier; m != 1.0 {
		t.Errorf("Laikago multiplier: got %v, want 1.0", m)
	}
}

func TestKinematics_RoundTrip(t *testing.T) {
	for _, p := range Profiles() {
		spec := p.Spec()
		for leg := 0; leg < NumLegs; leg++ {
			angles := [MotorsPerLeg]float64{0.1, 0.8, -1.6}
			foot := spec.FootPositionInBaseFrame(leg, angles)
			got := spec.JointAnglesFromBaseFrame(leg, foot)
			for j := range angles {
				if math.Abs(got[j]-angles[j]) > 1e-6 {
					t.Errorf("%s leg %d motor %d: got %.6f, want %.6f", spec.Name, leg, j, got[j], angles[j])
				}
			}
		}
	}
}

func TestKinematics_StandingFootBelowHip(t *testing.T) {
	spec := ProfileA1.Spec()
	foot := spec.FootPositionInHipFrame(0, spec.InitMotorAngles)

	if math.Abs(foot[0]) > 1e-9 {
		t.Errorf("standing foot x: got %v, want 0", foot[0])
	}
	if foot[2] >= 0 {
		t.Errorf("standing foot should be below the hip, got z=%v", foot[2])
	}
	if !floatEquals(foot[1], -spec.HipLength) {
		t.Errorf("right leg lateral offset: got %v, want %v", foot[1], -spec.HipLength)
	}
}

func TestKinematics_JacobianMatchesFiniteStep(t *testing.T) {
	spec := ProfileA1.Spec()
	angles := [MotorsPerLeg]float64{0.05, 0.9, -1.8}
	jac := spec.Jacobian(1, angles)

	const h = 1e-4
	for m := 0; m < MotorsPerLeg; m++ {
		moved := angles
		moved[m] += h
		delta := spec.FootPositionInHipFrame(1, moved).Sub(spec.FootPositionInHipFrame(1, angles))
		for axis := 0; axis < 3; axis++ {
			predicted := jac[axis][m] * h
			if math.Abs(predicted-delta[axis]) > 1e-6 {
				t.Errorf("J[%d][%d]: predicted %.8f, actual %.8f", axis, m, predicted, delta[axis])
			}
		}
	}
}

func TestHybridAction_Validate(t *testing.T) {
	var a HybridAction
	if err := a.Validate(); err != nil {
		t.Fatalf("zero action should be valid: %v", err)
	}

	a[2][1].Torque = math.Inf(1)
	if err := a.Validate(); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("expected ErrInvalidAction, got %v", err)
	}
}

func TestHybridAction_Flatten(t *testing.T) {
	var a HybridAction
	a[3][2].Position = 1.25
	flat := a.Flatten()
	if flat[11].Position != 1.25 {
		t.Errorf("Flatten: motor 11 position got %v, want 1.25", flat[11].Position)
	}
}

func TestLegActions_Legs(t *testing.T) {
	la := LegActions{3: {}, 0: {}}
	legs := la.Legs()
	if len(legs) != 2 || legs[0] != 0 || legs[1] != 3 {
		t.Errorf("Legs: got %v, want [0 3]", legs)
	}
}

func TestSim_ResetStanding(t *testing.T) {
	sim := NewSim(SimConfig{Profile: ProfileA1})

	if sim.TimeSinceReset() != 0 {
		t.Errorf("clock after reset: got %v, want 0", sim.TimeSinceReset())
	}
	for leg, c := range sim.FootContacts() {
		if !c {
			t.Errorf("leg %d should start in contact", leg)
		}
	}
	for leg, foot := range sim.FootPositionsInBaseFrame() {
		if math.Abs(foot[2]+sim.Spec().BodyHeight) > 1e-6 {
			t.Errorf("leg %d foot height: got %v, want %v", leg, foot[2], -sim.Spec().BodyHeight)
		}
	}
}

func TestSim_StepAdvancesClock(t *testing.T) {
	sim := NewSim(SimConfig{Profile: ProfileA1, TimeStep: 2 * time.Millisecond, ActionRepeat: 3})

	var stand HybridAction
	if err := sim.Step(stand); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := sim.TimeSinceReset(); got != 6*time.Millisecond {
		t.Errorf("clock: got %v, want 6ms", got)
	}

	sim.Reset()
	if sim.TimeSinceReset() != 0 {
		t.Errorf("clock after second reset: got %v, want 0", sim.TimeSinceReset())
	}
}

func TestSim_RejectsNonFiniteAction(t *testing.T) {
	sim := NewSim(SimConfig{Profile: ProfileA1})
	var bad HybridAction
	bad[0][0].Position = math.NaN()
	bad[0][0].Kp = 10

	if err := sim.Step(bad); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("expected ErrInvalidAction, got %v", err)
	}
	if sim.TimeSinceReset() != 0 {
		t.Error("rejected action must not advance the clock")
	}
}

func TestSim_StanceForceRoundTrip(t *testing.T) {
	sim := NewSim(SimConfig{Profile: ProfileA1})

	want := Vec3{5, -2, 30}
	var action HybridAction
	for leg := 0; leg < NumLegs; leg++ {
		jac := sim.ComputeJacobian(leg)
		for m := 0; m < MotorsPerLeg; m++ {
			var tau float64
			for axis := 0; axis < 3; axis++ {
				tau -= jac[axis][m] * want[axis]
			}
			action[leg][m].Torque = tau
		}
	}
	if err := sim.Step(action); err != nil {
		t.Fatalf("Step: %v", err)
	}

	for leg, f := range sim.GroundReactionForces() {
		if !vecEquals(f, want, 1e-3) {
			t.Errorf("leg %d force: got %v, want %v", leg, f, want)
		}
	}
	if v := sim.BaseVelocity(); v[0] <= 0 || v[1] >= 0 {
		t.Errorf("base should accelerate along +x/-y, got %v", v)
	}
}

func TestSim_SwingLegLeavesGround(t *testing.T) {
	sim := NewSim(SimConfig{Profile: ProfileA1})
	spec := sim.Spec()

	target := spec.InitMotorAngles
	target[1] += 0.3
	var action HybridAction
	for m := 0; m < MotorsPerLeg; m++ {
		action[0][m] = MotorCommand{Position: target[m], Kp: spec.Gains[m].Kp, Kd: spec.Gains[m].Kd}
	}
	for i := 0; i < 200; i++ {
		if err := sim.Step(action); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}

	if sim.FootContacts()[0] {
		t.Error("position-controlled leg should not be in contact")
	}
	got := sim.MotorAngles()[1]
	if math.Abs(got-target[1]) > 0.05 {
		t.Errorf("hip angle should converge to target: got %.3f, want %.3f", got, target[1])
	}
}
