package robot

import (
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Simulation constants.
const (
	DefaultTimeStep = time.Millisecond

	simMotorInertia  = 0.01 // reflected inertia of a swinging leg motor (kg m^2)
	simLinearDamping = 1.0  // ground drag on planar base velocity (1/s)
	simYawDamping    = 1.0  // ground drag on yaw rate (1/s)
)

// SimConfig configures the simulated robot.
type SimConfig struct {
	Profile      Profile
	TimeStep     time.Duration // physics step, DefaultTimeStep when zero
	ActionRepeat int           // physics steps per action, 1 when zero
	Logger       *slog.Logger
}

// Sim is a deterministic planar quadruped simulation.
//
// The base is held at the profile's standing height with zero roll and pitch.
// Legs receiving position commands swing freely under motor PD dynamics.
// Legs receiving pure torque commands are in stance: their feet are pinned to
// the ground and the ground reaction force recovered from the torques drives
// the base's planar and yaw motion.
type Sim struct {
	spec     ProfileSpec
	timeStep time.Duration
	repeat   int
	logger   *slog.Logger

	t       time.Duration
	pos     Vec3 // world frame
	yaw     float64
	vel     Vec3 // world frame
	yawRate float64

	q, dq   [NumMotors]float64
	contact [NumLegs]bool
	anchor  [NumLegs]Vec3 // world foot position of pinned legs
	forces  [NumLegs]Vec3 // last ground reaction force per leg, base frame
}

// NewSim creates a simulated robot in its standing pose.
func NewSim(cfg SimConfig) *Sim {
	if cfg.TimeStep <= 0 {
		cfg.TimeStep = DefaultTimeStep
	}
	if cfg.ActionRepeat <= 0 {
		cfg.ActionRepeat = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Sim{
		spec:     cfg.Profile.Spec(),
		timeStep: cfg.TimeStep,
		repeat:   cfg.ActionRepeat,
		logger:   cfg.Logger.With("component", "sim", "robot", cfg.Profile.String()),
	}
	s.Reset()
	return s
}

// Reset places the robot at the origin, standing, and zeroes the clock.
func (s *Sim) Reset() {
	s.t = 0
	s.pos = Vec3{0, 0, s.spec.BodyHeight}
	s.yaw = 0
	s.vel = Vec3{}
	s.yawRate = 0
	s.dq = [NumMotors]float64{}
	s.forces = [NumLegs]Vec3{}

	for leg := 0; leg < NumLegs; leg++ {
		hip := s.spec.HipOffsets[leg]
		foot := Vec3{hip[0], hip[1] + legSign(leg)*s.spec.HipLength, -s.spec.BodyHeight}
		s.setLegAngles(leg, s.spec.JointAnglesFromBaseFrame(leg, foot))
		s.contact[leg] = true
		s.anchor[leg] = s.baseToWorld(foot)
	}
}

// Spec returns the robot profile constants.
func (s *Sim) Spec() ProfileSpec {
	return s.spec
}

// TimeSinceReset returns the simulated time since the last Reset.
func (s *Sim) TimeSinceReset() time.Duration {
	return s.t
}

// Step applies the action for ActionRepeat physics steps.
func (s *Sim) Step(action HybridAction) error {
	if err := action.Validate(); err != nil {
		return err
	}
	for i := 0; i < s.repeat; i++ {
		s.substep(action)
	}
	return nil
}

func (s *Sim) substep(action HybridAction) {
	dt := s.timeStep.Seconds()

	var forceBase, moment Vec3
	for leg := 0; leg < NumLegs; leg++ {
		la := action[leg]
		if !la.TorqueOnly() {
			s.contact[leg] = false
			s.forces[leg] = Vec3{}
			s.integrateSwing(leg, la, dt)
			continue
		}

		if !s.contact[leg] {
			foot := s.baseToWorld(s.footInBase(leg))
			foot[2] = 0
			s.anchor[leg] = foot
			s.contact[leg] = true
		}

		f := s.groundReaction(leg, la)
		s.forces[leg] = f
		forceBase = forceBase.Add(f)
		r := s.footInBase(leg)
		moment[2] += r[0]*f[1] - r[1]*f[0]
	}

	// Planar base dynamics; height, roll and pitch are held.
	c, sn := math.Cos(s.yaw), math.Sin(s.yaw)
	fx := c*forceBase[0] - sn*forceBase[1]
	fy := sn*forceBase[0] + c*forceBase[1]
	m := s.spec.BodyMass

	s.vel[0] += (fx/m - simLinearDamping*s.vel[0]) * dt
	s.vel[1] += (fy/m - simLinearDamping*s.vel[1]) * dt
	s.yawRate += (moment[2]/s.spec.BodyInertia[2] - simYawDamping*s.yawRate) * dt

	s.pos[0] += s.vel[0] * dt
	s.pos[1] += s.vel[1] * dt
	s.yaw += s.yawRate * dt

	// Pinned feet move relative to the base as it travels.
	for leg := 0; leg < NumLegs; leg++ {
		if !s.contact[leg] {
			continue
		}
		prev := s.legAngles(leg)
		next := s.spec.JointAnglesFromBaseFrame(leg, s.worldToBase(s.anchor[leg]))
		for j := 0; j < MotorsPerLeg; j++ {
			s.dq[leg*MotorsPerLeg+j] = (next[j] - prev[j]) / dt
		}
		s.setLegAngles(leg, next)
	}

	s.t += s.timeStep
}

// integrateSwing advances the motors of a free leg under PD control.
func (s *Sim) integrateSwing(leg int, la LegAction, dt float64) {
	for j, cmd := range la {
		i := leg*MotorsPerLeg + j
		tau := cmd.Kp*(cmd.Position-s.q[i]) + cmd.Kd*(cmd.Velocity-s.dq[i]) + cmd.Torque
		tau = clamp(tau, -s.spec.MaxTorque, s.spec.MaxTorque)
		s.dq[i] += tau / simMotorInertia * dt
		s.q[i] += s.dq[i] * dt
	}
}

// groundReaction recovers the force the ground exerts on the base through a
// stance foot from the leg's motor torques: tau = -J^T f.
func (s *Sim) groundReaction(leg int, la LegAction) Vec3 {
	jac := s.spec.Jacobian(leg, s.legAngles(leg))
	jt := mat.NewDense(3, 3, []float64{
		jac[0][0], jac[1][0], jac[2][0],
		jac[0][1], jac[1][1], jac[2][1],
		jac[0][2], jac[1][2], jac[2][2],
	})
	tau := mat.NewVecDense(3, nil)
	for j, cmd := range la {
		tau.SetVec(j, -clamp(cmd.Torque, -s.spec.MaxTorque, s.spec.MaxTorque))
	}

	var f mat.VecDense
	if err := f.SolveVec(jt, tau); err != nil {
		// Singular leg (fully extended knee) transmits no force.
		s.logger.Debug("singular stance jacobian", "leg", LegNames[leg], "err", err)
		return Vec3{}
	}
	out := Vec3{f.AtVec(0), f.AtVec(1), f.AtVec(2)}
	if !out.IsFinite() {
		return Vec3{}
	}
	return out
}

func (s *Sim) legAngles(leg int) [MotorsPerLeg]float64 {
	var a [MotorsPerLeg]float64
	copy(a[:], s.q[leg*MotorsPerLeg:(leg+1)*MotorsPerLeg])
	return a
}

func (s *Sim) setLegAngles(leg int, a [MotorsPerLeg]float64) {
	copy(s.q[leg*MotorsPerLeg:(leg+1)*MotorsPerLeg], a[:])
}

func (s *Sim) footInBase(leg int) Vec3 {
	return s.spec.FootPositionInBaseFrame(leg, s.legAngles(leg))
}

func (s *Sim) baseToWorld(p Vec3) Vec3 {
	c, sn := math.Cos(s.yaw), math.Sin(s.yaw)
	return Vec3{
		s.pos[0] + c*p[0] - sn*p[1],
		s.pos[1] + sn*p[0] + c*p[1],
		s.pos[2] + p[2],
	}
}

func (s *Sim) worldToBase(p Vec3) Vec3 {
	d := p.Sub(s.pos)
	c, sn := math.Cos(s.yaw), math.Sin(s.yaw)
	return Vec3{c*d[0] + sn*d[1], -sn*d[0] + c*d[1], d[2]}
}

// BaseVelocity returns the base linear velocity in the world frame.
func (s *Sim) BaseVelocity() Vec3 {
	return s.vel
}

// BasePosition returns the base position in the world frame.
func (s *Sim) BasePosition() Vec3 {
	return s.pos
}

// BaseRollPitchYaw returns the base orientation.
func (s *Sim) BaseRollPitchYaw() Vec3 {
	return Vec3{0, 0, s.yaw}
}

// BaseRollPitchYawRate returns the base angular velocity.
func (s *Sim) BaseRollPitchYawRate() Vec3 {
	return Vec3{0, 0, s.yawRate}
}

// MotorAngles returns all motor angles.
func (s *Sim) MotorAngles() [NumMotors]float64 {
	return s.q
}

// MotorVelocities returns all motor velocities.
func (s *Sim) MotorVelocities() [NumMotors]float64 {
	return s.dq
}

// FootContacts reports which feet are pinned to the ground.
func (s *Sim) FootContacts() [NumLegs]bool {
	return s.contact
}

// FootPositionsInBaseFrame returns the current foot positions.
func (s *Sim) FootPositionsInBaseFrame() [NumLegs]Vec3 {
	var out [NumLegs]Vec3
	for leg := range out {
		out[leg] = s.footInBase(leg)
	}
	return out
}

// GroundReactionForces returns the last applied stance forces in the base frame.
func (s *Sim) GroundReactionForces() [NumLegs]Vec3 {
	return s.forces
}

// HipPositionsInBaseFrame returns the hip offsets of the profile.
func (s *Sim) HipPositionsInBaseFrame() [NumLegs]Vec3 {
	return s.spec.HipOffsets
}

// ComputeJacobian evaluates the leg Jacobian at the current motor angles.
func (s *Sim) ComputeJacobian(leg int) [3][3]float64 {
	return s.spec.Jacobian(leg, s.legAngles(leg))
}

// MotorAnglesFromFootPosition solves IK for a foot position in the base frame.
func (s *Sim) MotorAnglesFromFootPosition(leg int, foot Vec3) [MotorsPerLeg]float64 {
	return s.spec.JointAnglesFromBaseFrame(leg, foot)
}
