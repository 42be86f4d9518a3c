package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxylus-go/common"
	"github.com/go-gl/mathgl/mgl32"
)

// OrbitController orbits a camera around a target using spherical coordinates and pans it
// along its local axes. Viewers copy Position and Rotation into the camera entity's
// transform each tick.
type OrbitController interface {
	// Position returns the world-space camera position.
	Position() mgl32.Vec3

	// Rotation returns the Euler rotation that looks from Position at the target.
	//
	// Returns:
	//   - mgl32.Vec3: pitch (X) and yaw (Y) in radians, roll is always zero
	Rotation() mgl32.Vec3

	// Target returns the look-at point.
	Target() mgl32.Vec3

	// SetTarget moves the pivot point, keeping the orbit angles and radius.
	//
	// Parameters:
	//   - target: the new world-space pivot
	SetTarget(target mgl32.Vec3)

	// Orbit rotates around the target by the given steps, scaled by the orbit speed.
	// Elevation is clamped to the configured bounds.
	//
	// Parameters:
	//   - azimuthSteps: horizontal steps, positive rotates right
	//   - elevationSteps: vertical steps, positive tilts up
	Orbit(azimuthSteps, elevationSteps float32)

	// Zoom changes the orbit radius. Positive delta moves closer to the target.
	//
	// Parameters:
	//   - delta: zoom amount scaled by the zoom speed
	Zoom(delta float32)

	// Pan translates both the camera and the target along the camera's local axes.
	//
	// Parameters:
	//   - right: movement along the local right axis
	//   - up: movement along the local up axis
	//   - forward: movement along the view direction
	Pan(right, up, forward float32)
}

type orbitController struct {
	mu *sync.Mutex

	target    mgl32.Vec3
	radius    float32
	azimuth   float32
	elevation float32

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	orbitSpeed float32
	zoomSpeed  float32
	panSpeed   float32
}

var _ OrbitController = &orbitController{}

// OrbitControllerBuilderOption is a functional option used to configure an OrbitController.
type OrbitControllerBuilderOption func(*orbitController)

// WithRadius sets the initial orbit radius.
func WithRadius(radius float32) OrbitControllerBuilderOption {
	return func(oc *orbitController) {
		oc.radius = radius
	}
}

// WithAngles sets the initial azimuth and elevation in radians.
//
// Parameters:
//   - azimuth: horizontal angle, 0 places the camera on +Z
//   - elevation: vertical angle from the horizontal plane
//
// Returns:
//   - OrbitControllerBuilderOption: a function that sets both angles
func WithAngles(azimuth, elevation float32) OrbitControllerBuilderOption {
	return func(oc *orbitController) {
		oc.azimuth = azimuth
		oc.elevation = elevation
	}
}

// WithTarget sets the initial pivot point.
func WithTarget(target mgl32.Vec3) OrbitControllerBuilderOption {
	return func(oc *orbitController) {
		oc.target = target
	}
}

// WithSpeeds sets the orbit (radians per step), zoom and pan speed multipliers.
func WithSpeeds(orbit, zoom, pan float32) OrbitControllerBuilderOption {
	return func(oc *orbitController) {
		oc.orbitSpeed = orbit
		oc.zoomSpeed = zoom
		oc.panSpeed = pan
	}
}

// NewOrbitController creates an OrbitController 10 units from the origin at a 30 degree
// elevation.
//
// Parameters:
//   - options: variadic list of OrbitControllerBuilderOption functions
//
// Returns:
//   - OrbitController: the new controller
func NewOrbitController(options ...OrbitControllerBuilderOption) OrbitController {
	oc := &orbitController{
		mu:        &sync.Mutex{},
		radius:    10,
		elevation: float32(math.Pi / 6),

		minRadius:    0.5,
		maxRadius:    2000,
		minElevation: float32(-math.Pi/2 + 0.05),
		maxElevation: float32(math.Pi/2 - 0.05),

		orbitSpeed: 0.03,
		zoomSpeed:  0.5,
		panSpeed:   0.1,
	}
	for _, opt := range options {
		opt(oc)
	}
	oc.radius = common.Clamp(oc.radius, oc.minRadius, oc.maxRadius)
	oc.elevation = common.Clamp(oc.elevation, oc.minElevation, oc.maxElevation)
	return oc
}

// position computes the camera position. Caller must hold the mutex.
func (oc *orbitController) position() mgl32.Vec3 {
	cosElev := float32(math.Cos(float64(oc.elevation)))
	sinElev := float32(math.Sin(float64(oc.elevation)))
	cosAzim := float32(math.Cos(float64(oc.azimuth)))
	sinAzim := float32(math.Sin(float64(oc.azimuth)))
	return oc.target.Add(mgl32.Vec3{cosElev * sinAzim, sinElev, cosElev * cosAzim}.Mul(oc.radius))
}

// rotation returns pitch and yaw such that common.ForwardFromEuler points at the target.
// Caller must hold the mutex.
func (oc *orbitController) rotation() mgl32.Vec3 {
	return mgl32.Vec3{-oc.elevation, oc.azimuth, 0}
}

func (oc *orbitController) Position() mgl32.Vec3 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.position()
}

func (oc *orbitController) Rotation() mgl32.Vec3 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.rotation()
}

func (oc *orbitController) Target() mgl32.Vec3 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.target
}

func (oc *orbitController) SetTarget(target mgl32.Vec3) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.target = target
}

func (oc *orbitController) Orbit(azimuthSteps, elevationSteps float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.azimuth += azimuthSteps * oc.orbitSpeed
	oc.elevation = common.Clamp(oc.elevation+elevationSteps*oc.orbitSpeed, oc.minElevation, oc.maxElevation)
}

func (oc *orbitController) Zoom(delta float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.radius = common.Clamp(oc.radius-delta*oc.zoomSpeed, oc.minRadius, oc.maxRadius)
}

func (oc *orbitController) Pan(right, up, forward float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()

	fwd := common.ForwardFromEuler(oc.rotation())
	rightAxis := fwd.Cross(mgl32.Vec3{0, 1, 0})
	if rightAxis.Len() < 1e-6 {
		return
	}
	rightAxis = rightAxis.Normalize()
	upAxis := rightAxis.Cross(fwd)

	offset := rightAxis.Mul(right).Add(upAxis.Mul(up)).Add(fwd.Mul(forward)).Mul(oc.panSpeed)
	oc.target = oc.target.Add(offset)
}
