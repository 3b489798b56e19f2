package render

import (
	"fmt"
	"math"

	"github.com/chazu/facet/pkg/geomerr"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

var golden = (1 + math.Sqrt(5)) / 2

// Direction is one lattice point of the view sphere.
type Direction struct {
	Index int
	// Dir points from the target towards the camera.
	Dir r3.Vec
	// Azimuth is φ mod 360 and Polar is θ, both in degrees.
	Azimuth float64
	Polar   float64
}

// Name is the file stem of the view.
func (d Direction) Name() string {
	return fmt.Sprintf("view_%03d_az%03d_el%03d", d.Index, int(d.Azimuth), int(d.Polar))
}

// Directions places n points on the unit sphere along a golden spiral:
// θᵢ = acos(1 − 2(i+½)/n), φᵢ = 2πi/ϕ.
func Directions(n int) ([]Direction, error) {
	if n < 1 {
		return nil, &geomerr.InvalidViewCountError{Count: n}
	}
	dirs := make([]Direction, n)
	for i := range dirs {
		theta := math.Acos(1 - 2*(float64(i)+0.5)/float64(n))
		phi := 2 * math.Pi * float64(i) / golden
		dirs[i] = Direction{
			Index: i,
			Dir: r3.Vec{
				X: math.Sin(theta) * math.Cos(phi),
				Y: math.Sin(theta) * math.Sin(phi),
				Z: math.Cos(theta),
			},
			Azimuth: math.Mod(phi*180/math.Pi, 360),
			Polar:   theta * 180 / math.Pi,
		}
	}
	return dirs, nil
}

// Pose is the full camera description of one view.
type Pose struct {
	Position  [3]float64 `json:"camera_position"`
	Forward   [3]float64 `json:"camera_direction"`
	Up        [3]float64 `json:"up"`
	Right     [3]float64 `json:"right"`
	Target    [3]float64 `json:"target"`
	FovY      float64    `json:"fov_y"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	Near      float64    `json:"near"`
	Far       float64    `json:"far"`
	Azimuth   float64    `json:"azimuth"`
	Elevation float64    `json:"elevation"`
	// CameraToWorld is row-major with columns right, up, -forward and
	// position.
	CameraToWorld [4][4]float64 `json:"camera_to_world"`
}

func arr(v r3.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

// camera is a pose prepared for projection.
type camera struct {
	pose    Pose
	pos     r3.Vec
	forward r3.Vec
	view    [4][4]float64
	focal   float64
	aspect  float64
}

// newCamera looks from target + dist·d.Dir at target. Up is +Z unless the
// view is within about 25° of the pole.
func newCamera(d Direction, target r3.Vec, dist, radius float64, opts Options) (*camera, error) {
	pos := r3.Add(target, r3.Scale(dist, d.Dir))
	forward := r3.Scale(-1, d.Dir)
	up := r3.Vec{Z: 1}
	if math.Abs(d.Dir.Z) > 0.9 {
		up = r3.Vec{Y: 1}
	}
	right := r3.Unit(r3.Cross(forward, up))
	up = r3.Unit(r3.Cross(right, forward))

	c2w := mat.NewDense(4, 4, []float64{
		right.X, up.X, -forward.X, pos.X,
		right.Y, up.Y, -forward.Y, pos.Y,
		right.Z, up.Z, -forward.Z, pos.Z,
		0, 0, 0, 1,
	})
	var w2c mat.Dense
	if err := w2c.Inverse(c2w); err != nil {
		return nil, fmt.Errorf("render: view %d: camera matrix: %w", d.Index, err)
	}

	c := &camera{
		pos:     pos,
		forward: forward,
		focal:   1 / math.Tan(opts.FovY/2),
		aspect:  float64(opts.Width) / float64(opts.Height),
	}
	c.pose = Pose{
		Position:  arr(pos),
		Forward:   arr(forward),
		Up:        arr(up),
		Right:     arr(right),
		Target:    arr(target),
		FovY:      opts.FovY,
		Width:     opts.Width,
		Height:    opts.Height,
		Near:      math.Max(dist-1.05*radius, 1e-3*radius),
		Far:       dist + 1.05*radius,
		Azimuth:   d.Azimuth,
		Elevation: d.Polar,
	}
	for i := range 4 {
		for j := range 4 {
			c.pose.CameraToWorld[i][j] = c2w.At(i, j)
			c.view[i][j] = w2c.At(i, j)
		}
	}
	return c, nil
}

// project maps p to pixel coordinates and its depth along the view axis.
// ok is false behind the near plane.
func (c *camera) project(p r3.Vec) (x, y, depth float64, ok bool) {
	v := c.view
	cx := v[0][0]*p.X + v[0][1]*p.Y + v[0][2]*p.Z + v[0][3]
	cy := v[1][0]*p.X + v[1][1]*p.Y + v[1][2]*p.Z + v[1][3]
	cz := v[2][0]*p.X + v[2][1]*p.Y + v[2][2]*p.Z + v[2][3]
	depth = -cz
	if depth < c.pose.Near*0.5 {
		return 0, 0, depth, false
	}
	nx := c.focal / c.aspect * cx / depth
	ny := c.focal * cy / depth
	w, h := float64(c.pose.Width), float64(c.pose.Height)
	return (nx + 1) * w / 2, (1 - ny) * h / 2, depth, true
}

// fitDistance is the distance at which a sphere of the given radius fills
// the narrower field of view.
func fitDistance(radius float64, opts Options) float64 {
	half := opts.FovY / 2
	aspect := float64(opts.Width) / float64(opts.Height)
	if aspect < 1 {
		half = math.Atan(math.Tan(half) * aspect)
	}
	return radius / math.Sin(half)
}
