package viewer

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"github.com/fogleman/gg"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	"github.com/splatmesh/splatmesh/mesh"
	"github.com/splatmesh/splatmesh/pointcloud"
	"github.com/splatmesh/splatmesh/spatialmath"
)

var (
	defaultCloudColor = colorful.Color{R: 0.45, G: 0.45, B: 0.5}
	defaultMeshColor  = colorful.Color{R: 0.7, G: 0.7, B: 0.72}
)

// camera projects world points into one half of the snapshot.
type camera struct {
	viewProj      mgl64.Mat4
	view          mgl64.Mat4
	eye           r3.Vector
	width, height float64
}

// newCamera frames bounds from a fixed oblique direction.
func newCamera(bounds spatialmath.AABB, width, height float64) camera {
	center := bounds.Center()
	radius := math.Max(bounds.Diagonal()/2, 1e-6)
	fovy := mgl64.DegToRad(45)
	distance := radius / math.Sin(fovy/2) * 1.1
	dir := r3.Vector{X: 1, Y: 0.8, Z: 1.2}.Normalize()
	eye := center.Add(dir.Mul(distance))

	view := mgl64.LookAtV(
		mgl64.Vec3{eye.X, eye.Y, eye.Z},
		mgl64.Vec3{center.X, center.Y, center.Z},
		mgl64.Vec3{0, 1, 0},
	)
	proj := mgl64.Perspective(fovy, width/height, distance/100, distance*4)
	return camera{viewProj: proj.Mul4(view), view: view, eye: eye, width: width, height: height}
}

// project returns screen coordinates and the view-space depth of p. ok is false behind the camera.
func (c camera) project(p r3.Vector) (x, y, depth float64, ok bool) {
	clip := c.viewProj.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
	if clip.W() <= 0 {
		return 0, 0, 0, false
	}
	ndc := clip.Vec3().Mul(1 / clip.W())
	x = (ndc.X() + 1) / 2 * c.width
	y = (1 - ndc.Y()) / 2 * c.height
	eyeSpace := c.view.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
	return x, y, -eyeSpace.Z(), true
}

func toRGBA(c colorful.Color) color.Color {
	r, g, b := pointcloud.RGB255(c)
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func drawCloud(dc *gg.Context, cam camera, cloud *pointcloud.PointCloud, offsetX float64) {
	type dot struct {
		x, y, depth float64
		c           colorful.Color
	}
	dots := make([]dot, 0, cloud.Size())
	hasColor := cloud.MetaData().HasColor
	cloud.Iterate(func(i int, p r3.Vector) bool {
		x, y, depth, ok := cam.project(p)
		if !ok {
			return true
		}
		c := defaultCloudColor
		if hasColor {
			c = cloud.Color(i)
		}
		dots = append(dots, dot{x + offsetX, y, depth, c})
		return true
	})
	sort.Slice(dots, func(i, j int) bool { return dots[i].depth > dots[j].depth })
	for _, d := range dots {
		dc.SetColor(toRGBA(d.c))
		dc.DrawRectangle(d.x-1, d.y-1, 2, 2)
		dc.Fill()
	}
}

func drawMesh(dc *gg.Context, cam camera, m *mesh.Mesh, offsetX float64) {
	type face struct {
		pts   [3][2]float64
		depth float64
		c     colorful.Color
	}
	faces := make([]face, 0, len(m.Triangles))
	for i := range m.Triangles {
		tri := m.Triangle(i)
		var f face
		visible := true
		for k, v := range tri.Points() {
			x, y, depth, ok := cam.project(v)
			if !ok {
				visible = false
				break
			}
			f.pts[k] = [2]float64{x + offsetX, y}
			f.depth += depth / 3
		}
		if !visible {
			continue
		}
		base := defaultMeshColor
		if m.Colors != nil {
			idx := m.Triangles[i]
			base = averageColor(m.Colors[idx[0]], m.Colors[idx[1]], m.Colors[idx[2]])
		}
		// headlight shading, two sided
		toEye := cam.eye.Sub(tri.Centroid()).Normalize()
		shade := 0.35 + 0.65*math.Abs(tri.Normal().Dot(toEye))
		f.c = colorful.Color{R: base.R * shade, G: base.G * shade, B: base.B * shade}
		faces = append(faces, f)
	}
	sort.Slice(faces, func(i, j int) bool { return faces[i].depth > faces[j].depth })
	for _, f := range faces {
		dc.MoveTo(f.pts[0][0], f.pts[0][1])
		dc.LineTo(f.pts[1][0], f.pts[1][1])
		dc.LineTo(f.pts[2][0], f.pts[2][1])
		dc.ClosePath()
		dc.SetColor(toRGBA(f.c))
		dc.Fill()
	}
}

func averageColor(a, b, c colorful.Color) colorful.Color {
	return colorful.Color{R: (a.R + b.R + c.R) / 3, G: (a.G + b.G + c.G) / 3, B: (a.B + b.B + c.B) / 3}
}

func scaled(m *mesh.Mesh, scale float64) *mesh.Mesh {
	if scale == 1 {
		return m
	}
	center := m.Bounds().Center()
	out := *m
	out.Vertices = make([]r3.Vector, len(m.Vertices))
	for i, v := range m.Vertices {
		out.Vertices[i] = center.Add(v.Sub(center).Mul(scale))
	}
	return &out
}

// Snapshot renders the point cloud on the left and the current mesh on the right into a PNG at
// path. Both halves share one camera; when origin adjustment moved the mesh, each half is framed
// on its own geometry.
func (s *Session) Snapshot(path string) error {
	s.mu.Lock()
	cloud, view, scale := s.cloud, s.current, s.scale
	status := s.status
	s.mu.Unlock()

	width, height := float64(s.cfg.Width), float64(s.cfg.Height)
	half := width / 2
	dc := gg.NewContext(s.cfg.Width, s.cfg.Height)
	dc.SetColor(toRGBA(s.cfg.Background.Color()))
	dc.Clear()

	textColor := color.Black
	if bg := s.cfg.Background.Color(); (bg.R+bg.G+bg.B)/3 < 0.5 {
		textColor = color.White
	}

	cloudCam := newCamera(cloud.MetaData().Bounds, half, height)
	drawCloud(dc, cloudCam, cloud, 0)
	dc.SetColor(textColor)
	dc.DrawString(fmt.Sprintf("Point cloud: %d points", cloud.Size()), 10, 20)

	if view != nil {
		m := scaled(view.Mesh, scale)
		meshCam := cloudCam
		if b := m.Bounds(); !sameFrame(b, cloud.MetaData().Bounds) {
			meshCam = newCamera(b, half, height)
		}
		drawMesh(dc, meshCam, m, half)
		size := m.Bounds().Size()
		dc.SetColor(textColor)
		dc.DrawString(fmt.Sprintf("Mesh: %s %s, %d vertices, %d triangles",
			view.Method, view.Format, len(m.Vertices), len(m.Triangles)), half+10, 20)
		dc.DrawString(fmt.Sprintf("Dimensions: %.3f x %.3f x %.3f", size.X, size.Y, size.Z), half+10, 38)
	} else {
		dc.SetColor(textColor)
		dc.DrawString("Mesh: "+status.State.String(), half+10, 20)
	}
	if status.State == StateFailed {
		dc.DrawString("Last build failed: "+status.Message, half+10, height-12)
	}

	dc.SetColor(textColor)
	dc.DrawLine(half, 0, half, height)
	dc.SetLineWidth(1)
	dc.Stroke()

	if err := dc.SavePNG(path); err != nil {
		return errors.Wrapf(err, "cannot save snapshot %q", path)
	}
	return nil
}

// sameFrame reports whether two boxes overlap enough to share a camera.
func sameFrame(a, b spatialmath.AABB) bool {
	return a.Center().Distance(b.Center()) <= math.Max(a.Diagonal(), b.Diagonal())/2
}
