package playback

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/handrelay/internal/pose"
)

// Default replay window size.
const (
	DefaultWindowWidth  = 640
	DefaultWindowHeight = 480
)

var (
	colorWrist      = color.RGBA{R: 255, G: 255, B: 0, A: 0}
	colorThumbTip   = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	colorFingertips = color.RGBA{R: 0, G: 0, B: 255, A: 0}
	colorJoints     = color.RGBA{R: 192, G: 192, B: 192, A: 0}
	colorBones      = color.RGBA{R: 220, G: 220, B: 220, A: 0}
	colorPalm       = color.RGBA{R: 80, G: 80, B: 80, A: 0}
	colorOutline    = color.RGBA{R: 50, G: 50, B: 50, A: 0}
	colorText       = color.RGBA{R: 0, G: 255, B: 0, A: 0}
)

// pixel is a landmark projected into the canvas. Depth is 0 for the farthest landmark of
// the frame and 1 for the nearest.
type pixel struct {
	Pt    image.Point
	Depth float64
}

// project maps a flipped pose onto a width x height image. The flip put y upward, so rows
// are measured from the bottom edge; flipped z grows toward the camera.
func project(f RenderFrame, width, height int) []pixel {
	minZ, maxZ := f.Pose.DepthRange()
	zRange := maxZ - minZ

	out := make([]pixel, len(f.Pose))
	for i, l := range f.Pose {
		depth := 0.5
		if zRange > 0 {
			depth = (l.Z - minZ) / zRange
		}
		out[i] = pixel{
			Pt:    image.Pt(int(l.X*float64(width)), int((1-l.Y)*float64(height))),
			Depth: depth,
		}
	}
	return out
}

func boneThickness(a, b pixel) int {
	return 1 + int((a.Depth+b.Depth)/2*5)
}

func jointRadius(p pixel) int {
	return 3 + int(p.Depth*7)
}

func jointColor(i int) color.RGBA {
	switch pose.RoleOf(i) {
	case pose.RoleWrist:
		return colorWrist
	case pose.RoleThumbTip:
		return colorThumbTip
	case pose.RoleFingertip:
		return colorFingertips
	default:
		return colorJoints
	}
}

// Draw renders f onto img: palm polygon first, then bones, then joints, then the
// frame counter and action name when they are set.
func Draw(img *gocv.Mat, f RenderFrame) {
	px := project(f, img.Cols(), img.Rows())

	palm := make([]image.Point, 0, len(f.Palm))
	for _, i := range f.Palm {
		if i < len(px) {
			palm = append(palm, px[i].Pt)
		}
	}
	if len(palm) > 2 {
		pv := gocv.NewPointsVectorFromPoints([][]image.Point{palm})
		gocv.FillPoly(img, pv, colorPalm)
		pv.Close()
	}

	for _, b := range f.Bones {
		if b[0] >= len(px) || b[1] >= len(px) {
			continue
		}
		gocv.Line(img, px[b[0]].Pt, px[b[1]].Pt, colorBones, boneThickness(px[b[0]], px[b[1]]))
	}

	for i, p := range px {
		r := jointRadius(p)
		gocv.Circle(img, p.Pt, r, jointColor(i), -1)
		gocv.Circle(img, p.Pt, r, colorOutline, 1)
	}

	if f.Total > 0 {
		gocv.PutText(img, fmt.Sprintf("Frame: %d/%d", f.Index, f.Total), image.Pt(10, 30),
			gocv.FontHersheySimplex, 0.7, colorText, 1)
	}
	if f.ActionName != "" {
		gocv.PutText(img, "Action: "+f.ActionName, image.Pt(10, 60),
			gocv.FontHersheySimplex, 0.7, colorText, 1)
	}
}

// WindowSink draws frames into a desktop window. The sink closes when the user closes the
// window or presses q.
type WindowSink struct {
	window *gocv.Window
	canvas gocv.Mat
	closed bool
}

// NewWindowSink opens a window of the given size.
func NewWindowSink(title string, width, height int) *WindowSink {
	if width <= 0 {
		width = DefaultWindowWidth
	}
	if height <= 0 {
		height = DefaultWindowHeight
	}
	return &WindowSink{
		window: gocv.NewWindow(title),
		canvas: gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3),
	}
}

// Render clears the canvas, draws f and shows it.
func (w *WindowSink) Render(f RenderFrame) error {
	if w.closed {
		return nil
	}
	w.canvas.SetTo(gocv.NewScalar(0, 0, 0, 0))
	Draw(&w.canvas, f)
	w.window.IMShow(w.canvas)

	if key := w.window.WaitKey(1); key == 'q' || key == 'Q' {
		w.closed = true
	}
	return nil
}

// Open reports whether the window is still visible.
func (w *WindowSink) Open() bool {
	if w.closed {
		return false
	}
	// Keep the event loop turning between frames so a closed window is noticed.
	if key := w.window.WaitKey(1); key == 'q' || key == 'Q' {
		w.closed = true
		return false
	}
	return w.window.GetWindowProperty(gocv.WindowPropertyVisible) >= 1
}

// Close destroys the window and frees the canvas.
func (w *WindowSink) Close() error {
	w.closed = true
	w.canvas.Close()
	return w.window.Close()
}
