package renderer

import (
	"fmt"
	"time"

	"github.com/cpcdoy/cuda-pathtracer/log"
	"github.com/cpcdoy/cuda-pathtracer/scene"
	"github.com/cpcdoy/cuda-pathtracer/tracer"
	"github.com/cpcdoy/cuda-pathtracer/types"
	"github.com/go-gl/gl/v2.1/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
)

const (
	// Coefficients for converting delta cursor movements to yaw/pitch
	// camera angles.
	mouseSensitivityX float32 = 0.005
	mouseSensitivityY float32 = 0.005

	cameraMoveSpeed float32 = 0.05

	windowTitle = "cuda-pathtracer"
)

// An interactive opengl renderer. It cycles through a playlist of scenes,
// uploading each one lazily on first display and releasing it when the user
// switches away.
type interactiveRenderer struct {
	logger  log.Logger
	tracer  *tracer.Tracer
	options Options

	playlist    []*scene.Scene
	activeScene int
	camera      scene.Camera

	window    *glfw.Window
	fbTexture uint32
	texFbo    uint32
	frame     []byte

	lastCursorPos types.Vec2
	mousePressed  bool
}

// NewInteractive creates an interactive renderer over the scene playlist.
// Nothing is uploaded until Render runs.
func NewInteractive(playlist []*scene.Scene, tr *tracer.Tracer, opts Options) (Renderer, error) {
	if len(playlist) == 0 {
		return nil, fmt.Errorf("renderer: empty scene playlist")
	}

	r := &interactiveRenderer{
		logger:   log.New("renderer"),
		tracer:   tr,
		options:  opts,
		playlist: playlist,
		frame:    make([]byte, opts.FrameW*opts.FrameH*4),
	}

	if err := r.initGL(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *interactiveRenderer) initGL() error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize glfw: %s", err.Error())
	}

	glfw.WindowHint(glfw.Resizable, glfw.False)
	glfw.WindowHint(glfw.ContextVersionMajor, 2)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)

	var err error
	r.window, err = glfw.CreateWindow(int(r.options.FrameW), int(r.options.FrameH), windowTitle, nil, nil)
	if err != nil {
		return fmt.Errorf("could not create opengl window: %s", err.Error())
	}
	r.window.MakeContextCurrent()

	if err = gl.Init(); err != nil {
		return fmt.Errorf("could not init opengl: %s", err.Error())
	}

	// Texture receiving the traced frame.
	gl.GenTextures(1, &r.fbTexture)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, r.fbTexture)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(r.options.FrameW), int32(r.options.FrameH), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)

	// Attach it to a read framebuffer so frames can be blitted out.
	gl.GenFramebuffers(1, &r.texFbo)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, r.texFbo)
	gl.FramebufferTexture2D(gl.READ_FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, r.fbTexture, 0)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)

	r.window.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
	r.window.SetKeyCallback(r.onKeyEvent)
	r.window.SetMouseButtonCallback(r.onMouseEvent)
	r.window.SetCursorPosCallback(r.onCursorPosEvent)
	return nil
}

func (r *interactiveRenderer) Render() error {
	r.switchScene(0)

	var (
		frames     int
		lastReport = time.Now()
	)

	for !r.window.ShouldClose() {
		glfw.PollEvents()

		sc := r.playlist[r.activeScene]
		if !sc.Ready() {
			// Show black output for a failed scene instead of exiting;
			// the user can still switch to the other playlist entries.
			r.window.SwapBuffers()
			continue
		}

		if _, err := r.tracer.Trace(sc.DevicePtr(), &r.camera); err != nil {
			return err
		}
		if err := r.tracer.ReadFrame(r.frame); err != nil {
			return err
		}
		r.blitFrame()
		r.window.SwapBuffers()

		frames++
		if elapsed := time.Since(lastReport); elapsed >= time.Second {
			r.window.SetTitle(fmt.Sprintf("%s | %s | %.1f fps", windowTitle, sc.Name(), float64(frames)/elapsed.Seconds()))
			frames = 0
			lastReport = time.Now()
		}
	}

	if sc := r.playlist[r.activeScene]; sc.Ready() {
		sc.Release()
	}
	return nil
}

func (r *interactiveRenderer) blitFrame() {
	gl.BindTexture(gl.TEXTURE_2D, r.fbTexture)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(r.options.FrameW), int32(r.options.FrameH), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(r.frame))

	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, r.texFbo)
	gl.BlitFramebuffer(
		0, 0, int32(r.options.FrameW), int32(r.options.FrameH),
		0, 0, int32(r.options.FrameW), int32(r.options.FrameH),
		gl.COLOR_BUFFER_BIT, gl.LINEAR,
	)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
}

// switchScene releases the active scene and uploads the playlist entry at
// index. A scene that fails to upload stays in the playlist; switching to
// it again is a no-op on the failed state.
func (r *interactiveRenderer) switchScene(index int) {
	if current := r.playlist[r.activeScene]; current.Ready() && index != r.activeScene {
		current.Release()
	}
	r.activeScene = index

	next := r.playlist[index]
	r.camera = scene.DefaultCamera()
	next.Upload(&r.camera)
	if !next.Ready() {
		r.logger.Errorf("could not switch to scene %s: %s", next.Name(), next.Err())
		return
	}

	r.logger.Noticef("displaying scene %s\n%s", next.Name(), next.Stats())
	r.tracer.ResetAccumulation()
}

func (r *interactiveRenderer) onKeyEvent(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press && action != glfw.Repeat {
		return
	}

	var moveDir scene.CameraDirection
	switch key {
	case glfw.KeyEscape:
		r.window.SetShouldClose(true)
		return
	case glfw.KeyN:
		r.switchScene((r.activeScene + 1) % len(r.playlist))
		return
	case glfw.KeyP:
		r.switchScene((r.activeScene + len(r.playlist) - 1) % len(r.playlist))
		return
	case glfw.KeyUp, glfw.KeyW:
		moveDir = scene.Forward
	case glfw.KeyDown, glfw.KeyS:
		moveDir = scene.Backward
	case glfw.KeyLeft, glfw.KeyA:
		moveDir = scene.Left
	case glfw.KeyRight, glfw.KeyD:
		moveDir = scene.Right
	default:
		return
	}

	// Shift doubles the movement speed.
	var speedScaler float32 = 1.0
	if (mods & glfw.ModShift) == glfw.ModShift {
		speedScaler = 2.0
	}
	r.camera.Move(moveDir, speedScaler*cameraMoveSpeed)
	r.tracer.ResetAccumulation()
}

func (r *interactiveRenderer) onMouseEvent(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mod glfw.ModifierKey) {
	if button != glfw.MouseButtonLeft {
		return
	}

	r.mousePressed = action == glfw.Press
	if r.mousePressed {
		xPos, yPos := w.GetCursorPos()
		r.lastCursorPos = types.XY(float32(xPos), float32(yPos))
	}
}

func (r *interactiveRenderer) onCursorPosEvent(w *glfw.Window, xPos, yPos float64) {
	if !r.mousePressed {
		return
	}

	newPos := types.XY(float32(xPos), float32(yPos))
	delta := r.lastCursorPos.Sub(newPos)
	r.lastCursorPos = newPos

	r.camera.Rotate(delta[0]*mouseSensitivityX, delta[1]*mouseSensitivityY)
	r.tracer.ResetAccumulation()
}

func (r *interactiveRenderer) Close() {
	if r.window != nil {
		r.window.Destroy()
		r.window = nil
	}
	glfw.Terminate()
}
