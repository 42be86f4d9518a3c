package common

// Virtual key codes for cross-platform input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyW     = 87  // W key (ASCII)
	KeyA     = 65  // A key (ASCII)
	KeyS     = 83  // S key (ASCII)
	KeyD     = 68  // D key (ASCII)
	KeyQ     = 81  // Q key (ASCII)
	KeyE     = 69  // E key (ASCII)
	KeyB     = 66  // B key (ASCII), toggles bloom in the viewer
	KeyF     = 70  // F key (ASCII), freezes the culling frustum in the viewer
	KeyO     = 79  // O key (ASCII), toggles occlusion culling in the viewer
	KeyT     = 84  // T key (ASCII), cycles the tonemapper in the viewer
	KeyX     = 88  // X key (ASCII), toggles FXAA in the viewer
	KeySpace = 32  // Spacebar (ASCII)
	KeyEsc   = 256 // Escape key (GLFW)

	Key0 = 48 // 0 key (ASCII)
	Key1 = 49 // 1 key (ASCII)
	Key2 = 50 // 2 key (ASCII)
	Key3 = 51 // 3 key (ASCII)
	Key4 = 52 // 4 key (ASCII)
	Key5 = 53 // 5 key (ASCII)
	Key6 = 54 // 6 key (ASCII)
	Key7 = 55 // 7 key (ASCII)
	Key8 = 56 // 8 key (ASCII)
	Key9 = 57 // 9 key (ASCII)
)

// DigitKey returns the 0-9 value of a digit key code and whether keyCode is a digit key.
func DigitKey(keyCode uint32) (int, bool) {
	if keyCode < Key0 || keyCode > Key9 {
		return 0, false
	}
	return int(keyCode - Key0), true
}
