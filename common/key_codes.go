package common

// Virtual key codes for cross-platform input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyM     = 77  // M key (ASCII), toggles motion blur
	KeyH     = 72  // H key (ASCII), cycles the AO mode
	KeyR     = 82  // R key (ASCII), requests a voxel rebuild
	KeySpace = 32  // Spacebar (ASCII), pauses the light orbit
	KeyEsc   = 256 // Escape key (GLFW)
	KeyUp    = 265 // Up arrow (GLFW)
	KeyDown  = 264 // Down arrow (GLFW)

	Key1 = 49 // 1 key (ASCII)
	Key2 = 50 // 2 key (ASCII)
	Key3 = 51 // 3 key (ASCII)
	Key4 = 52 // 4 key (ASCII)
)
