package session

// Level classifies a status message for the client notification area.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Status is the user-facing outcome of an operation.
type Status struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

const (
	msgUploaded     = "Image uploaded. Generate some hidden points!"
	msgNoImage      = "Please upload an image first."
	msgTooSmall     = "The image is too small to place hidden points."
	msgGenerated    = "%d hidden points generated. Click the canvas to find them!"
	msgHit          = "Correct! You found a hidden point."
	msgCleared      = "Correct! You found every hidden point."
	msgMiss         = "Wrong! Try clicking somewhere else."
	msgDecode       = "The image could not be read. Try another file."
	msgRestored     = "Restored your previously saved hidden picture game."
	msgRestoreReset = "Your saved game could not be restored and was cleared."
	msgReset        = "Game cleared. Upload an image to start again."
)
