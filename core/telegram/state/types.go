package state

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Session stores conversation state and collected data for a user.
type Session struct {
	State State
	Data  map[string]string
}

// Store keeps exactly one session per user. Users never share a session.
type Store interface {
	GetState(userID int64) State
	SetState(userID int64, st State)
	// UpdateData merges values into the data bag; existing keys are overwritten.
	UpdateData(userID int64, values map[string]string)
	// GetData returns a copy of the data bag.
	GetData(userID int64) map[string]string
	// Clear resets state and data together.
	Clear(userID int64)
	InProgress(userID int64) bool
}
