package model

const (
	// Staff bot states
	StateIdle = iota
	StateAwaitingContact
	StateAwaitingShowID
	StateAwaitingDeleteID
)

// UserState is the conversation state of one staff member talking to the bot
type UserState struct {
	State       int
	LastCommand string // command that moved the user out of StateIdle
}
