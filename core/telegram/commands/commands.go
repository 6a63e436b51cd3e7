package commands

// Command describes a chat command shown in the bot menu.
type Command struct {
	Description string
	// Hidden commands are recognised but left out of the menu.
	Hidden bool
}
