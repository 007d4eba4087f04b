package router

import "fmt"

// FormatBroadcast renders the text typed into each broadcast target.
func FormatBroadcast(from, message string) string {
	return fmt.Sprintf("[%s] %s", from, message)
}

// FormatDM renders the text typed into a direct-message target.
func FormatDM(from, message string) string {
	return fmt.Sprintf("[DM from %s] %s", from, message)
}

// FormatChannel renders the text typed into each channel member.
func FormatChannel(channel, from, message string) string {
	return fmt.Sprintf("[#%s] %s: %s", channel, from, message)
}

// FormatLeft renders a departure notice. pane is "none" when the agent
// had no address.
func FormatLeft(name, group, pane string) string {
	if pane == "" {
		pane = "none"
	}
	return fmt.Sprintf("[LEFT] %s has left (group: %s, pane: %s)", name, group, pane)
}
