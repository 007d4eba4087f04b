package messaging

import (
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/pane"
)

// NotifyConfig controls desktop notification for urgent messages.
type NotifyConfig struct {
	Command string // shell command template, e.g. "notify-send 'signalbox' '{{.From}}: {{.Content}}'"
}

// Notify raises a desktop notification for msg when it warrants one.
// Best-effort: errors are logged, not returned.
func Notify(msg *models.Message, cfg NotifyConfig) {
	if !ShouldNotify(msg) {
		return
	}
	if cfg.Command != "" {
		cmdStr := templateMessage(cfg.Command, msg)
		cmd := exec.Command("sh", "-c", cmdStr)
		if out, err := cmd.CombinedOutput(); err != nil {
			log.Printf("notify: command failed: %v: %s", err, strings.TrimSpace(string(out)))
		}
	}

	// If inside tmux, also flash the status line.
	if os.Getenv("TMUX") != "" {
		tmuxMsg := pane.Value(msg.FromAgent) + ": " + msg.Content
		cmd := exec.Command("tmux", "display-message", tmuxMsg)
		if err := cmd.Run(); err != nil {
			log.Printf("notify: tmux display-message failed: %v", err)
		}
	}
}

// ShouldNotify reports whether msg warrants a push notification.
func ShouldNotify(msg *models.Message) bool {
	return msg != nil && msg.Priority == PriorityUrgent
}

// templateMessage replaces placeholders in the command template with
// shell-quoted message values.
func templateMessage(command string, msg *models.Message) string {
	r := strings.NewReplacer(
		"{{.From}}", shellSafe(pane.Value(msg.FromAgent)),
		"{{.To}}", shellSafe(pane.Value(msg.ToAgent)),
		"{{.Channel}}", shellSafe(pane.Value(msg.Channel)),
		"{{.Content}}", shellSafe(msg.Content),
		"{{.Type}}", msg.Type,
		"{{.Priority}}", msg.Priority,
	)
	return r.Replace(command)
}

// shellSafe strips single quotes so values cannot close a quoted argument
// in the template.
func shellSafe(s string) string {
	return strings.ReplaceAll(s, "'", "")
}
