package ui

import (
	"fmt"
	"strings"

	"github.com/desertthunder/ytq/internal/credentials"
	"github.com/desertthunder/ytq/internal/models"
	"github.com/desertthunder/ytq/internal/shared"
	"github.com/desertthunder/ytq/internal/tasks"
)

const barWidth = 20

// ProgressBar draws a fixed-width bar for pct, clamped to 0-100.
func ProgressBar(pct, width int) string {
	pct = max(0, min(100, pct))
	if width <= 0 {
		width = barWidth
	}
	filled := pct * width / 100
	return fmt.Sprintf("[%s%s] %3d%%", strings.Repeat("#", filled), strings.Repeat("-", width-filled), pct)
}

// StatusLine renders a channel's credential classification.
func StatusLine(ch models.ChannelID, c credentials.Classification) string {
	label := c.Status.String()
	switch c.Status {
	case credentials.Connected, credentials.Refreshed:
		label = styles.OK(label)
	case credentials.NotAuthorized:
		label = styles.Warn(label)
	default:
		label = styles.Err(label)
	}

	line := fmt.Sprintf("%-24s %s", ch, label)
	if c.Record != nil && c.Usable() {
		line += " " + styles.Help("expires "+c.Record.Expiry.Local().Format("2006-01-02 15:04"))
	}
	if c.Err != nil && !c.Usable() {
		line += " " + styles.Help(shared.Reason(c.Err))
	}
	return line
}

// UpdateLine renders one queue notification.
func UpdateLine(u tasks.Update) string {
	switch u.Kind {
	case tasks.QueueIdle:
		return styles.OK(fmt.Sprintf("%s: %s", u.Channel, u.Message))
	case tasks.QueueStopped:
		return styles.Warn(fmt.Sprintf("%s: %s", u.Channel, u.Message))
	}

	prefix := fmt.Sprintf("%s [%s]", u.Channel, u.State)
	switch u.State {
	case models.JobDone:
		return styles.OK(prefix) + " " + u.Message
	case models.JobError:
		line := styles.Err(prefix) + " " + u.Message
		if !u.Interrupt {
			line += " " + styles.Help("(background)")
		}
		return line
	case models.JobCancelled:
		return styles.Warn(prefix) + " " + u.Message
	case models.JobUploading:
		return styles.Help(prefix) + " " + ProgressBar(u.Progress, barWidth) + " " + displayName(u)
	default:
		return styles.Help(prefix) + " " + u.Message
	}
}

func displayName(u tasks.Update) string {
	if u.Title != "" {
		return u.Title
	}
	return u.JobID
}
