// Package ui renders the host CLI's status lines with [lipgloss] styles.
//
// The CLI is line-oriented: every queue [tasks.Update] and every channel classification becomes one styled line.
// Successful states use the ok style, failures the error style, and in-flight states the help style with an inline
// progress bar while uploading.
package ui
