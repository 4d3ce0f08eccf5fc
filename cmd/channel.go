package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/desertthunder/ytq/internal/credentials"
	"github.com/desertthunder/ytq/internal/models"
	"github.com/desertthunder/ytq/internal/shared"
	"github.com/desertthunder/ytq/internal/ui"
	"github.com/urfave/cli/v3"
)

var exampleChannel = models.ChannelID{Category: "default", Name: "main"}

// channelStatus is the JSON shape of one classified channel.
type channelStatus struct {
	Channel          string     `json:"channel"`
	Status           string     `json:"status"`
	Usable           bool       `json:"usable"`
	RefreshAttempted bool       `json:"refresh_attempted,omitempty"`
	Expiry           *time.Time `json:"expiry,omitempty"`
	Error            string     `json:"error,omitempty"`
}

// ChannelStatus classifies one channel, or every channel under the configured root.
//
// Classification may refresh an expired token; the refreshed record is persisted.
func (r *Runner) ChannelStatus(ctx context.Context, cmd *cli.Command) error {
	var channels []models.ChannelID
	if cmd.StringArg("channel") != "" {
		ch, err := channelArg(cmd)
		if err != nil {
			return err
		}
		channels = append(channels, ch)
	} else {
		found, err := r.store.Channels()
		if err != nil {
			return err
		}
		channels = found
	}

	if len(channels) == 0 {
		return r.writePlain("No channels found under %s\n", r.config.Channels.Root)
	}

	statuses := make([]channelStatus, 0, len(channels))
	lines := make([]string, 0, len(channels))
	for _, ch := range channels {
		c := r.store.Classify(ctx, ch)
		r.logger.Debug("classified channel", "channel", ch, "status", c.Status)

		s := channelStatus{
			Channel:          ch.String(),
			Status:           c.Status.String(),
			Usable:           c.Usable(),
			RefreshAttempted: c.RefreshAttempted(),
			Error:            shared.Reason(c.Err),
		}
		if c.Record != nil {
			expiry := c.Record.Expiry
			s.Expiry = &expiry
		}
		statuses = append(statuses, s)
		lines = append(lines, ui.StatusLine(ch, c))
	}

	if cmd.Bool("json") {
		return r.writeJSON(statuses, cmd.Bool("pretty"))
	}

	r.writePlainHeader(ui.Styles().Title("Channels"))
	for _, line := range lines {
		r.writePlain("%s\n", line)
	}
	return nil
}

// ChannelAuth runs the loopback authorization flow for one channel and waits for its outcome.
//
// Interrupting the command cancels the session and releases the port.
func (r *Runner) ChannelAuth(ctx context.Context, cmd *cli.Command) error {
	ch, err := channelArg(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if timeout := cmd.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	coordinator := r.coordinator(nil, nil)
	defer coordinator.Shutdown()

	session, outcomes, err := coordinator.Authorize(ctx, ch)
	if err != nil {
		r.logger.Error("authorization not started", "channel", ch, "reason", shared.Reason(err))
		return err
	}

	r.writePlain("Authorize %s by opening this URL:\n\n%s\n\n", ch, session.AuthURL())
	r.writePlain("%s\n", ui.Styles().Help(fmt.Sprintf("Waiting for the redirect on %s (Ctrl+C to cancel)", session.RedirectURI())))

	if r.config.OAuth.OpenBrowser && !cmd.Bool("no-browser") {
		if err := r.browser(session.AuthURL()); err != nil {
			r.logger.Warn("failed to open browser, open the URL manually", "error", err)
		}
	}

	outcome := <-outcomes
	if outcome.Err != nil {
		r.writePlain("%s\n", ui.Styles().Err("✗ "+shared.Reason(outcome.Err)))
		return outcome.Err
	}

	r.writePlain("%s\n", ui.Styles().OK(fmt.Sprintf("✓ %s authorized", ch)))
	r.writePlain("Token expires %s and refreshes automatically\n", outcome.Record.Expiry.Local().Format(time.RFC1123))
	return nil
}

// ChannelSecret installs a client secret for a channel after validating it. Without --file it writes the empty
// placeholder, leaving an existing secret untouched.
func (r *Runner) ChannelSecret(ctx context.Context, cmd *cli.Command) error {
	ch, err := channelArg(cmd)
	if err != nil {
		return err
	}

	path := cmd.String("file")
	if path == "" {
		if err := r.store.WritePlaceholder(ch); err != nil {
			return fmt.Errorf("failed to write placeholder: %w", err)
		}
		return r.writePlain("Placeholder ready at %s; replace it with your downloaded client secret\n", r.store.SecretPath(ch))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrSecretMissing, err)
	}

	if err := r.store.WriteSecret(ch, data); err != nil {
		return err
	}

	r.logger.Info("client secret installed", "channel", ch, "path", r.store.SecretPath(ch))
	if c := r.store.Classify(ctx, ch); c.Status == credentials.NotAuthorized {
		r.writePlain("✓ Secret installed. Run 'ytq channel auth %s' next\n", ch)
		return nil
	}
	return r.writePlain("✓ Secret installed for %s\n", ch)
}
