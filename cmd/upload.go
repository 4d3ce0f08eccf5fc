package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/desertthunder/ytq/internal/formatter"
	"github.com/desertthunder/ytq/internal/models"
	"github.com/desertthunder/ytq/internal/repositories"
	"github.com/desertthunder/ytq/internal/shared"
	"github.com/desertthunder/ytq/internal/tasks"
	"github.com/desertthunder/ytq/internal/ui"
	"github.com/urfave/cli/v3"
)

// UploadRun queues every job in a manifest for one channel and uploads them in order, printing one line per update.
//
// The first interrupt stops the queue; the in-flight job is reported cancelled.
func (r *Runner) UploadRun(ctx context.Context, cmd *cli.Command) error {
	ch, err := channelArg(cmd)
	if err != nil {
		return err
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	manifest, err := LoadManifest(cmd.String("manifest"))
	if err != nil {
		return err
	}

	loc, err := r.config.Upload.Location()
	if err != nil {
		return err
	}

	jobs, err := manifest.UploadJobs(loc)
	if err != nil {
		return err
	}

	if cmd.Bool("dry-run") {
		return r.printJobs(ch, jobs)
	}

	if c := r.store.Classify(ctx, ch); !c.Usable() {
		r.writePlain("%s\n", ui.StatusLine(ch, c))
		if c.Err != nil {
			return fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, c.Err)
		}
		return fmt.Errorf("%w: channel %s is %s", shared.ErrNotAuthenticated, ch, c.Status)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	updates := make(chan tasks.Update, 64)
	coordinator := r.coordinator(updates, repositories.NewHistory(db))
	coordinator.SetObserved(ch)

	queue, err := coordinator.Queue(ch)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if err := queue.Enqueue(job); err != nil {
			return err
		}
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	r.logger.Info("starting upload queue", "channel", ch, "jobs", len(jobs))
	if err := queue.Start(ctx); err != nil {
		return err
	}

	interrupted := sigCtx.Done()
	for done := false; !done; {
		select {
		case u := <-updates:
			r.writePlain("%s\n", ui.UpdateLine(u))
			done = u.Kind == tasks.QueueIdle || u.Kind == tasks.QueueStopped
		case <-interrupted:
			r.logger.Warn("stopping upload queue")
			queue.Stop()
			interrupted = nil
		}
	}

	report := queue.Wait()

	if path := cmd.String("report"); path != "" {
		written, err := formatter.WriteReport(&report, format, path)
		if err != nil {
			return err
		}
		r.logger.Info("report written", "path", written)
	} else {
		data, err := formatter.FormatReport(&report, format)
		if err != nil {
			return err
		}
		r.writePlainln("%s", data)
	}

	switch {
	case report.Stopped:
		return fmt.Errorf("%w: %d job(s) left in queue", shared.ErrUserCancelled, len(queue.Pending()))
	case report.Failed() > 0:
		return fmt.Errorf("%d of %d uploads failed", report.Failed(), len(report.Results))
	}
	return nil
}

func (r *Runner) printJobs(ch models.ChannelID, jobs []*models.UploadJob) error {
	r.writePlainHeader(fmt.Sprintf("%d job(s) for %s", len(jobs), ch))
	for i, job := range jobs {
		line := fmt.Sprintf("%d. %s [%s] %s", i+1, job.Title, job.Privacy, job.VideoPath)
		if job.PublishAt != nil {
			line += " publish " + job.PublishAt.Format("2006-01-02T15:04:05Z07:00")
		}
		if job.ThumbnailPath != "" {
			line += " thumbnail " + job.ThumbnailPath
		}
		r.writePlain("%s\n", line)
	}
	return nil
}

// History lists ledger rows, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	var ch *models.ChannelID
	if raw := cmd.String("channel"); raw != "" {
		parsed, err := models.ParseChannelID(raw)
		if err != nil {
			return err
		}
		ch = &parsed
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := repositories.NewHistory(db).Recent(ch, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	switch format {
	case formatter.FormatCSV:
		data, err := formatter.RecordsToCSV(records)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	case formatter.FormatText:
		return r.writePlain("%s", formatter.RecordsToText(records))
	default:
		return fmt.Errorf("%w: history supports text or csv", shared.ErrInvalidArgument)
	}
}
