package command

import (
	"bytes"
	"context"
	"encoding/xml"
	"strconv"
	"time"

	"github.com/marvinsync/marvinsync/pkg/deviceio"
	"github.com/marvinsync/marvinsync/pkg/errcodes"
	"github.com/robinjoseph08/golib/logger"
)

// Status codes reported by the device in the status document.
const (
	StatusInProgress = -1
	StatusSuccess    = 0
	StatusWarnings   = 1
	StatusErrors     = 2
)

// status mirrors the device's status document: code and timestamp
// attributes on the root, a progress fraction, and an optional message
// list.
type status struct {
	Code      string   `xml:"code,attr"`
	Timestamp float64  `xml:"timestamp,attr"`
	Progress  float64  `xml:"progress"`
	Messages  []string `xml:"messages>message"`
}

type Runner struct {
	io            deviceio.IO
	stagingFolder string
	statusPath    string
	log           logger.Logger

	// WatchdogTimeout fails the operation when no progress is observed
	// within the interval; it re-arms on every progress update.
	WatchdogTimeout time.Duration
	PollInterval    time.Duration
}

func NewRunner(deviceIO deviceio.IO, stagingFolder, statusPath string) *Runner {
	return &Runner{
		io:              deviceIO,
		stagingFolder:   stagingFolder,
		statusPath:      statusPath,
		log:             logger.New(),
		WatchdogTimeout: 10 * time.Second,
		PollInterval:    100 * time.Millisecond,
	}
}

// Stage writes the rendered command into the staging folder under a
// temporary name and renames it into place.
func (r *Runner) Stage(ctx context.Context, cmd *Command) error {
	r.log.Debug("staging command file", logger.Data{"command": cmd.Name, "id": cmd.ID})

	body, err := cmd.Render()
	if err != nil {
		return err
	}

	if err := r.io.Write(ctx, body, cmd.TempName(r.stagingFolder)); err != nil {
		return err
	}
	return r.io.Rename(ctx, cmd.TempName(r.stagingFolder), cmd.StagedName(r.stagingFolder))
}

// WaitForCompletion polls the status document until the device reports a
// terminal code. The device creates the document on receipt of the command
// and increments its progress fraction from 0.0 to 1.0. The status
// artifact is removed before any error is surfaced.
func (r *Runner) WaitForCompletion(ctx context.Context, commandName string) error {
	r.log.Debug("waiting for command completion", logger.Data{"command": commandName, "status": r.statusPath})

	deadline := time.Now().Add(r.WatchdogTimeout)

	// Wait for the device to acknowledge the command by creating the
	// status document.
	for {
		exists, err := r.io.Exists(ctx, r.statusPath)
		if err != nil {
			return err
		}
		if exists {
			break
		}
		if time.Now().After(deadline) {
			return errcodes.OperationTimedOut(commandName)
		}
		if err := r.sleep(ctx, commandName); err != nil {
			return err
		}
	}

	// Monitor progress until a terminal code appears.
	deadline = time.Now().Add(r.WatchdogTimeout)
	lastTimestamp := 0.0
	for {
		if time.Now().After(deadline) {
			r.removeStatus(ctx)
			return errcodes.OperationTimedOut(commandName)
		}

		st, err := r.readStatus(ctx)
		if err != nil {
			// The device may be mid-write; retry on the next poll.
			if err := r.sleep(ctx, commandName); err != nil {
				return err
			}
			continue
		}

		if st.Timestamp != lastTimestamp {
			lastTimestamp = st.Timestamp
			r.log.Debug("command progress", logger.Data{
				"command":  commandName,
				"code":     st.Code,
				"progress": st.Progress,
			})
			// Observed progress re-arms the watchdog.
			deadline = time.Now().Add(r.WatchdogTimeout)
		}

		code, err := strconv.Atoi(st.Code)
		if err != nil {
			code = StatusInProgress
		}
		if code == StatusInProgress {
			if err := r.sleep(ctx, commandName); err != nil {
				return err
			}
			continue
		}

		r.removeStatus(ctx)
		if code != StatusSuccess {
			return errcodes.CommandFailed(commandName, code, st.Messages)
		}

		r.log.Debug("command complete", logger.Data{"command": commandName})
		return nil
	}
}

// Run stages a command and waits for it to complete.
func (r *Runner) Run(ctx context.Context, cmd *Command) error {
	if err := r.Stage(ctx, cmd); err != nil {
		return err
	}
	return r.WaitForCompletion(ctx, cmd.Name)
}

func (r *Runner) readStatus(ctx context.Context) (*status, error) {
	data, err := r.io.Read(ctx, r.statusPath)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	st := &status{}
	if err := xml.Unmarshal(data, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (r *Runner) removeStatus(ctx context.Context) {
	if err := r.io.Remove(ctx, r.statusPath); err != nil {
		r.log.Err(err).Warn("can't remove status artifact")
	}
}

func (r *Runner) sleep(ctx context.Context, commandName string) error {
	select {
	case <-ctx.Done():
		return errcodes.Aborted(commandName)
	case <-time.After(r.PollInterval):
		return nil
	}
}
