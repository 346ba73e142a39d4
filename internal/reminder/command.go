package reminder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Default and max timeout for alert commands.
const (
	DefaultCommandTimeout = 10 * time.Second
	MaxCommandTimeout     = time.Minute
)

// CommandNotifier runs a shell command for each alert, such as a desktop
// notifier. The alert is passed in QUADRANT_ALERT_TITLE, QUADRANT_ALERT_BODY
// and QUADRANT_ALERT_KEY.
type CommandNotifier struct {
	Command string
	Timeout time.Duration
}

// RequestPermission grants alerts when a command is configured.
func (n CommandNotifier) RequestPermission(context.Context) (bool, error) {
	return strings.TrimSpace(n.Command) != "", nil
}

// Show runs the command via "sh -c". A failing command's output is part of
// the returned error.
func (n CommandNotifier) Show(ctx context.Context, a Alert) error {
	timeout := n.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	timeout = min(timeout, MaxCommandTimeout)

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "sh", "-c", n.Command) //nolint:gosec // the command comes from the user's own configuration
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	// Inherit process environment and overlay the alert.
	cmd.Env = append(os.Environ(),
		"QUADRANT_ALERT_TITLE="+a.Title,
		"QUADRANT_ALERT_BODY="+a.Body,
		"QUADRANT_ALERT_KEY="+a.Key,
	)
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(out.String()); msg != "" {
			return fmt.Errorf("alert command: %w: %s", err, msg)
		}
		return fmt.Errorf("alert command: %w", err)
	}
	return nil
}

// Multi fans alerts out to several notifiers. Permission is granted when any
// notifier grants it, and alerts go to the granting notifiers only.
type Multi struct {
	notifiers []Notifier

	mu      sync.Mutex
	granted []Notifier
}

func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) RequestPermission(ctx context.Context) (bool, error) {
	var (
		granted []Notifier
		errs    []error
	)
	for _, n := range m.notifiers {
		ok, err := n.RequestPermission(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			granted = append(granted, n)
		}
	}
	m.mu.Lock()
	m.granted = granted
	m.mu.Unlock()
	if len(granted) > 0 {
		return true, nil
	}
	return false, errors.Join(errs...)
}

func (m *Multi) Show(ctx context.Context, a Alert) error {
	m.mu.Lock()
	granted := m.granted
	m.mu.Unlock()
	var errs []error
	for _, n := range granted {
		if err := n.Show(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
