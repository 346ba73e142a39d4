package reminder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/alfredjeanlab/quadrant/internal/ui"
)

// Alert is a single local notification.
type Alert struct {
	Title string
	Body  string
	// Key deduplicates alerts on platforms that support replacing a shown
	// notification.
	Key string
}

// Notifier is the local notification primitive.
type Notifier interface {
	// RequestPermission asks whether alerts may be shown. A false result
	// silently disables reminders.
	RequestPermission(ctx context.Context) (bool, error)
	Show(ctx context.Context, a Alert) error
}

// TerminalNotifier writes alerts to a terminal, ringing the bell.
type TerminalNotifier struct {
	mu   sync.Mutex
	w    io.Writer
	bell bool
}

// NewTerminalNotifier returns a notifier writing to w. The bell is rung only
// when bell is true.
func NewTerminalNotifier(w io.Writer, bell bool) *TerminalNotifier {
	return &TerminalNotifier{w: w, bell: bell}
}

func (n *TerminalNotifier) RequestPermission(context.Context) (bool, error) { return n.w != nil, nil }

func (n *TerminalNotifier) Show(_ context.Context, a Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	prefix := ""
	if n.bell {
		prefix = "\a"
	}
	_, err := fmt.Fprintf(n.w, "%s%s %s\n", prefix, ui.RenderAccent(a.Title+":"), a.Body)
	return err
}

// LogNotifier emits alerts as log records.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) RequestPermission(context.Context) (bool, error) { return true, nil }

func (n LogNotifier) Show(_ context.Context, a Alert) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info(a.Title, "body", a.Body, "key", a.Key)
	return nil
}

// DeniedNotifier never grants permission. It is used when alerts are
// switched off.
type DeniedNotifier struct{}

func (DeniedNotifier) RequestPermission(context.Context) (bool, error) { return false, nil }
func (DeniedNotifier) Show(context.Context, Alert) error               { return nil }
