package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/aretw0/mesa/pkg/ports"
)

// ErrChannelNotRegistered is returned for a notification on a channel with no command.
var ErrChannelNotRegistered = errors.New("notification channel not registered")

// DefaultTimeout bounds one command run when WithTimeout is not used.
const DefaultTimeout = 10 * time.Second

// Notifier implements ports.Notifier by running local processes.
// Only registered commands run (allow-list); notification fields never become command arguments.
type Notifier struct {
	registry map[string]RegisteredProcess
	baseDir  string
	timeout  time.Duration
}

// RegisteredProcess defines an allowed command execution.
type RegisteredProcess struct {
	Command string
	Args    []string
	Env     map[string]string
}

// NotifierOption configures the notifier.
type NotifierOption func(*Notifier)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(channels map[string]ProcessConfig) NotifierOption {
	return func(n *Notifier) {
		for name, c := range channels {
			n.registry[name] = RegisteredProcess{Command: c.Command, Args: c.Args, Env: c.Environment}
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) NotifierOption {
	return func(n *Notifier) {
		n.baseDir = dir
	}
}

// WithTimeout bounds each command run.
func WithTimeout(d time.Duration) NotifierOption {
	return func(n *Notifier) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// NewNotifier creates a new process notifier.
func NewNotifier(opts ...NotifierOption) *Notifier {
	n := &Notifier{
		registry: make(map[string]RegisteredProcess),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Register adds a trusted command for channel.
func (n *Notifier) Register(channel string, command string, args ...string) {
	n.registry[channel] = RegisteredProcess{
		Command: command,
		Args:    args,
	}
}

var _ ports.Notifier = (*Notifier)(nil)

// Notify runs the command registered for the notification channel.
// The notification is passed as MESA_NOTIFY_* environment variables and as JSON on stdin.
func (n *Notifier) Notify(ctx context.Context, note ports.Notification) error {
	proc, ok := n.registry[note.Channel]
	if !ok {
		return fmt.Errorf("%w: %s", ErrChannelNotRegistered, note.Channel)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = n.baseDir

	env := []string{
		"MESA_NOTIFY_CHANNEL=" + note.Channel,
		"MESA_NOTIFY_TO=" + note.To,
		"MESA_NOTIFY_BODY=" + note.Body,
	}
	for k, v := range proc.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = append(cmd.Environ(), env...)

	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	cmd.Stdin = bytes.NewReader(payload)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s command failed: %w. Stderr: %s", note.Channel, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
