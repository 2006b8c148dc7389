package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	mcperrors "github.com/ajitpratap0/mcp-connmgr-go/pkg/errors"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/logging"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/protocol"
)

// stdioScanBuffer bounds the size of a single newline-delimited message.
const stdioScanBuffer = 1024 * 1024

// StdioTransport speaks newline-delimited JSON with a spawned subprocess
// over its stdin/stdout. stderr is drained to the logger so a chatty server
// cannot block on a full pipe.
type StdioTransport struct {
	base
	cfg    Config
	opts   Options
	logger logging.Logger

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	writeMu sync.Mutex
	group   *errgroup.Group
}

func newStdioTransport(cfg Config, opts Options) *StdioTransport {
	return &StdioTransport{
		base:   newBase(KindStdio),
		cfg:    cfg,
		opts:   opts,
		logger: opts.Logger.WithFields(logging.String("component", "StdioTransport")),
	}
}

// Connect spawns the configured command and starts the read loops.
func (t *StdioTransport) Connect(ctx context.Context) error {
	t.setState(StateConnecting)

	cmd := exec.Command(t.cfg.Command, t.cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range t.cfg.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.setState(StateError)
		return mcperrors.ConnectionFailed(string(KindStdio), t.cfg.Command, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.setState(StateError)
		return mcperrors.ConnectionFailed(string(KindStdio), t.cfg.Command, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		t.setState(StateError)
		return mcperrors.ConnectionFailed(string(KindStdio), t.cfg.Command, err)
	}

	if err := cmd.Start(); err != nil {
		t.setState(StateError)
		return mcperrors.ConnectionFailed(string(KindStdio), t.cfg.Command, err)
	}

	t.cmd = cmd
	t.stdin = stdin
	t.setState(StateConnected)

	g, _ := errgroup.WithContext(context.Background())
	t.group = g
	g.Go(func() error {
		return t.readLoop(stdout)
	})
	g.Go(func() error {
		t.drainStderr(stderr)
		return nil
	})
	g.Go(func() error {
		err := cmd.Wait()
		if err != nil && t.State() == StateConnected {
			t.goDown(mcperrors.ConnectionLost(string(KindStdio), "process_exit", err))
		} else {
			t.goDown(nil)
		}
		return nil
	})

	t.logger.Debug("subprocess started",
		logging.String("command", t.cfg.Command),
		logging.Int("pid", cmd.Process.Pid))
	return nil
}

// readLoop routes responses from the subprocess stdout to their waiters.
func (t *StdioTransport) readLoop(stdout io.Reader) error {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), stdioScanBuffer)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		data := make([]byte, len(line))
		copy(data, line)

		switch {
		case protocol.IsResponse(data):
			var resp protocol.Response
			if err := json.Unmarshal(data, &resp); err != nil {
				t.logger.Warn("dropping unparseable response", logging.ErrorField(err))
				continue
			}
			if !t.resolve(&resp) {
				t.logger.Debug("response with no pending request",
					logging.String("id", protocol.IDKey(resp.ID)))
			}
		case protocol.IsNotification(data):
			var notif protocol.Notification
			if err := json.Unmarshal(data, &notif); err == nil {
				t.logger.Debug("server notification", logging.String("method", notif.Method))
			}
		default:
			t.logger.Warn("dropping unrecognized message")
		}
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		t.goDown(mcperrors.ConnectionLost(string(KindStdio), "read_stdout", err))
		return err
	}
	t.goDown(nil)
	return nil
}

func (t *StdioTransport) drainStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 16*1024), stdioScanBuffer)
	for scanner.Scan() {
		t.logger.Debug("server stderr", logging.String("line", scanner.Text()))
	}
}

// Send writes a single message to the subprocess stdin.
func (t *StdioTransport) Send(ctx context.Context, msg protocol.Message) error {
	if err := t.requireConnected("send"); err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return mcperrors.TransportError(string(KindStdio), "marshal", err)
	}
	data = append(data, '\n')

	t.writeMu.Lock()
	_, err = t.stdin.Write(data)
	t.writeMu.Unlock()

	if err != nil {
		lost := mcperrors.ConnectionLost(string(KindStdio), "write_stdin", err)
		t.goDown(lost)
		return lost
	}
	return nil
}

// SendRequest sends a request and waits for the matching response.
func (t *StdioTransport) SendRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	ch := t.register(req.ID)
	if err := t.Send(ctx, req); err != nil {
		t.unregister(req.ID)
		return nil, err
	}
	return t.await(ctx, req.ID, ch)
}

// SendRequestWithTimeout is SendRequest bounded by a deadline.
func (t *StdioTransport) SendRequestWithTimeout(ctx context.Context, req *protocol.Request, timeout time.Duration) (*protocol.Response, error) {
	return sendRequestWithTimeout(ctx, t, req, timeout)
}

// Disconnect closes stdin, kills the subprocess and fails all waiters.
func (t *StdioTransport) Disconnect(ctx context.Context) error {
	t.setState(StateClosing)

	if t.stdin != nil {
		_ = t.stdin.Close()
	}
	if t.cmd != nil && t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}
	t.goDown(nil)
	if t.group != nil {
		_ = t.group.Wait()
	}

	t.setState(StateDisconnected)
	return nil
}
