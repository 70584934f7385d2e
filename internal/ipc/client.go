package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
	"time"
)

// DefaultClientTimeout bounds one forwarded command roundtrip.
const DefaultClientTimeout = 220 * time.Millisecond

// CommandError is a session's refusal of a well-formed command, as opposed
// to a transport failure.
type CommandError struct {
	Command string
	State   string
	Reason  string
}

func (e *CommandError) Error() string {
	return e.Reason
}

// Client forwards control commands to the session owning the socket at Path.
type Client struct {
	Path    string
	Timeout time.Duration
}

func (c Client) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultClientTimeout
	}
	return c.Timeout
}

// Do sends command and returns the session's response. Transport failures
// are wrapped so Unreachable can tell a missing session from a broken one;
// a rejected command yields *CommandError alongside the response.
func (c Client) Do(ctx context.Context, command string) (Response, error) {
	if !IsCommand(command) {
		return Response{}, fmt.Errorf("unknown control command %q", command)
	}
	resp, err := Send(ctx, c.Path, NewRequest(command), c.timeout())
	if err != nil {
		return Response{}, fmt.Errorf("forward command %q: %w", command, err)
	}
	if !resp.OK {
		reason := resp.Error
		if reason == "" {
			reason = fmt.Sprintf("%s rejected during %s", command, resp.State)
		}
		return resp, &CommandError{Command: command, State: resp.State, Reason: reason}
	}
	return resp, nil
}

// Status fetches the session state and decodes its snapshot into out when
// the session sent one.
func (c Client) Status(ctx context.Context, out any) (Response, error) {
	resp, err := c.Do(ctx, CommandStatus)
	if err != nil {
		return resp, err
	}
	if out != nil && len(resp.Snapshot) > 0 {
		if err := resp.DecodeSnapshot(out); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

// Send performs one JSON-line request/response roundtrip with a deadline.
func Send(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return Response{}, fmt.Errorf("set deadline: %w", err)
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if req.ID != "" && resp.ID != "" && resp.ID != req.ID {
		return Response{}, fmt.Errorf("response id %q does not match request %q", resp.ID, req.ID)
	}
	return resp, nil
}

// Probe reports whether a session currently answers on path.
func Probe(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	_, err := Send(ctx, path, NewRequest(CommandStatus), timeout)
	switch {
	case err == nil:
		return true, nil
	case Unreachable(err):
		return false, nil
	default:
		return false, fmt.Errorf("probe socket: %w", err)
	}
}

// Unreachable reports dial failures that mean no session owns the socket:
// the file is gone or nothing listens on it.
func Unreachable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		strings.Contains(err.Error(), "no such file or directory")
}
