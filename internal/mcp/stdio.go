// ABOUTME: Newline-delimited JSON-RPC transport over a byte stream such as stdin/stdout.
// ABOUTME: Processes one message at a time and flushes after every response line.

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ErrStdioClosed is returned by Serve after Shutdown.
var ErrStdioClosed = errors.New("stdio transport closed")

// StdioConfig holds configuration for the stdio transport.
type StdioConfig struct {
	Dispatcher *Dispatcher
	Logger     *slog.Logger
	// MaxMessageBytes caps the size of one input line. Defaults to MaxRequestBodySize.
	MaxMessageBytes int
}

// StdioServer serves a single client over a pair of streams. The whole stream
// is one session.
type StdioServer struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
	maxBytes   int
	session    *Session

	// mu is held while a message is dispatched and its response written.
	mu     sync.Mutex
	closed bool
}

// NewStdioServer creates a stdio transport.
func NewStdioServer(cfg StdioConfig) (*StdioServer, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBytes := cfg.MaxMessageBytes
	if maxBytes <= 0 {
		maxBytes = MaxRequestBodySize
	}

	return &StdioServer{
		dispatcher: cfg.Dispatcher,
		logger:     logger.With("component", "stdio"),
		maxBytes:   maxBytes,
		session:    NewSession(),
	}, nil
}

// Session returns the session state of this stream.
func (s *StdioServer) Session() *Session {
	return s.session
}

// Serve reads messages from r and writes responses to w until r is exhausted
// or ctx is cancelled. The next line is read only after the previous response
// has been flushed. Returns nil on EOF and ErrStdioClosed after Shutdown.
func (s *StdioServer) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)

	s.logger.Info("stdio transport ready", "max_message_bytes", s.maxBytes)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, tooLarge, readErr := s.readLine(br)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("reading input: %w", readErr)
		}

		if err := s.handle(ctx, bw, line, tooLarge); err != nil {
			return err
		}

		if errors.Is(readErr, io.EOF) {
			s.logger.Info("input closed, stopping stdio transport")
			return nil
		}
	}
}

// readLine reads through the next newline. Lines longer than the limit are
// drained and reported as too large without being buffered.
func (s *StdioServer) readLine(br *bufio.Reader) ([]byte, bool, error) {
	var buf []byte
	tooLarge := false
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLarge {
			if len(buf)+len(bytes.TrimRight(chunk, "\r\n")) > s.maxBytes {
				tooLarge = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return buf, tooLarge, err
	}
}

// handle dispatches one line and writes its response. Lines read after
// Shutdown are dropped unanswered.
func (s *StdioServer) handle(ctx context.Context, bw *bufio.Writer, line []byte, tooLarge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStdioClosed
	}

	var resp *JSONRPCResponse
	switch {
	case tooLarge:
		s.logger.Warn("rejected oversized message", "limit", s.maxBytes)
		resp = errorResponse(nil, JSONRPCInvalidRequest, "message too large")
	default:
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 {
			resp = s.dispatcher.HandleMessage(ctx, s.session, trimmed)
		}
	}

	if resp == nil {
		return nil
	}
	return s.writeResponse(bw, resp)
}

// Shutdown stops dispatching new messages and waits for the message in flight,
// if any, to be answered. A read blocked on the input stream is not
// interrupted; Serve returns ErrStdioClosed once that read completes.
func (s *StdioServer) Shutdown(ctx context.Context) error {
	idle := make(chan struct{})
	go func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(idle)
	}()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *StdioServer) writeResponse(bw *bufio.Writer, resp *JSONRPCResponse) error {
	data, err := encodeResponse(resp)
	if err != nil {
		s.logger.Error("failed to encode response", "error", err)
		data, _ = encodeResponse(errorResponse(resp.ID, JSONRPCInternalError, "internal error"))
	}
	data = append(data, '\n')
	if _, err := bw.Write(data); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing response: %w", err)
	}
	return nil
}
