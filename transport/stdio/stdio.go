// Package stdio provides a protocol.Transport implementation that speaks
// newline-delimited JSON-RPC over standard input/output.
package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/localrivet/gomcp/internal/logx"
)

// Transport implements protocol.Transport using stdin/stdout. Recv is only
// ever called from the engine's single read loop; Send is safe for
// concurrent use.
type Transport struct {
	reader     io.Reader
	writer     io.Writer
	writeMutex sync.Mutex
	logger     logx.Logger

	closeMutex sync.Mutex
	closed     bool

	rawReader io.Reader
	rawWriter io.Writer

	scanner     *bufio.Scanner
	scannerOnce sync.Once
}

// New creates a Transport over os.Stdin/os.Stdout.
func New(logger logx.Logger) *Transport {
	return NewWithReadWriter(os.Stdin, os.Stdout, logger)
}

// NewWithReadWriter creates a Transport over the given reader/writer pair,
// letting tests substitute pipes for the real stdin/stdout.
func NewWithReadWriter(reader io.Reader, writer io.Writer, logger logx.Logger) *Transport {
	if logger == nil {
		logger = logx.NewDefault()
	}

	rawWriter := writer
	if f, ok := writer.(*os.File); ok && (f == os.Stdout || f == os.Stderr) {
		writer = bufio.NewWriter(writer)
	}

	return &Transport{
		reader:    reader,
		writer:    writer,
		logger:    logger,
		rawReader: reader,
		rawWriter: rawWriter,
	}
}

// Send writes data as a single newline-terminated line to the writer.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	t.closeMutex.Lock()
	closed := t.closed
	t.closeMutex.Unlock()
	if closed {
		return fmt.Errorf("stdio: transport is closed")
	}

	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	line := bytes.TrimRight(data, "\n")
	line = append(line, '\n')

	if _, err := t.writer.Write(line); err != nil {
		if errors.Is(err, io.ErrClosedPipe) || strings.Contains(err.Error(), "pipe closed") {
			t.logger.Warn("stdio: write to closed pipe", "err", err)
			_ = t.Close()
			return err
		}
		t.logger.Error("stdio: write failed", "err", err)
		return fmt.Errorf("stdio: write message: %w", err)
	}

	if flusher, ok := t.writer.(interface{ Flush() error }); ok {
		if err := flusher.Flush(); err != nil {
			t.logger.Warn("stdio: flush failed", "err", err)
		}
	}
	return nil
}

// Recv blocks until the next newline-delimited JSON message arrives, the
// context is cancelled, or the stream is closed. Lines that fail basic JSON
// validation are skipped rather than surfaced as a fatal error, so one
// malformed line from a misbehaving peer doesn't tear down the connection.
func (t *Transport) Recv(ctx context.Context) ([]byte, error) {
	t.closeMutex.Lock()
	closed := t.closed
	t.closeMutex.Unlock()
	if closed {
		return nil, fmt.Errorf("stdio: transport is closed")
	}

	t.scannerOnce.Do(func() {
		t.scanner = bufio.NewScanner(t.reader)
		t.scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	})

	type result struct {
		data []byte
		err  error
	}
	resultChan := make(chan result, 1)

	go func() {
		for t.scanner.Scan() {
			line := t.scanner.Bytes()
			lineCopy := make([]byte, len(line))
			copy(lineCopy, line)

			if !json.Valid(lineCopy) {
				t.logger.Error("stdio: skipping invalid JSON line", "line", string(lineCopy))
				continue
			}
			resultChan <- result{data: lineCopy}
			return
		}
		if err := t.scanner.Err(); err != nil {
			resultChan <- result{err: fmt.Errorf("stdio: read message: %w", err)}
			return
		}
		resultChan <- result{err: io.EOF}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		return res.data, res.err
	}
}

// Close closes the underlying reader/writer where they support io.Closer.
func (t *Transport) Close() error {
	t.closeMutex.Lock()
	defer t.closeMutex.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	var firstErr error
	if closer, ok := t.rawWriter.(io.Closer); ok {
		if err := closer.Close(); err != nil && !isClosedPipeErr(err) {
			firstErr = err
		}
	}
	if closer, ok := t.rawReader.(io.Closer); ok {
		if err := closer.Close(); err != nil && !isClosedPipeErr(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func isClosedPipeErr(err error) bool {
	return errors.Is(err, io.ErrClosedPipe) || strings.Contains(err.Error(), "pipe closed")
}
