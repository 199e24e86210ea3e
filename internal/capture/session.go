// Package capture owns the scanning device and turns its frames into codes.
package capture

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"syscall"
)

// Opener acquires the scanning device
type Opener func(ctx context.Context) (io.ReadCloser, error)

// DeviceOpener opens a character device, FIFO or file that emits one code per line.
// The descriptor is non-blocking so closing it interrupts a pending read.
func DeviceOpener(path string) Opener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		return os.OpenFile(path, os.O_RDONLY|syscall.O_NONBLOCK, 0)
	}
}

// Session runs at most one capture at a time
type Session struct {
	open    Opener
	decoder Decoder

	mu  sync.Mutex
	cur *run
}

type run struct {
	dev io.ReadCloser

	mu       sync.Mutex
	released bool
}

// release closes the device once; it reports whether this call did it
func (r *run) release() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return false
	}
	r.released = true
	if err := r.dev.Close(); err != nil {
		slog.Warn("Failed to release capture device", "err", err)
	}
	return true
}

func (r *run) active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.released
}

// NewSession creates a capture session. A nil opener gives a manual-entry only
// station where Start never acquires anything.
func NewSession(open Opener, decoder Decoder) *Session {
	if decoder == nil {
		decoder = LineDecoder{}
	}
	return &Session{open: open, decoder: decoder}
}

// Start acquires the device and calls onDecoded with the first code read.
// The device is released before onDecoded runs.
func (s *Session) Start(ctx context.Context, onDecoded func(code string)) error {
	s.Stop()
	if s.open == nil {
		return nil
	}

	dev, err := s.open(ctx)
	if err != nil {
		return err
	}

	r := &run{dev: dev}
	s.mu.Lock()
	s.cur = r
	s.mu.Unlock()

	slog.Debug("Capture started")
	go s.read(r, onDecoded)
	return nil
}

// Stop releases the device. It is safe to call when nothing is running.
func (s *Session) Stop() {
	s.mu.Lock()
	r := s.cur
	s.cur = nil
	s.mu.Unlock()

	if r != nil && r.release() {
		slog.Debug("Capture stopped")
	}
}

// Active reports whether the device is currently held
func (s *Session) Active() bool {
	s.mu.Lock()
	r := s.cur
	s.mu.Unlock()
	return r != nil && r.active()
}

// Manual reports whether the session has no device
func (s *Session) Manual() bool {
	return s.open == nil
}

func (s *Session) read(r *run, onDecoded func(string)) {
	scanner := bufio.NewScanner(r.dev)
	for scanner.Scan() {
		code, ok := s.decoder.Decode(scanner.Bytes())
		if !ok {
			continue
		}
		if !r.release() {
			return
		}
		slog.Debug("Code decoded", "length", len(code))
		onDecoded(code)
		return
	}

	if r.release() {
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		if !errors.Is(err, os.ErrClosed) {
			slog.Warn("Capture device stopped delivering frames", "err", err)
		}
	}
}
