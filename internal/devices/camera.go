package devices

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"

	"crossdock/internal/logging"
	"crossdock/internal/session"
	"crossdock/internal/token"
)

// Camera pumps a line-oriented decoder stream onto the scan bus. Camera
// decoders emit whole tokens, one per line, so no reassembly is needed;
// the decoder also re-emits while a barcode stays in view, which is what
// the engine's camera debounce window absorbs.
type Camera struct {
	bus    *session.Bus
	logger *slog.Logger
}

// NewCamera wires a camera pump.
func NewCamera(bus *session.Bus, logger *slog.Logger) *Camera {
	return &Camera{
		bus:    bus,
		logger: logging.NewComponentLogger(logger, "camera"),
	}
}

// Run consumes the reader until EOF or context cancellation, publishing
// one scan per non-blank line.
func (c *Camera) Run(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, open := <-lines:
			if !open {
				return <-readErr
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			c.logger.Debug("camera decode received", logging.Int("length", len(line)))
			c.bus.Publish(line, token.SourceCamera)
		}
	}
}
