package service

import (
	"bytes"
	"context"
	"fmt"

	clamd "github.com/dutchcoders/go-clamd"
	"go.uber.org/zap"
)

// ClamAVScanner streams file uploads to a clamd daemon.
type ClamAVScanner struct {
	client *clamd.Clamd
	logger *zap.Logger
}

// NewClamAVScanner connects lazily; address is e.g. tcp://localhost:3310.
func NewClamAVScanner(address string, logger *zap.Logger) *ClamAVScanner {
	return &ClamAVScanner{client: clamd.NewClamd(address), logger: logger}
}

// Ping checks that clamd answers.
func (s *ClamAVScanner) Ping() error {
	return s.client.Ping()
}

// Scan returns a ValidationError wrapping ErrInfected when clamd reports a
// signature, and a plain error when the scan itself fails.
func (s *ClamAVScanner) Scan(ctx context.Context, data []byte) error {
	abort := make(chan bool, 1)
	stop := context.AfterFunc(ctx, func() { abort <- true })
	defer stop()

	results, err := s.client.ScanStream(bytes.NewReader(data), abort)
	if err != nil {
		return fmt.Errorf("clamav: scan: %w", err)
	}

	var scanErr error
	for res := range results {
		switch res.Status {
		case clamd.RES_FOUND:
			s.logger.Warn("upload rejected by virus scan", zap.String("signature", res.Description))
			scanErr = &ValidationError{Message: "File rejected by virus scan", Err: ErrInfected}
		case clamd.RES_ERROR, clamd.RES_PARSE_ERROR:
			if scanErr == nil {
				scanErr = fmt.Errorf("clamav: %s", res.Description)
			}
		}
	}
	if scanErr == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return scanErr
}
