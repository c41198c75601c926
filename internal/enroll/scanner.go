package enroll

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/makiuchi-d/gozxing"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"

	"github.com/civistrom/civid/internal/logging"
)

// State of a Scanner. A scanner is single-shot: it moves idle → capturing →
// stopped and never back.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateStopped
)

// FrameSource supplies camera frames. Implementations should block until a
// frame is available or ctx is done. Permission and availability failures
// are reported as common.ErrCameraPermission / common.ErrCameraUnavailable.
type FrameSource interface {
	NextFrame(ctx context.Context) (image.Image, error)
}

const defaultFrameInterval = 150 * time.Millisecond

// Scanner polls a FrameSource, decodes each frame as a QR code, and parses
// every decoded payload as an enrollment URI. Payloads that do not parse are
// ignored and polling continues. On the first valid candidate the scanner
// stops exactly once and delivers the candidate exactly once, even if
// several frames would decode in the same tick.
type Scanner struct {
	interval time.Duration
	logger   logging.Logger
	reader   gozxing.Reader

	deliver sync.Once

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithFrameInterval overrides the polling interval.
func WithFrameInterval(d time.Duration) Option {
	return func(s *Scanner) { s.interval = d }
}

func NewScanner(logger logging.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		interval: defaultFrameInterval,
		logger:   logger,
		reader:   zxqrcode.NewQRCodeReader(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current scanner state.
func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins capturing. onDetect and onError are mutually exclusive and
// each invoked at most once, from the scanner goroutine. Start on a scanner
// that is not idle does nothing.
func (s *Scanner) Start(ctx context.Context, src FrameSource, onDetect func(*Candidate), onError func(error)) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.state = StateCapturing
	s.cancel = cancel
	s.mu.Unlock()

	go s.loop(ctx, src, onDetect, onError)
}

// Stop cancels capturing and waits for the polling goroutine to exit.
// Idempotent and safe to call from idle or stopped.
func (s *Scanner) Stop() {
	s.mu.Lock()
	if s.state != StateCapturing {
		s.state = StateStopped
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	<-s.done
}

func (s *Scanner) loop(ctx context.Context, src FrameSource, onDetect func(*Candidate), onError func(error)) {
	defer func() {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		close(s.done)
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, err := src.NextFrame(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				s.deliver.Do(func() { onError(err) })
				return
			}

			payload, ok := s.decodeFrame(frame)
			if !ok {
				continue
			}
			cand := ParseURI(payload)
			if cand == nil {
				// Not an enrollment payload; keep scanning.
				continue
			}

			s.deliver.Do(func() { onDetect(cand) })
			return
		}
	}
}

// decodeFrame extracts a QR payload from one frame. Decode failures are
// expected (most frames contain no code) and are not errors.
func (s *Scanner) decodeFrame(frame image.Image) (string, bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(frame)
	if err != nil {
		return "", false
	}
	result, err := s.reader.Decode(bmp, nil)
	if err != nil {
		return "", false
	}
	return result.GetText(), true
}
