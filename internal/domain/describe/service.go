package describe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"caption-server-go/internal/domain/caption"
	"caption-server-go/internal/domain/eventbus"
	"caption-server-go/internal/domain/fetch"
	domainimage "caption-server-go/internal/domain/image"
	"caption-server-go/internal/domain/safety"
	"caption-server-go/internal/platform/logging"
	"caption-server-go/internal/platform/observability"
)

// AddressChecker classifies the target host.
type AddressChecker interface {
	Check(ctx context.Context, host string) safety.Result
}

// Fetcher downloads the image bytes.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Payload, error)
	MaxBytes() int64
}

// Decoder turns bytes into an RGB image.
type Decoder interface {
	Decode(ctx context.Context, data []byte) (*domainimage.Decoded, error)
}

// Publisher receives one event per finished request.
type Publisher interface {
	PublishAsync(topic string, args ...interface{})
}

// Options wires the collaborators. Publisher and Logger are optional.
type Options struct {
	Checker   AddressChecker
	Fetcher   Fetcher
	Decoder   Decoder
	Engine    caption.Engine
	Publisher Publisher
	Logger    *logging.Logger
}

// Service runs Validate, CheckAddressSafety, Fetch, DecodeImage and Caption
// in order and stops at the first failure.
type Service struct {
	checker   AddressChecker
	fetcher   Fetcher
	decoder   Decoder
	engine    caption.Engine
	publisher Publisher
	logger    *logging.Logger
}

func NewService(opts Options) (*Service, error) {
	if opts.Checker == nil || opts.Fetcher == nil || opts.Decoder == nil || opts.Engine == nil {
		return nil, fmt.Errorf("describe service requires checker, fetcher, decoder and engine")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Service{
		checker:   opts.Checker,
		fetcher:   opts.Fetcher,
		decoder:   opts.Decoder,
		engine:    opts.Engine,
		publisher: opts.Publisher,
		logger:    opts.Logger,
	}, nil
}

// Describe returns a caption for the image at rawURL. Every failure is a *Error.
func (s *Service) Describe(ctx context.Context, rawURL string) (description string, err error) {
	start := time.Now()
	ev := eventbus.DescribeEventData{
		RequestID: RequestIDFrom(ctx),
		ImageURL:  rawURL,
		Engine:    s.engine.Name(),
	}

	defer func() {
		if r := recover(); r != nil {
			err = newError(KindInternal, DetailInternalError, fmt.Errorf("panic: %v", r))
		}
		s.finish(ev, start, description, err)
	}()

	u, err := ValidateURL(rawURL)
	if err != nil {
		return "", err
	}
	ev.Host = u.Hostname()

	if res := s.checker.Check(ctx, u.Hostname()); res.Unsafe() {
		return "", newError(KindForbiddenTarget, DetailForbidden, res.Err)
	}

	payload, err := s.fetcher.Fetch(ctx, u.String())
	if err != nil {
		return "", s.classifyFetch(err)
	}
	ev.Bytes = len(payload.Data)

	decoded, err := s.decoder.Decode(ctx, payload.Data)
	if err != nil {
		return "", newError(KindDecode, DetailInternalError, err)
	}
	ev.Format, ev.Width, ev.Height = decoded.Format, decoded.Width, decoded.Height

	text, err := s.engine.Caption(ctx, decoded.Image)
	if err != nil {
		return "", newError(KindCaption, DetailInternalError, err)
	}
	return text, nil
}

func (s *Service) classifyFetch(err error) error {
	var fe *fetch.Error
	if !errors.As(err, &fe) {
		return newError(KindFetchFailed, DetailFetchFailed, err)
	}
	switch fe.Kind {
	case fetch.KindUpstreamStatus:
		return newError(KindUpstreamStatus, DetailFetchFailed, err)
	case fetch.KindPayloadTooLarge:
		return newError(KindPayloadTooLarge, TooLargeDetail(s.fetcher.MaxBytes()), err)
	case fetch.KindForbidden:
		return newError(KindForbiddenTarget, DetailForbidden, err)
	default:
		return newError(KindFetchFailed, DetailFetchFailed, err)
	}
}

func (s *Service) finish(ev eventbus.DescribeEventData, start time.Time, description string, err error) {
	ev.Duration = time.Since(start)
	ev.At = start

	if err == nil {
		ev.Outcome = "ok"
		ev.Caption = description
		s.logger.InfoTag("视觉", "描述完成: request_id=%s host=%s duration=%s", ev.RequestID, ev.Host, ev.Duration)
	} else {
		var de *Error
		if !errors.As(err, &de) {
			de = newError(KindInternal, DetailInternalError, err)
		}
		ev.Outcome = de.Kind.String()
		ev.Detail = de.Message
		if de.Kind.ClientFault() {
			s.logger.WarnTag("视觉", "请求被拒绝: request_id=%s kind=%s err=%v", ev.RequestID, de.Kind, de.Cause)
		} else {
			s.logger.ErrorTag("视觉", "描述失败: request_id=%s kind=%s err=%v", ev.RequestID, de.Kind, de.Cause)
		}
	}

	observability.RecordOutcome(ev.Outcome)
	if s.publisher != nil {
		s.publisher.PublishAsync(ev.Topic(), ev)
	}
}
