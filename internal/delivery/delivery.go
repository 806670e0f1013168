// Package delivery hands rendered digests to email and the local filesystem.
package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/interfaces"
	"github.com/bobmcallan/digest/internal/metrics"
	"github.com/bobmcallan/digest/internal/models"
)

// DeliveryError records a failed channel
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver via %s: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Channel is one delivery target
type Channel interface {
	Name() string
	// Send delivers the message and describes where it went
	Send(ctx context.Context, msg *models.Message) (string, error)
}

// Service tries every configured channel in order
type Service struct {
	channels []Channel
	metrics  *metrics.Metrics
	logger   *common.Logger
}

// NewService creates a delivery service over the given channels
func NewService(m *metrics.Metrics, logger *common.Logger, channels ...Channel) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{channels: channels, metrics: m, logger: logger}
}

// NewServiceFromConfig builds email delivery when configured, then any
// extra channels, then file delivery always
func NewServiceFromConfig(cfg *common.Config, m *metrics.Metrics, logger *common.Logger, extra ...Channel) *Service {
	var channels []Channel
	if cfg.Email.Enabled() {
		channels = append(channels, NewEmailChannel(cfg.Email))
	}
	channels = append(channels, extra...)
	channels = append(channels, NewFileChannel(cfg.Output.Dir))
	return NewService(m, logger, channels...)
}

// Deliver sends msg on every channel. It fails only when no channel
// succeeded; the error joins each channel's DeliveryError.
func (s *Service) Deliver(ctx context.Context, msg *models.Message) ([]string, error) {
	if msg == nil {
		return nil, errors.New("nothing to deliver")
	}
	if len(s.channels) == 0 {
		return nil, errors.New("no delivery channels configured")
	}

	var delivered []string
	var errs []error
	for _, ch := range s.channels {
		if err := ctx.Err(); err != nil {
			errs = append(errs, &DeliveryError{Channel: ch.Name(), Err: err})
			continue
		}
		where, err := ch.Send(ctx, msg)
		s.metrics.ObserveDelivery(ch.Name(), err)
		if err != nil {
			s.logger.Warn().Err(err).Str("channel", ch.Name()).Msg("Delivery failed")
			errs = append(errs, &DeliveryError{Channel: ch.Name(), Err: err})
			continue
		}
		s.logger.Info().Str("channel", ch.Name()).Str("target", where).Msg("Report delivered")
		delivered = append(delivered, where)
	}

	if len(delivered) == 0 {
		return nil, errors.Join(errs...)
	}
	return delivered, nil
}

var _ interfaces.Deliverer = (*Service)(nil)
