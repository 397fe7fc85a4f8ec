package interfaces

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"fuelsite-cloud/internal/cashbox/application"
	cashbox "fuelsite-cloud/internal/cashbox/domain"
	"fuelsite-cloud/internal/platform/logging"
)

// LoggingPublisher logs session lifecycle events.
type LoggingPublisher struct {
	logger logrus.FieldLogger
}

// NewLoggingPublisher constructs a logging publisher.
func NewLoggingPublisher(logger logrus.FieldLogger) *LoggingPublisher {
	return &LoggingPublisher{logger: logging.OrDefault(logger)}
}

// PublishSessionOpened logs the event.
func (p *LoggingPublisher) PublishSessionOpened(ctx context.Context, event application.SessionOpened) error {
	_ = ctx
	if p == nil {
		return errors.New("session publisher: nil publisher")
	}
	p.logger.WithFields(logrus.Fields{
		"session_id":    event.SessionID,
		"operating_day": cashbox.FormatDay(event.OperatingDay),
		"shift_label":   event.ShiftLabel,
		"operator_id":   event.Operator.ID,
	}).Info("session opened")
	return nil
}

// PublishSessionClosed logs the event.
func (p *LoggingPublisher) PublishSessionClosed(ctx context.Context, event application.SessionClosed) error {
	_ = ctx
	if p == nil {
		return errors.New("session publisher: nil publisher")
	}
	p.logger.WithFields(logrus.Fields{
		"session_id":     event.SessionID,
		"operating_day":  cashbox.FormatDay(event.OperatingDay),
		"closing_amount": event.ClosingAmount.StringFixed(2),
		"operator_id":    event.Operator.ID,
	}).Info("session closed")
	return nil
}
