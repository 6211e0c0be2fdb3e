package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Log writes messages to the application log instead of delivering
// them. Intended for local development where no SMTP relay exists.
type Log struct {
	logger *logrus.Logger
}

func NewLog(logger *logrus.Logger) *Log {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Log{logger: logger}
}

func (l *Log) Send(_ context.Context, to, subject, body string) error {
	l.logger.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
	}).Info("mail delivery disabled; message body follows")
	l.logger.Info(body)
	return nil
}
