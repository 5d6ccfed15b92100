package errors

import (
	"github.com/sirupsen/logrus"
)

// LogError logs an error on the given logger with the AppError's code,
// retryability and context attached as structured fields.
func LogError(logger *logrus.Logger, err error, message string) {
	entryFor(logger, err).Error(message)
}

// LogRetryableError logs a retryable error at warn level, non-retryable
// at error level.
func LogRetryableError(logger *logrus.Logger, err error, message string) {
	if IsRetryable(err) {
		entryFor(logger, err).Warn(message)
	} else {
		entryFor(logger, err).Error(message)
	}
}

func entryFor(logger *logrus.Logger, err error) *logrus.Entry {
	entry := logger.WithError(err)

	if appErr, ok := err.(*AppError); ok {
		entry = entry.WithFields(logrus.Fields{
			"error_code": appErr.Code,
			"retryable":  appErr.Retryable,
		})
		for k, v := range appErr.Context {
			entry = entry.WithField(k, v)
		}
	}

	return entry
}
