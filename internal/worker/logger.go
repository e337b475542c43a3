package worker

import (
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/jwalitptl/chairside/pkg/logger"
)

var _ asynq.Logger = (*QueueLogger)(nil)

// QueueLogger routes asynq's internal logging through the service logger.
type QueueLogger struct {
	log *logger.Logger
}

func NewQueueLogger(log *logger.Logger) *QueueLogger {
	if log == nil {
		log = logger.Nop()
	}
	return &QueueLogger{log: log.WithFields(map[string]interface{}{"component": "asynq"})}
}

func (l *QueueLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l *QueueLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l *QueueLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l *QueueLogger) Error(args ...interface{}) { l.log.Error(nil, fmt.Sprint(args...)) }

// Fatal is only called by asynq when it cannot continue.
func (l *QueueLogger) Fatal(args ...interface{}) { l.log.Fatal(nil, fmt.Sprint(args...)) }
