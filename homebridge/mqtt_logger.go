package homebridge

import (
	"fmt"
	"log/slog"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// mqttLogger adapts slog to the paho logger interface.
type mqttLogger struct {
	logger *slog.Logger
	level  slog.Level
}

func newMqttLogger(logger *slog.Logger, level slog.Level) *mqttLogger {
	return &mqttLogger{logger: logger, level: level}
}

func (l *mqttLogger) Println(v ...any) {
	l.print(fmt.Sprint(v...))
}

func (l *mqttLogger) Printf(format string, v ...any) {
	l.print(fmt.Sprintf(format, v...))
}

func (l *mqttLogger) print(msg string) {
	switch l.level {
	case slog.LevelError:
		l.logger.Error(msg)
	case slog.LevelWarn:
		l.logger.Warn(msg)
	case slog.LevelDebug:
		l.logger.Debug(msg)
	default:
		l.logger.Info(msg)
	}
}

var pahoLogging sync.Once

// routePahoLogging sends the paho package loggers through slog. They are
// package globals, so only the first logger wins.
func routePahoLogging(logger *slog.Logger) {
	pahoLogging.Do(func() {
		mqttLog := logger.With("module", "mqtt")
		mqtt.CRITICAL = newMqttLogger(mqttLog, slog.LevelError)
		mqtt.ERROR = newMqttLogger(mqttLog, slog.LevelError)
		mqtt.WARN = newMqttLogger(mqttLog, slog.LevelWarn)
	})
}
