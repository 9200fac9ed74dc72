package logger

import (
	"github.com/sirupsen/logrus"
)

var Log *logrus.Logger

// Init инициализирует структурированный логгер.
func Init(level string) {
	Log = logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	// Используем JSON формат для production, text для development
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// SetTextFormatter устанавливает текстовый формат логов (для development).
func SetTextFormatter() {
	if Log != nil {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
}

// Get возвращает глобальный логгер; если Init не вызывался (тесты),
// отдаёт стандартный логгер logrus.
func Get() *logrus.Logger {
	if Log != nil {
		return Log
	}
	return logrus.StandardLogger()
}

// ForActor - логгер с полем actor_id.
func ForActor(actorID int64) *logrus.Entry {
	return Get().WithField("actor_id", actorID)
}
