package log

import (
	"fmt"
	"strings"
)

type LogLevel int

const (
	Debug LogLevel = iota
	Info
	Warn
	Error
	Fatal
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l LogLevel) String() string {
	if l < Debug || l > Fatal {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// Parse maps a configured level name onto a LogLevel. An empty name is Info.
func Parse(level string) (LogLevel, error) {
	name := strings.ToUpper(strings.TrimSpace(level))
	switch name {
	case "":
		return Info, nil
	case "TRACE":
		return Debug, nil
	case "WARNING":
		return Warn, nil
	}

	for i, n := range levelNames {
		if n == name {
			return LogLevel(i), nil
		}
	}

	return Info, fmt.Errorf("log: invalid log level '%s'", level)
}
