package log

const colorReset = "\033[0m"

var palette = map[LogLevel]string{
	Debug: "\033[34m",
	Info:  "\033[32m",
	Warn:  "\033[33m",
	Error: "\033[31m",
	Fatal: "\033[35m",
}

// Color returns the terminal escape sequence used to highlight level.
func Color(l LogLevel) string {
	if c, ok := palette[l]; ok {
		return c
	}
	return colorReset
}
