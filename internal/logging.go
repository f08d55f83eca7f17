package internal

import (
	"log"
	"os"
)

func NewLogger(component string) *log.Logger {
	prefix := "pipehooks"
	if component != "" {
		prefix = prefix + "/" + component
	}
	return log.New(os.Stdout, prefix+" ", log.LstdFlags|log.Lmicroseconds)
}

// WithRequestID derives a logger whose lines carry the delivery's request ID,
// so one delivery's trail can be grepped out of interleaved output.
func WithRequestID(logger *log.Logger, id string) *log.Logger {
	if logger == nil {
		logger = log.Default()
	}
	if id == "" {
		return logger
	}
	return log.New(logger.Writer(), logger.Prefix()+"["+id+"] ", logger.Flags())
}
