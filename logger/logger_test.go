package logger

import "testing"

func TestDefaultLoggerImplementsInterface(t *testing.T) {
	var _ Interface = DefaultLogger
	DefaultLogger.Printf("test message %d", 1)
	DefaultLogger.Println("test message")
}
