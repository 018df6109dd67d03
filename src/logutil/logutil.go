package logutil

import (
	"fmt"
	"io"
	"log"
	"strings"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const (
	logFileName = "intake_ocr_debug.log"
	maxSizeMB   = 10
	maxArchives = 3
)

var fileWriter *lumberjack.Logger

// Setup enables file logging with size-based rotation (10MB, max 3 archives).
// When disabled, logs are discarded to keep stdout clean.
func Setup(enableFileLogging bool) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if !enableFileLogging {
		log.SetOutput(io.Discard)
		return
	}
	fileWriter = &lumberjack.Logger{
		Filename:   logFileName,
		MaxSize:    maxSizeMB,
		MaxBackups: maxArchives,
		MaxAge:     28,
	}
	log.SetOutput(fileWriter)
}

// Close flushes and closes the rotating log file, if one is open.
func Close() error {
	if fileWriter == nil {
		return nil
	}
	err := fileWriter.Close()
	fileWriter = nil
	return err
}

// RedactKey masks an API key, leaving first/last 4 chars: xxxx...yyyy
func RedactKey(k string) string {
	if len(k) <= 8 {
		return "********"
	}
	return fmt.Sprintf("%s...%s", k[:4], k[len(k)-4:])
}

// Sanitize bounds text to maxLen bytes and escapes control characters so
// extracted patient text cannot forge log lines.
func Sanitize(text string, maxLen int) string {
	truncated := false
	if maxLen > 0 && len(text) > maxLen {
		text = text[:maxLen]
		truncated = true
	}

	var b strings.Builder
	for _, r := range text {
		switch {
		case r == '\n' || r == '\r':
			b.WriteString("\\n")
		case r == '\t':
			b.WriteString("\\t")
		case r < 32 || r == 127:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	if truncated {
		b.WriteString("...")
	}
	return b.String()
}
