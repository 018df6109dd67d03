package notification

import (
	"log"
	"unicode/utf8"

	"dental-intake-ocr/src/logutil"
)

const maxMessageLen = 300

// ShowError tells the user analysis has stopped, for example after a failed
// remote call. On Windows this is a message box; elsewhere it is logged.
func ShowError(title, message string) {
	log.Printf("%s: %s", title, logutil.Sanitize(message, maxMessageLen))
	message = truncate(message, maxMessageLen)
	go func() {
		if err := showMessageBox(title, message); err != nil {
			log.Printf("Failed to show notification: %v", err)
		}
	}()
}

// truncate cuts s to at most max bytes on a rune boundary.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
