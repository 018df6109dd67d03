//go:build !windows

package main

import (
	"log"

	"dental-intake-ocr/src/screenshot"
)

func enableDPIAwareness() {}

func logMonitorConfiguration() {
	b, err := screenshot.GetDisplayBounds()
	if err != nil {
		log.Printf("MONITOR: %v", err)
		return
	}
	log.Printf("MONITOR: primary display %v", b)
}
