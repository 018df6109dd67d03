package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"log"
	"runtime"
	"sync"
)

const iconSize = 32

var (
	iconOnce  sync.Once
	iconBytes []byte
)

// Icon returns the tray icon: PNG, wrapped in an ICO container on Windows.
func Icon() []byte {
	iconOnce.Do(func() {
		data, err := iconPNG()
		if err != nil {
			log.Printf("tray: icon: %v", err)
			return
		}
		if runtime.GOOS == "windows" {
			data = wrapICO(data, iconSize)
		}
		iconBytes = data
	})
	return iconBytes
}

// iconPNG draws a white tooth shape on a teal disc.
func iconPNG() ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	teal := color.NRGBA{R: 0x00, G: 0x80, B: 0x80, A: 0xff}
	white := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

	c := float64(iconSize-1) / 2
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			dx, dy := float64(x)-c, float64(y)-c
			if dx*dx+dy*dy > c*c {
				continue
			}
			img.SetNRGBA(x, y, teal)
			if inTooth(x, y) {
				img.SetNRGBA(x, y, white)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// inTooth is a crown (rounded rectangle) over two roots, on a 32px grid.
func inTooth(x, y int) bool {
	switch {
	case y >= 8 && y <= 17:
		return x >= 9 && x <= 22 && !((y == 8) && (x == 9 || x == 22))
	case y >= 18 && y <= 24:
		return (x >= 10 && x <= 14) || (x >= 17 && x <= 21)
	}
	return false
}

// wrapICO embeds PNG data in a single-image ICO file.
func wrapICO(pngData []byte, size int) []byte {
	var buf bytes.Buffer
	// ICONDIR
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	// ICONDIRENTRY
	dim := byte(size)
	if size >= 256 {
		dim = 0
	}
	buf.WriteByte(dim)
	buf.WriteByte(dim)
	buf.WriteByte(0)
	buf.WriteByte(0)
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(32))
	binary.Write(&buf, binary.LittleEndian, uint32(len(pngData)))
	binary.Write(&buf, binary.LittleEndian, uint32(6+16))
	buf.Write(pngData)
	return buf.Bytes()
}
