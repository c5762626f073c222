package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"log/slog"

	"github.com/ryanshannon/speech-to-text/internal/types"
)

const iconSize = 22

var statusColors = map[types.Status]color.NRGBA{
	types.StatusIdle:       {R: 0x9e, G: 0x9e, B: 0x9e, A: 0xff},
	types.StatusReady:      {R: 0x34, G: 0xc7, B: 0x59, A: 0xff},
	types.StatusRecording:  {R: 0xe5, G: 0x3e, B: 0x3e, A: 0xff},
	types.StatusProcessing: {R: 0xf5, G: 0xa6, B: 0x23, A: 0xff},
}

// statusIcons renders one PNG dot per status so the tray needs no bundled
// assets.
func statusIcons() map[types.Status][]byte {
	icons := make(map[types.Status][]byte, len(statusColors))
	for st, c := range statusColors {
		icons[st] = dotIcon(c)
	}
	return icons
}

func dotIcon(c color.NRGBA) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	const (
		center = iconSize / 2
		radius = iconSize/2 - 3
	)
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			dx, dy := x-center, y-center
			if dx*dx+dy*dy <= radius*radius {
				img.SetNRGBA(x, y, c)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		// Encoding an in-memory NRGBA image cannot realistically fail.
		slog.Error("encode tray icon", "error", err)
		return nil
	}
	return buf.Bytes()
}
