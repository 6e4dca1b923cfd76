package tenant

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// qrSize is the rendered symbol edge in pixels. 512px keeps the
// encrypted payload reliably scannable by phone cameras.
const qrSize = 512

// RenderQR encodes the opaque payload string as a PNG QR symbol.
// Medium error correction balances symbol density against the payload
// size of a typical encrypted backend config (up to ~2 KB).
func RenderQR(opaque string) ([]byte, error) {
	png, err := qrcode.Encode(opaque, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}
	return png, nil
}
