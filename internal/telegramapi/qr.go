package telegramapi

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// InviteQR renders the channel invite link as a QR code PNG, used on the
// gate prompt so the link can be scanned from another device.
func InviteQR(link string) ([]byte, error) {
	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to encode invite QR: %w", err)
	}
	return png, nil
}
