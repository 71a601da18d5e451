// Package png renders registry QR payloads.
package png

import "github.com/skip2/go-qrcode"

// Qr encodes content, usually the signed QR string returned at
// registration, as a 300px PNG.
func Qr(content string) ([]byte, error) {
	return qrcode.Encode(content, qrcode.Medium, 300)
}
