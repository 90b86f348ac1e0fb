package whatsapp

import (
	"encoding/base64"
	"io"

	"github.com/mdp/qrterminal/v3"
	qrCode "github.com/skip2/go-qrcode"
)

const qrImageSize = 256

// EncodeQR renders a pairing code as a PNG data URI.
func EncodeQR(code string) (string, error) {
	png, err := qrCode.Encode(code, qrCode.Medium, qrImageSize)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// PrintQR draws a pairing code on a terminal.
func PrintQR(w io.Writer, code string) {
	qrterminal.GenerateHalfBlock(code, qrterminal.L, w)
}
