package invite

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"
)

// CodeLength is the length of an encoded invite code.
const CodeLength = 11

// NewCode returns 8 random bytes as unpadded URL-safe base64.
func NewCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate invite code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// DeepLink opens the bot's mini app with the invite code as start parameter.
func DeepLink(botUsername, code string) string {
	return fmt.Sprintf("https://t.me/%s?startapp=%s", botUsername, url.QueryEscape(code))
}

// QRCodeBase64 renders content as a 256px PNG QR code, base64 encoded.
func QRCodeBase64(content string) (string, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("failed to generate QR code: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
