// Package qr renders a booking as an encrypted QR entry pass.
package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"time"

	"eventcircle/internal/models"

	"github.com/skip2/go-qrcode"
)

var ErrInvalidPass = errors.New("qr: pass is invalid or was not issued by this service")

// Pass is the payload sealed inside the QR code.
type Pass struct {
	BookingID string    `json:"booking_id"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	BookedAt  time.Time `json:"booked_at"`
}

type QRGenerator struct {
	aead cipher.AEAD
}

func NewQRGenerator(secret string) (*QRGenerator, error) {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	block, err := aes.NewCipher(hashed[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &QRGenerator{aead: aead}, nil
}

// Seal encrypts the pass for booking into a URL-safe token.
func (q *QRGenerator) Seal(booking *models.EventBooking) (string, error) {
	data, err := json.Marshal(Pass{
		BookingID: booking.ID,
		EventID:   booking.EventID,
		UserID:    booking.UserID,
		BookedAt:  booking.BookedAt,
	})
	if err != nil {
		return "", err
	}

	nonce := make([]byte, q.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := q.aead.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Tampered or foreign tokens return ErrInvalidPass.
func (q *QRGenerator) Open(token string) (*Pass, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) < q.aead.NonceSize() {
		return nil, ErrInvalidPass
	}
	nonce, ciphertext := raw[:q.aead.NonceSize()], raw[q.aead.NonceSize():]
	data, err := q.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidPass
	}

	pass := new(Pass)
	if err := json.Unmarshal(data, pass); err != nil {
		return nil, ErrInvalidPass
	}
	return pass, nil
}

// PNG renders the sealed pass as a 256px QR image.
func (q *QRGenerator) PNG(booking *models.EventBooking) ([]byte, error) {
	token, err := q.Seal(booking)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, 256)
}
