package libs

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"
)

const (
	SecondFactorSecretSize = 20
	totpPeriod             = 30
)

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateSecondFactorSecret returns a fresh 160 bit TOTP secret.
func GenerateSecondFactorSecret() ([]byte, error) {
	secret := make([]byte, SecondFactorSecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate second factor secret: %w", err)
	}
	return secret, nil
}

// TOTP checks six digit SHA1 codes on a 30 second step.
type TOTP struct {
	Issuer string
	Skew   uint
}

func (t TOTP) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      t.Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// Verify accepts codes for the current step and Skew steps either side.
func (t TOTP) Verify(secret []byte, code string, now time.Time) bool {
	if len(secret) == 0 {
		return false
	}
	ok, err := totp.ValidateCustom(code, Base32Secret(secret), now.UTC(), t.opts())
	return err == nil && ok
}

// Code returns the code for secret at the given time.
func (t TOTP) Code(secret []byte, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(Base32Secret(secret), at.UTC(), t.opts())
}

// EnrollmentURI builds the otpauth:// URI an authenticator app imports.
func (t TOTP) EnrollmentURI(account string, secret []byte) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.Issuer,
		AccountName: account,
		Period:      totpPeriod,
		Secret:      secret,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate TOTP key: %w", err)
	}
	return key.URL(), nil
}

// QRCodeDataURL renders uri as a PNG data URL.
func QRCodeDataURL(uri string) (string, error) {
	png, err := qrcode.Encode(uri, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("failed to generate QR code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// Base32Secret is the form users type in by hand.
func Base32Secret(secret []byte) string {
	return secretEncoding.EncodeToString(secret)
}
