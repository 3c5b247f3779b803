package domain

import (
	"math/rand"

	"github.com/google/uuid"
)

const deviceIDPrefix = "v2_web_"

var deviceIDAlphabet = []rune("abcdefghijklmnopqrstuvwxyz0123456789")

// Identity is the stable per-browser identity the vendor keys everything on.
type Identity struct {
	UserID   string
	DeviceID string
}

// NewIdentity generates a fresh browser identity.
func NewIdentity() Identity {
	return Identity{
		UserID:   uuid.NewString(),
		DeviceID: newDeviceID(),
	}
}

// Complete reports whether both identifiers are present.
func (i Identity) Complete() bool {
	return i.UserID != "" && i.DeviceID != ""
}

func newDeviceID() string {
	suffix := make([]rune, 13)
	for i := range suffix {
		suffix[i] = deviceIDAlphabet[rand.Intn(len(deviceIDAlphabet))]
	}
	return deviceIDPrefix + string(suffix)
}
