// Package ident generates the identifiers that tie local photos and queue
// items to records on the remote endpoint.
package ident

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/google/uuid"
)

const (
	uploadPrefix = "UPL"
	photoPrefix  = "PH"
	legacyPrefix = "LEGACY_"
)

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Generator produces upload and photo identifiers.
type Generator interface {
	UploadID() string
	PhotoID() string
}

// RandomGenerator produces ids of the form <prefix>_<unix-ms>_<random hex>.
type RandomGenerator struct {
	clock Clock
}

// NewGenerator returns a RandomGenerator reading time from clock.
// A nil clock falls back to RealClock.
func NewGenerator(clock Clock) *RandomGenerator {
	if clock == nil {
		clock = RealClock{}
	}
	return &RandomGenerator{clock: clock}
}

// UploadID returns a fresh idempotency key for a queue item.
func (g *RandomGenerator) UploadID() string { return g.next(uploadPrefix) }

// PhotoID returns a fresh blob key for a captured photo.
func (g *RandomGenerator) PhotoID() string { return g.next(photoPrefix) }

func (g *RandomGenerator) next(prefix string) string {
	u := uuid.New()
	hex := strings.ReplaceAll(u.String(), "-", "")[:12]
	return fmt.Sprintf("%s_%d_%s", prefix, g.clock.Now().UnixMilli(), hex)
}

// LegacyUploadID derives a deterministic upload id for items persisted before
// upload ids existed. It uses the 32-bit h*31+c string hash over UTF-16 code
// units of "category|po|totalKB|firstPhotoID". The hash is not
// collision-resistant; two legacy items that agree on all four fields share
// an id.
func LegacyUploadID(category, poNumber string, totalKB int, firstPhotoID string) string {
	key := category + "|" + poNumber + "|" + strconv.Itoa(totalKB) + "|" + firstPhotoID

	var h int32
	for _, c := range utf16.Encode([]rune(key)) {
		h = h*31 + int32(c)
	}

	v := int64(h)
	if v < 0 {
		v = -v
	}
	return legacyPrefix + strconv.FormatInt(v, 10)
}

// IsLegacy reports whether id was produced by LegacyUploadID.
func IsLegacy(id string) bool {
	return strings.HasPrefix(id, legacyPrefix)
}
