// Package device classifies visitors as mobile or desktop from their
// User-Agent header.
package device

import (
	"strings"

	"github.com/offer-goat/offer-goat/internal/store"
)

// mobileTokens are lower-cased User-Agent fragments that only appear on
// phones and tablets.
var mobileTokens = []string{
	"mobi",
	"android",
	"iphone",
	"ipod",
	"ipad",
	"windows phone",
	"blackberry",
	"bb10",
	"opera mini",
	"webos",
	"kindle",
	"silk/",
	"fennec",
}

// Classify returns store.DeviceMobile or store.DeviceDesktop. The same
// User-Agent always yields the same answer; an empty one is desktop.
func Classify(userAgent string) string {
	ua := strings.ToLower(userAgent)
	for _, token := range mobileTokens {
		if strings.Contains(ua, token) {
			return store.DeviceMobile
		}
	}
	return store.DeviceDesktop
}

// Normalize maps a caller supplied device type onto the two known values.
// Anything unrecognised falls back to classifying userAgent.
func Normalize(deviceType, userAgent string) string {
	switch strings.ToLower(strings.TrimSpace(deviceType)) {
	case store.DeviceMobile, "phone", "tablet":
		return store.DeviceMobile
	case store.DeviceDesktop:
		return store.DeviceDesktop
	}
	return Classify(userAgent)
}
