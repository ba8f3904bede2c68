package stats

import "github.com/offer-goat/offer-goat/internal/store"

// DeviceCounts is the number of visits per device class.
type DeviceCounts struct {
	Mobile  int `json:"mobile"`
	Desktop int `json:"desktop"`
}

// SegmentedStats breaks one variant's visits down by device and traffic
// source.
type SegmentedStats struct {
	Device DeviceCounts   `json:"device"`
	Source map[string]int `json:"source"`
}

// Segment counts visits per device type and per traffic source. Visits
// without a device type count as desktop, and visits without a source
// count as store.DefaultSource.
func Segment(visits []store.Visit) SegmentedStats {
	seg := SegmentedStats{Source: make(map[string]int)}

	for _, v := range visits {
		if v.DeviceType == store.DeviceMobile {
			seg.Device.Mobile++
		} else {
			seg.Device.Desktop++
		}

		source := v.Source
		if source == "" {
			source = store.DefaultSource
		}
		seg.Source[source]++
	}

	return seg
}
