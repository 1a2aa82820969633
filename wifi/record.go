package wifi

import "time"

// ScanRecord is a single access point observed during a scan.
type ScanRecord struct {
	BSSID        string
	SSID         string
	Frequency    int // MHz
	Channel      int
	Signal       int // dBm
	Quality      int // 0-100
	Security     SecurityType
	Capabilities string
	Timestamp    time.Time
}

const (
	qualityCeiling = -30 // dBm at or above which quality is 100
	qualityFloor   = -90 // dBm at or below which quality is 0
)

// Quality maps a signal strength in dBm onto a 0-100 scale, linear between
// -90 dBm and -30 dBm.
func Quality(dBm int) int {
	switch {
	case dBm >= qualityCeiling:
		return 100
	case dBm <= qualityFloor:
		return 0
	}
	return (dBm - qualityFloor) * 100 / (qualityCeiling - qualityFloor)
}

// ChannelForFrequency returns the IEEE 802.11 channel number for a centre
// frequency in MHz, or 0 when the frequency is outside the 2.4, 5 and 6 GHz
// bands.
func ChannelForFrequency(freq int) int {
	switch {
	case freq == 2484:
		return 14
	case freq >= 2412 && freq < 2484:
		return (freq-2412)/5 + 1
	case freq >= 5170 && freq <= 5825:
		return (freq - 5000) / 5
	case freq >= 5955 && freq <= 7115:
		return (freq - 5950) / 5
	}
	return 0
}

// NewScanRecord fills in the derived Channel and Quality fields.
func NewScanRecord(bssid, ssid string, freq, dBm int, security SecurityType, at time.Time) ScanRecord {
	return ScanRecord{
		BSSID:     bssid,
		SSID:      ssid,
		Frequency: freq,
		Channel:   ChannelForFrequency(freq),
		Signal:    dBm,
		Quality:   Quality(dBm),
		Security:  security,
		Timestamp: at,
	}
}
