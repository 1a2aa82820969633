package wifi

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuality(t *testing.T) {
	tests := []struct {
		dBm  int
		want int
	}{
		{-20, 100},
		{-30, 100},
		{-31, 98},
		{-60, 50},
		{-75, 25},
		{-89, 1},
		{-90, 0},
		{-100, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Quality(tt.dBm), "Quality(%d)", tt.dBm)
	}
}

func TestChannelForFrequency(t *testing.T) {
	tests := []struct {
		freq int
		want int
	}{
		{2412, 1},
		{2437, 6},
		{2472, 13},
		{2484, 14},
		{5180, 36},
		{5825, 165},
		{5955, 1},
		{6115, 33},
		{900, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ChannelForFrequency(tt.freq), "ChannelForFrequency(%d)", tt.freq)
	}
}

func TestNewScanRecord(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := NewScanRecord("00:11:22:33:44:55", "TacoBoutAGoodSignal", 2437, -60, SecurityWPA2, at)
	assert.Equal(t, 6, r.Channel)
	assert.Equal(t, 50, r.Quality)
	assert.Equal(t, "WPA2", r.Security.String())
	assert.True(t, r.Timestamp.Equal(at))
}

func TestParseSecurity(t *testing.T) {
	for _, s := range []SecurityType{SecurityOpen, SecurityWEP, SecurityWPA, SecurityWPA2, SecurityWPA3, SecurityEncrypted} {
		assert.Equal(t, s, ParseSecurity(s.String()))
	}
	assert.Equal(t, SecurityWPA2, ParseSecurity("wpa2"))
	assert.Equal(t, SecurityUnknown, ParseSecurity(""))
	assert.Equal(t, SecurityUnknown, ParseSecurity("WPA4"))
}

func TestValidateInterface(t *testing.T) {
	assert.NoError(t, ValidateInterface("wlan0"))
	assert.NoError(t, ValidateInterface("phy0-sta0"))

	for _, bad := range []string{"", "a-very-long-interface", "wl an0", "../wlan0"} {
		err := ValidateInterface(bad)
		if !errors.Is(err, ErrInvalidInterface) {
			t.Errorf("ValidateInterface(%q) = %v, want ErrInvalidInterface", bad, err)
		}
	}
}
