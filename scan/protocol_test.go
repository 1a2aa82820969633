package scan

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lunixbochs/struc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shazow/wifiscan/wifi"
	"github.com/shazow/wifiscan/wifi/mock"
)

func TestRecordSize(t *testing.T) {
	size, err := struc.Sizeof(&wireRecord{})
	require.NoError(t, err)
	assert.Equal(t, RecordSize, size)

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, mock.Records(2)))
	assert.Equal(t, headerSize+2*RecordSize, buf.Len())
}

func TestFrameRoundTrip(t *testing.T) {
	want := mock.Records(3)
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, want))

	results := make([]wifi.ScanRecord, wifi.MaxScanResults)
	n, err := ReadFrame(&buf, results)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, want, results[:n])
}

func TestFrameEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, nil))

	n, err := ReadFrame(&buf, make([]wifi.ScanRecord, 4))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFrameClampsToCapacity(t *testing.T) {
	want := mock.Records(5)
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, want))
	buf.WriteString("next")

	results := make([]wifi.ScanRecord, 2)
	n, err := ReadFrame(&buf, results)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, want[:2], results)
	// The surplus records were consumed, nothing more.
	assert.Equal(t, "next", buf.String())
}

func TestFrameFailure(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFailure(&buf))

	_, err := ReadFrame(&buf, make([]wifi.ScanRecord, 4))
	assert.True(t, errors.Is(err, wifi.ErrScanFailed), "got %v", err)
}

func TestFrameMalformed(t *testing.T) {
	countOnly := func(n int32) []byte {
		b := make([]byte, headerSize)
		binary.LittleEndian.PutUint32(b, uint32(n))
		return b
	}

	var full bytes.Buffer
	require.NoError(t, WriteFrame(&full, mock.Records(3)))

	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"short count", []byte{1, 0}},
		{"count too large", countOnly(wifi.MaxScanResults + 1)},
		{"negative count", countOnly(-7)},
		{"short payload", full.Bytes()[:headerSize+RecordSize+10]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(tt.input), make([]wifi.ScanRecord, 8))
			assert.True(t, errors.Is(err, ErrTransport), "got %v", err)
		})
	}

	t.Run("short surplus", func(t *testing.T) {
		_, err := ReadFrame(bytes.NewReader(full.Bytes()[:full.Len()-1]), make([]wifi.ScanRecord, 1))
		assert.True(t, errors.Is(err, ErrTransport), "got %v", err)
	})
}

func TestRecordTruncation(t *testing.T) {
	long := strings.Repeat("x", 100)
	in := wifi.ScanRecord{
		BSSID:        "00:11:22:33:44:55:66",
		SSID:         long,
		Capabilities: strings.Repeat("c", 200),
		Security:     wifi.SecurityWPA3,
	}
	slot := make([]byte, RecordSize)
	require.NoError(t, EncodeRecord(slot, in))

	out, err := DecodeRecord(slot)
	require.NoError(t, err)
	assert.Equal(t, long[:64], out.SSID)
	assert.Len(t, out.Capabilities, 128)
	assert.Equal(t, "00:11:22:33:44:55:", out.BSSID)
	assert.Equal(t, wifi.SecurityWPA3, out.Security)
	assert.True(t, out.Timestamp.IsZero())
}

func TestRecordTimestamp(t *testing.T) {
	at := time.Date(2023, time.July, 4, 10, 30, 0, 123456789, time.UTC)
	slot := make([]byte, RecordSize)
	require.NoError(t, EncodeRecord(slot, wifi.ScanRecord{Timestamp: at}))

	out, err := DecodeRecord(slot)
	require.NoError(t, err)
	assert.True(t, at.Equal(out.Timestamp), "got %v", out.Timestamp)
}

func TestEncodeShortSlot(t *testing.T) {
	assert.Error(t, EncodeRecord(make([]byte, RecordSize-1), wifi.ScanRecord{}))
}
