package scan

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/lunixbochs/struc"

	"github.com/shazow/wifiscan/wifi"
)

// RecordSize is the encoded size of one scan record.
const RecordSize = 298

// headerSize is the encoded size of a frame's record count.
const headerSize = 4

// failureCount is sent in place of a record count when the provider failed.
const failureCount = -1

var wireOptions = &struc.Options{Order: binary.LittleEndian}

type frameHeader struct {
	Count int32
}

// wireRecord is the fixed-size layout of a record on a pipe or in a shared
// region. Text fields are NUL padded and truncated to their slot.
type wireRecord struct {
	BSSID        [18]byte
	SSID         [64]byte
	Frequency    int32
	Channel      int32
	Signal       int32
	Security     [64]byte
	Capabilities [128]byte
	Quality      int32
	Timestamp    int64 // unix nanoseconds, 0 for the zero time
}

func toWire(r wifi.ScanRecord) *wireRecord {
	w := &wireRecord{
		Frequency: int32(r.Frequency),
		Channel:   int32(r.Channel),
		Signal:    int32(r.Signal),
		Quality:   int32(r.Quality),
	}
	copy(w.BSSID[:], r.BSSID)
	copy(w.SSID[:], r.SSID)
	copy(w.Security[:], r.Security.String())
	copy(w.Capabilities[:], r.Capabilities)
	if !r.Timestamp.IsZero() {
		w.Timestamp = r.Timestamp.UnixNano()
	}
	return w
}

func (w *wireRecord) record() wifi.ScanRecord {
	r := wifi.ScanRecord{
		BSSID:        cString(w.BSSID[:]),
		SSID:         cString(w.SSID[:]),
		Frequency:    int(w.Frequency),
		Channel:      int(w.Channel),
		Signal:       int(w.Signal),
		Quality:      int(w.Quality),
		Security:     wifi.ParseSecurity(cString(w.Security[:])),
		Capabilities: cString(w.Capabilities[:]),
	}
	if w.Timestamp != 0 {
		r.Timestamp = time.Unix(0, w.Timestamp).UTC()
	}
	return r
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// EncodeRecord writes r into the first RecordSize bytes of dst.
func EncodeRecord(dst []byte, r wifi.ScanRecord) error {
	if len(dst) < RecordSize {
		return fmt.Errorf("record slot of %d bytes: %w", len(dst), io.ErrShortBuffer)
	}
	var buf bytes.Buffer
	buf.Grow(RecordSize)
	if err := struc.PackWithOptions(&buf, toWire(r), wireOptions); err != nil {
		return err
	}
	copy(dst, buf.Bytes())
	return nil
}

// DecodeRecord reads a record from the first RecordSize bytes of src.
func DecodeRecord(src []byte) (wifi.ScanRecord, error) {
	if len(src) < RecordSize {
		return wifi.ScanRecord{}, fmt.Errorf("record of %d bytes: %w", len(src), ErrTransport)
	}
	var w wireRecord
	if err := struc.UnpackWithOptions(bytes.NewReader(src[:RecordSize]), &w, wireOptions); err != nil {
		return wifi.ScanRecord{}, fmt.Errorf("decode record: %w: %w", ErrTransport, err)
	}
	return w.record(), nil
}

// WriteFrame sends a record count followed by the records.
func WriteFrame(w io.Writer, records []wifi.ScanRecord) error {
	if len(records) > wifi.MaxScanResults {
		records = records[:wifi.MaxScanResults]
	}
	var buf bytes.Buffer
	buf.Grow(headerSize + len(records)*RecordSize)
	if err := struc.PackWithOptions(&buf, &frameHeader{Count: int32(len(records))}, wireOptions); err != nil {
		return err
	}
	for _, r := range records {
		if err := struc.PackWithOptions(&buf, toWire(r), wireOptions); err != nil {
			return err
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteFailure sends a frame that reports a provider failure.
func WriteFailure(w io.Writer) error {
	return struc.PackWithOptions(w, &frameHeader{Count: failureCount}, wireOptions)
}

// ReadFrame receives one frame into results. At most len(results) records
// are kept; any surplus in the frame is read and discarded.
func ReadFrame(r io.Reader, results []wifi.ScanRecord) (int, error) {
	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return 0, fmt.Errorf("read record count: %w: %w", ErrTransport, err)
	}
	count := int(int32(binary.LittleEndian.Uint32(hdr)))
	switch {
	case count == failureCount:
		return 0, fmt.Errorf("worker reported: %w", wifi.ErrScanFailed)
	case count < 0 || count > wifi.MaxScanResults:
		return 0, fmt.Errorf("record count %d out of range: %w", count, ErrTransport)
	}

	n := min(count, len(results))
	slot := make([]byte, RecordSize)
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(r, slot); err != nil {
			return 0, fmt.Errorf("read record %d of %d: %w: %w", i+1, count, ErrTransport, err)
		}
		rec, err := DecodeRecord(slot)
		if err != nil {
			return 0, err
		}
		results[i] = rec
	}

	if surplus := int64(count-n) * RecordSize; surplus > 0 {
		if _, err := io.CopyN(io.Discard, r, surplus); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return 0, fmt.Errorf("discard %d surplus records: %w: %w", count-n, ErrTransport, err)
		}
	}
	return n, nil
}
