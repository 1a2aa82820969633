package main

import (
	"fmt"
	"io"

	"github.com/shazow/wifiscan/wifi"
)

func formatSecurity(s wifi.SecurityType) string {
	if s == wifi.SecurityUnknown {
		return "-"
	}
	return s.String()
}

func formatRecord(r wifi.ScanRecord) string {
	ssid := r.SSID
	if ssid == "" {
		ssid = "<hidden>"
	}
	return fmt.Sprintf("%s\t%s\t%d MHz\tch %d\t%d dBm\t%d%%\t%s",
		r.BSSID, ssid, r.Frequency, r.Channel, r.Signal, r.Quality, formatSecurity(r.Security))
}

func writeRecords(w io.Writer, records []wifi.ScanRecord) {
	wifi.SortRecords(records)
	for _, r := range records {
		fmt.Fprintln(w, formatRecord(r))
	}
}
