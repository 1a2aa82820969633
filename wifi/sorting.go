package wifi

import "sort"

// SortRecords sorts a slice of ScanRecord structs in place.
// The sorting order is:
// 1. Signal strength (strongest first).
// 2. SSID alphabetically, hidden networks last.
// 3. BSSID, so that repeated scans print in a stable order.
func SortRecords(records []ScanRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a := records[i]
		b := records[j]

		if a.Signal != b.Signal {
			return a.Signal > b.Signal
		}

		if (a.SSID == "") != (b.SSID == "") {
			return a.SSID != ""
		}
		if a.SSID != b.SSID {
			return a.SSID < b.SSID
		}

		return a.BSSID < b.BSSID
	})
}
