package httpapi

import "time"

func formatMTime(mtime float64) string {
	sec := int64(mtime)
	nsec := int64((mtime - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC().Format(time.RFC3339)
}
