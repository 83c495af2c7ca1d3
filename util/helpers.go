package util

// TruncateWithEllipsis cuts s to length bytes and marks the cut.
func TruncateWithEllipsis(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length] + "..."
}
