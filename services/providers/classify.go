package providers

import "strings"

// Classification buckets a provider failure for logging
type Classification string

const (
	ClassQuota     Classification = "quota"
	ClassTransient Classification = "transient"
	ClassFatal     Classification = "fatal"
)

var (
	quotaMarkers     = []string{"429", "resource_exhausted", "403", "billing", "plan"}
	transientMarkers = []string{"timeout", "timed out", "503", "unavailable", "rate limit", "cannot connect", "connection"}
)

// Classify inspects the error text. Quota markers take precedence over transient ones.
func Classify(err error) Classification {
	if err == nil {
		return ClassFatal
	}
	msg := strings.ToLower(err.Error())

	if containsAny(msg, quotaMarkers) {
		return ClassQuota
	}
	if strings.Contains(msg, "quota") && (strings.Contains(msg, "exceeded") || strings.Contains(msg, "exhausted")) {
		return ClassQuota
	}
	if containsAny(msg, transientMarkers) {
		return ClassTransient
	}
	return ClassFatal
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
