package utils

import "strings"

// UserAgent is the coarse client classification stored with each activity entry.
type UserAgent struct {
	Device  string
	Browser string
	OS      string
}

// ParseUserAgent classifies a User-Agent header by plain substring matching.
// Order matters: Chrome UAs also mention Safari, and Android UAs also mention Linux.
func ParseUserAgent(ua string) UserAgent {
	if ua == "" {
		return UserAgent{Device: "unknown", Browser: "unknown", OS: "unknown"}
	}
	return UserAgent{
		Device:  deviceOf(ua),
		Browser: browserOf(ua),
		OS:      osOf(ua),
	}
}

func deviceOf(ua string) string {
	if strings.Contains(ua, "iPad") {
		return "tablet"
	}
	for _, marker := range []string{"Mobile", "Android", "iPhone"} {
		if strings.Contains(ua, marker) {
			return "mobile"
		}
	}
	return "desktop"
}

func browserOf(ua string) string {
	for _, name := range []string{"Chrome", "Firefox", "Safari", "Edge"} {
		if strings.Contains(ua, name) {
			return name
		}
	}
	return "unknown"
}

func osOf(ua string) string {
	switch {
	case strings.Contains(ua, "Windows"):
		return "Windows"
	case strings.Contains(ua, "Mac"):
		return "macOS"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	case strings.Contains(ua, "Android"):
		return "Android"
	case strings.Contains(ua, "iOS"):
		return "iOS"
	}
	return "unknown"
}
