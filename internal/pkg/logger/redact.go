package logger

import (
	"net"
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactIP keeps the network part of a viewer address.
// "203.0.113.7" → "203.0.113.x", "2001:db8::1" → "2001:db8::x"
func RedactIP(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "x.x.x.x"
	}
	if v4 := parsed.To4(); v4 != nil {
		s := v4.String()
		return s[:strings.LastIndex(s, ".")] + ".x"
	}
	s := parsed.String()
	return s[:strings.LastIndex(s, ":")] + ":x"
}

func redactValue(key, val string) string {
	key = strings.ToLower(key)
	switch {
	case strings.Contains(key, "email") || key == "to":
		return RedactEmail(val)
	case key == "ip" || strings.HasSuffix(key, "_ip"):
		return RedactIP(val)
	}
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
