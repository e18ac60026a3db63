package instance

import "os"

// GetID identifies the running process in logs. Platform dyno names win
// over an explicit worker id, and the hostname is the last resort.
func GetID() string {
	for _, key := range []string{"DYNO", "TIX_INSTANCE_ID"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
