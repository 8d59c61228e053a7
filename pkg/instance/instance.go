// Package instance names the running replica for logs and lock owners.
package instance

import (
	"os"
	"strings"
)

const fallbackID = "worker-0"

// GetID prefers WORKER_ID, then the pod or container hostname.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv("WORKER_ID")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
