// Package format normalizes network address strings.
package format

import (
	"fmt"
	"strings"
)

// Addr joins host and port into a dialable "host:port" string. IPv6
// hosts are bracketed; "*" and the empty string both mean all
// interfaces and yield ":port".
func Addr(host string, port int) string {
	if host == "*" {
		host = ""
	}
	if strings.ContainsAny(host, ":") { // IPv6
		return fmt.Sprintf("[%s]:%d", host, port)
	}
	return fmt.Sprintf("%s:%d", host, port)
}
