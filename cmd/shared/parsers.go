package shared

import (
	"fmt"
	"penumbra-x/tlserve/pkg/format"
	"regexp"
	"strconv"
)

// Protocol enumerates the transports a listener address can name.
type Protocol int

const (
	ProtoTCP Protocol = iota
	ProtoWS
	ProtoKCP
)

func (p Protocol) String() string {
	switch p {
	case ProtoTCP:
		return "tcp"
	case ProtoWS:
		return "ws"
	case ProtoKCP:
		return "kcp"
	default:
		return "unknown"
	}
}

// ParseTransport parses a transport string in the format "protocol://host:port"
// where protocol is one of tcp, ws, or kcp. The host can be empty or "*" to
// bind to all interfaces. Returns the protocol, the "host:port" address, and
// any parsing error.
func ParseTransport(s string) (proto Protocol, addr string, err error) {
	re := regexp.MustCompile(`^(tcp|ws|kcp)://([^:]*):(\d+)$`)
	matches := re.FindStringSubmatch(s)

	if len(matches) != 4 {
		err = parsingError(s)
		return
	}

	switch matches[1] {
	case "tcp":
		proto = ProtoTCP
	case "ws":
		proto = ProtoWS
	case "kcp":
		proto = ProtoKCP
	default:
		err = parsingError(s)
		return
	}

	port, err := strconv.Atoi(matches[3])
	if err != nil || port < 1 || port > 65535 {
		err = parsingError(s)
		return
	}

	addr = format.Addr(matches[2], port)
	return
}

func parsingError(s string) error {
	return fmt.Errorf("parsing %s: format should be 'protocol://host:port', where protocol = tcp|ws|kcp", s)
}
