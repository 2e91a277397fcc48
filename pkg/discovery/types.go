package discovery

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	// ServiceType is the mDNS service type bridge hosts register.
	ServiceType = "_aria-bridge._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// BrowseTimeout is the default duration of a browse.
	BrowseTimeout = 3 * time.Second
)

// TXT record keys.
const (
	TXTKeyPath     = "path"
	TXTKeyTLS      = "tls"
	TXTKeyProtocol = "proto"
	TXTKeyProject  = "project"
)

// ErrNotFound is returned by Find when no host answered before the deadline.
var ErrNotFound = errors.New("discovery: no bridge host found")

// HostService is one discovered bridge host.
type HostService struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string

	Path      string
	TLS       bool
	Protocol  int
	ProjectID string
}

// URL returns the WebSocket endpoint for the host. The first advertised
// address is preferred over the host name.
func (s *HostService) URL() string {
	scheme := "ws"
	if s.TLS {
		scheme = "wss"
	}
	host := strings.TrimSuffix(s.Host, ".")
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	path := s.Path
	if path == "" {
		path = "/"
	} else if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(int(s.Port))),
		Path:   path,
	}
	return u.String()
}

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// StringsToTXTRecords parses "key=value" strings. A bare key maps to "".
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, _ := strings.Cut(s, "=")
		if k != "" {
			txt[k] = v
		}
	}
	return txt
}

// TXTRecordsToStrings renders a map as sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	keys := make([]string, 0, len(txt))
	for k := range txt {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+txt[k])
	}
	return out
}

// applyTXT fills the TXT-derived fields of svc.
func applyTXT(svc *HostService, txt TXTRecordMap) error {
	svc.Path = txt[TXTKeyPath]
	svc.ProjectID = txt[TXTKeyProject]

	switch strings.ToLower(txt[TXTKeyTLS]) {
	case "", "0", "false", "no":
	case "1", "true", "yes":
		svc.TLS = true
	default:
		return fmt.Errorf("invalid %s value %q", TXTKeyTLS, txt[TXTKeyTLS])
	}

	if p, ok := txt[TXTKeyProtocol]; ok && p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid %s value %q", TXTKeyProtocol, p)
		}
		svc.Protocol = n
	}
	return nil
}
