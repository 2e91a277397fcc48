// Package version reports the client build and checks protocol compatibility
// with the host.
package version

import (
	"fmt"
	"runtime/debug"
)

// Protocol is the bridge protocol version this client speaks in hello.
const Protocol = 2

// Client is the library release. Overridden at link time:
//
//	go build -ldflags "-X github.com/aria-bridge/bridge-go/pkg/version.Client=1.2.3"
var Client = "0.4.0"

// Commit is the VCS revision, filled from build info when available.
var Commit = ""

// Info describes the running build.
type Info struct {
	Client    string
	Protocol  int
	Commit    string
	GoVersion string
}

// Get returns the build description.
func Get() Info {
	info := Info{Client: Client, Protocol: Protocol, Commit: Commit}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.GoVersion = bi.GoVersion
		if info.Commit == "" {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" {
					info.Commit = s.Value
				}
			}
		}
	}
	return info
}

// String formats the build for the version command.
func (i Info) String() string {
	s := fmt.Sprintf("ariabridge %s (protocol %d)", i.Client, i.Protocol)
	if i.Commit != "" {
		commit := i.Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		s += " commit " + commit
	}
	if i.GoVersion != "" {
		s += " " + i.GoVersion
	}
	return s
}

// UserAgent returns the User-Agent sent on the WebSocket upgrade.
func UserAgent() string {
	return "aria-bridge-go/" + Client
}

// Compatible reports whether a host announcing peer in hello_ack can serve
// this client. Zero means the host did not announce a version.
func Compatible(peer int) bool {
	return peer == 0 || peer == Protocol
}

// CheckPeer returns an error describing an incompatible host version.
func CheckPeer(peer int) error {
	if Compatible(peer) {
		return nil
	}
	return fmt.Errorf("host speaks protocol %d, client speaks %d", peer, Protocol)
}
