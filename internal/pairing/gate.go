// Package pairing tracks the secondary-camera handshake. The candidate
// scans a code on their phone, opens the mobile stream route and confirms
// the connection manually. Known limitation, preserved deliberately: there
// is no automated verification that a second device is actually present,
// and no video is ever streamed to the grading side — confirmation is a
// self-reported presence check.
package pairing

import (
	"net/url"
	"strings"
	"sync"
)

const codeImageEndpoint = "https://api.qrserver.com/v1/create-qr-code/?size=256x256&data="

// Gate is the one-way Unconfirmed → Confirmed state of the secondary
// camera. Safe for concurrent use.
type Gate struct {
	mu        sync.Mutex
	confirmed bool
	origin    string
	path      string
}

// NewGate creates an unconfirmed gate. origin must be the absolute public
// origin of the front end; path is the mobile stream route.
func NewGate(origin, path string) *Gate {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &Gate{
		origin: strings.TrimRight(origin, "/"),
		path:   path,
	}
}

// Confirm marks the secondary camera as connected. The transition is
// one-way: nothing resets it automatically.
func (g *Gate) Confirm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.confirmed = true
}

// Confirmed reports whether the candidate has confirmed the pairing.
func (g *Gate) Confirmed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.confirmed
}

// TargetURL returns the absolute URL the secondary device should open.
// It must be absolute so it resolves correctly when scanned by a device
// unaware of the host's path context.
func (g *Gate) TargetURL() string {
	return g.origin + g.path
}

// CodeImageURL returns the URL of a scannable code image encoding the
// pairing target. Image generation is delegated to an external service.
func (g *Gate) CodeImageURL() string {
	return codeImageEndpoint + url.QueryEscape(g.TargetURL())
}
