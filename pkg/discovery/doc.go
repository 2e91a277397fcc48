// Package discovery finds bridge hosts advertised over mDNS.
//
// Hosts register the "_aria-bridge._tcp" service in the "local" domain.
// TXT records carry the WebSocket path, whether TLS is required and the
// protocol version the host speaks:
//
//	path=/bridge  tls=0  proto=2  project=web-app
//
// Every field is optional. A host that omits them is reached at
// ws://<host>:<port>/.
package discovery
