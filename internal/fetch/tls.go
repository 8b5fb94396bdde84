package fetch

import (
	"context"
	"math/rand"
	"net"
	"time"

	utls "github.com/refraction-networking/utls"
)

// TLSProfile pairs a name with a utls ClientHello fingerprint.
type TLSProfile struct {
	Name     string
	ClientID utls.ClientHelloID
}

var tlsProfiles = []TLSProfile{
	{Name: "Chrome_120", ClientID: utls.HelloChrome_120},
	{Name: "Chrome_131", ClientID: utls.HelloChrome_131},
	{Name: "Chrome_133", ClientID: utls.HelloChrome_133},
	{Name: "Firefox_120", ClientID: utls.HelloFirefox_120},
	{Name: "Edge_106", ClientID: utls.HelloEdge_106},
}

// TLSFingerprinter dials TLS connections with a browser ClientHello so the
// handshake does not advertise the Go TLS stack.
type TLSFingerprinter struct {
	profile TLSProfile
	timeout time.Duration
}

// NewTLSFingerprinter picks a random profile for the crawl session. A single
// profile per session keeps the fingerprint consistent across requests the
// way a real browser would be.
func NewTLSFingerprinter(timeout time.Duration) *TLSFingerprinter {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &TLSFingerprinter{
		profile: tlsProfiles[rnd.Intn(len(tlsProfiles))],
		timeout: timeout,
	}
}

// Profile returns the profile chosen for this session.
func (tf *TLSFingerprinter) Profile() TLSProfile {
	return tf.profile
}

// DialTLSContext performs the TCP dial and the utls handshake. Transports
// using it must disable HTTP/2 since the request path stays HTTP/1.1.
func (tf *TLSFingerprinter) DialTLSContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{Timeout: tf.timeout}
	raw, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	conn := utls.UClient(raw, &utls.Config{
		ServerName: host,
		NextProtos: []string{"http/1.1"},
	}, tf.profile.ClientID)

	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, err
	}
	return conn, nil
}
