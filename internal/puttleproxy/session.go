// Package puttleproxy implements the per-connection CONNECT-tunneling
// session: upstream selection and failover, the proxy handshake and its
// response parser, Basic/Digest proxy authentication, and the full-duplex
// relay.
package puttleproxy

import (
	"fmt"
	"math/rand"
	"net"

	"github.com/google/uuid"
	"golang.org/x/net/ipv4"

	"github.com/puttle-proxy/puttle/internal/clog"
)

// connectUserAgent is the fixed User-Agent sent on every CONNECT request.
const connectUserAgent = "Mozilla/5.0 (X11; U; AmigaOS x86_64; eo-EO; rv:42.6.6)"

// DefaultDialTTL is the deliberate IP TTL set on every outbound socket to
// the upstream proxy, preserved from the original implementation as a
// footprint-shaping default. Overridden per session by a non-zero dialTTL
// argument to NewSession.
const DefaultDialTTL = 42

// state is a Session's position in the handshake state machine.
type state int

const (
	stateInit state = iota
	stateResolving
	stateProxyHandshakeWrite
	stateProxyHandshakeRead
	stateAuthRetry
	stateRelaying
	stateTerminated
)

// Stats summarizes a finished session for observability; it never
// influences the state machine.
type Stats struct {
	ID           string
	Upstream     string
	AuthMethod   AuthMethod
	BytesUp      int64
	BytesDown    int64
	TerminalNote string
}

// Session drives one transparently-intercepted TCP connection through
// upstream selection, the CONNECT handshake (with Basic/Digest retry),
// and the full-duplex relay.
type Session struct {
	id     string
	client net.Conn

	destHost string
	destPort string

	upstreams []Upstream
	upstreamI int

	dialTTL int

	upstream net.Conn
	resp     responseAccumulator
	auth     Authenticator

	state state
}

// NewSession constructs a Session for an accepted client connection and a
// per-connection randomly-shuffled snapshot of the shared upstream list.
// dialTTL overrides DefaultDialTTL when non-zero.
func NewSession(client net.Conn, upstreams []Upstream, dialTTL int) *Session {
	shuffled := make([]Upstream, len(upstreams))
	copy(shuffled, upstreams)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	if dialTTL == 0 {
		dialTTL = DefaultDialTTL
	}

	return &Session{
		id:        uuid.NewString(),
		client:    client,
		upstreams: shuffled,
		dialTTL:   dialTTL,
		state:     stateInit,
	}
}

// recoverDestination is overridden in tests, where the client socket is
// a net.Pipe or loopback connection never touched by a netfilter REDIRECT
// rule and so has no original destination for the kernel to report.
var recoverDestination = recoverOriginalDestination

// Run executes the session to completion: resolve/connect to an
// upstream, perform the CONNECT handshake (retrying on 407 until the
// authenticator's budget is exhausted), then relay bytes until either
// side closes. It always closes the client socket before returning.
func (s *Session) Run() Stats {
	defer func() { _ = s.client.Close() }()

	host, port, err := recoverDestination(s.client)
	if err != nil {
		clog.Error("session %s: recover original destination: %v", s.id, err)
		return s.finish("original destination unavailable")
	}
	s.destHost, s.destPort = host, fmt.Sprintf("%d", port)

	s.state = stateResolving
	for {
		switch s.state {
		case stateResolving:
			if s.upstreamI >= len(s.upstreams) {
				clog.Notice("session %s: upstream list exhausted", s.id)
				return s.finish("upstream list exhausted")
			}
			up := s.upstreams[s.upstreamI]
			conn, err := s.dialUpstream(up)
			if err != nil {
				clog.Notice("session %s: connect to %s failed: %v, advancing", s.id, up, err)
				s.upstreamI++
				continue
			}
			s.upstream = conn
			s.state = stateProxyHandshakeWrite

		case stateProxyHandshakeWrite:
			if err := s.writeConnectRequest(); err != nil {
				clog.Error("session %s: write CONNECT request: %v", s.id, err)
				return s.finish("handshake write error")
			}
			s.resp = responseAccumulator{}
			s.state = stateProxyHandshakeRead

		case stateProxyHandshakeRead:
			done, err := s.readHandshakeChunk()
			if err != nil {
				clog.Error("session %s: read proxy response: %v", s.id, err)
				return s.finish("handshake read error")
			}
			if !done {
				continue
			}
			parsed, err := s.resp.parse()
			if err != nil {
				clog.Error("session %s: %v", s.id, err)
				return s.finish("malformed proxy response")
			}
			switch parsed.Status {
			case 200:
				s.state = stateRelaying
			case 407:
				if err := s.handleChallenge(parsed.Headers); err != nil {
					clog.Error("session %s: %v", s.id, err)
					return s.finish("auth failure")
				}
				s.state = stateAuthRetry
			default:
				clog.Notice("session %s: proxy status %d, headers=%v", s.id, parsed.Status, parsed.Headers)
				return s.finish(fmt.Sprintf("proxy status %d", parsed.Status))
			}

		case stateAuthRetry:
			_ = s.upstream.Close()
			if s.auth == nil || s.auth.HasError() || !s.auth.HasToken() {
				clog.Notice("session %s: auth exhausted or unusable", s.id)
				return s.finish("auth exhausted")
			}
			up := s.upstreams[s.upstreamI]
			conn, err := s.dialUpstream(up)
			if err != nil {
				clog.Notice("session %s: reconnect for auth retry failed: %v, advancing", s.id, err)
				s.upstreamI++
				s.state = stateResolving
				continue
			}
			s.upstream = conn
			s.state = stateProxyHandshakeWrite

		case stateRelaying:
			up := s.upstreams[s.upstreamI]
			bytesUp, bytesDown := relay(s.client, s.upstream)
			stats := Stats{
				ID:        s.id,
				Upstream:  up.String(),
				BytesUp:   bytesUp,
				BytesDown: bytesDown,
			}
			if s.auth != nil {
				stats.AuthMethod = s.authMethod()
			}
			clog.Debug("session %s: relay closed, up=%d down=%d", s.id, bytesUp, bytesDown)
			return stats

		case stateTerminated:
			return s.finish("terminated")
		}
	}
}

func (s *Session) authMethod() AuthMethod {
	switch s.auth.(type) {
	case *basicAuthenticator:
		return AuthBasic
	case *digestAuthenticator:
		return AuthDigest
	default:
		return AuthNone
	}
}

func (s *Session) finish(note string) Stats {
	s.state = stateTerminated
	if s.upstream != nil {
		_ = s.upstream.Close()
	}
	stats := Stats{ID: s.id, TerminalNote: note}
	if s.upstreamI < len(s.upstreams) {
		stats.Upstream = s.upstreams[s.upstreamI].String()
	}
	return stats
}

// dialUpstream opens a fresh IPv4 socket to up, setting the deliberate
// TTL and TCP keepalive options before returning, matching the handshake
// setup the original implementation performs on every (re)connect.
func (s *Session) dialUpstream(up Upstream) (net.Conn, error) {
	addr := fmt.Sprintf("%s:%d", up.Host, up.Port)
	conn, err := net.Dial("tcp4", addr)
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetKeepAlive(true)
		_ = ipv4.NewConn(tc).SetTTL(s.dialTTL)
	}
	return conn, nil
}

// writeConnectRequest constructs and sends the exact CONNECT request
// line, fixed headers, an authenticator token if one is usable, and the
// terminating CRLF.
func (s *Session) writeConnectRequest() error {
	req := fmt.Sprintf(
		"CONNECT %s:%s HTTP/1.1\r\n"+
			"User-Agent: %s\r\n"+
			"Proxy-Connection: keep-alive\r\n"+
			"Host: %s:%s\r\n",
		s.destHost, s.destPort, connectUserAgent, s.destHost, s.destPort)

	if s.auth != nil {
		if s.auth.HasError() {
			return fmt.Errorf("authenticator exhausted for %s:%s", s.destHost, s.destPort)
		}
		if s.auth.HasToken() {
			req += s.auth.GetToken()
		}
	}
	req += "\r\n"

	_, err := s.upstream.Write([]byte(req))
	return err
}

// readHandshakeChunk reads up to one buffer's worth of bytes from the
// upstream socket and reports whether the header block is now complete.
func (s *Session) readHandshakeChunk() (bool, error) {
	buf := make([]byte, relayBufferSize)
	n, err := s.upstream.Read(buf)
	if n > 0 {
		s.resp.Write(buf[:n])
	}
	if err != nil {
		return false, err
	}
	return s.resp.headersComplete(), nil
}

// handleChallenge creates the authenticator on first 407 (from the
// Proxy-Authenticate scheme token) or reuses the existing one, then
// absorbs the fresh challenge.
func (s *Session) handleChallenge(headers map[string]string) error {
	challenge, ok := headers["Proxy-Authenticate"]
	if !ok {
		return fmt.Errorf("407 response without Proxy-Authenticate header")
	}

	if s.auth == nil {
		method, err := ParseAuthMethod(challenge)
		if err != nil {
			return err
		}
		up := s.upstreams[s.upstreamI]
		auth, err := CreateAuthenticator(method, up.Username, up.Password, s.destHost, s.destPort)
		if err != nil {
			return err
		}
		s.auth = auth
	}

	s.auth.SetHeaders(headers)
	return nil
}
