package puttleproxy

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// AuthMethod identifies a proxy authentication scheme.
type AuthMethod string

const (
	AuthNone   AuthMethod = "None"
	AuthBasic  AuthMethod = "Basic"
	AuthDigest AuthMethod = "Digest"
)

// ParseAuthMethod maps the first whitespace-delimited token of a
// Proxy-Authenticate header to an AuthMethod. Anything else is invalid.
func ParseAuthMethod(challengeLine string) (AuthMethod, error) {
	fields := strings.Fields(challengeLine)
	if len(fields) == 0 {
		return "", fmt.Errorf("puttleproxy: empty Proxy-Authenticate challenge")
	}
	switch fields[0] {
	case "Basic":
		return AuthBasic, nil
	case "Digest":
		return AuthDigest, nil
	case "None":
		return AuthNone, nil
	default:
		return "", fmt.Errorf("puttleproxy: unknown auth scheme %q", fields[0])
	}
}

// Authenticator is the operation surface shared by all auth strategies:
// produce a Proxy-Authorization header line from a server challenge,
// tracking a per-session retry budget.
type Authenticator interface {
	// HasToken reports whether the next GetToken call will produce a
	// usable header line.
	HasToken() bool
	// HasError reports whether the retry budget is exhausted without
	// success.
	HasError() bool
	// SetHeaders absorbs a fresh 407 challenge.
	SetHeaders(headers map[string]string)
	// GetToken decrements the retry budget and returns a single header
	// line ending in CRLF.
	GetToken() string
}

// CreateAuthenticator builds the Authenticator variant named by method.
func CreateAuthenticator(method AuthMethod, username, password, destHost, destPort string) (Authenticator, error) {
	switch method {
	case AuthNone:
		return &noneAuthenticator{}, nil
	case AuthBasic:
		return &basicAuthenticator{username: username, password: password, retries: 2}, nil
	case AuthDigest:
		return &digestAuthenticator{
			username: username,
			password: password,
			destHost: destHost,
			destPort: destPort,
			retries:  5,
		}, nil
	default:
		return nil, fmt.Errorf("puttleproxy: unknown auth method %q", method)
	}
}

// noneAuthenticator never emits tokens and never errors.
type noneAuthenticator struct{}

func (a *noneAuthenticator) HasToken() bool                 { return false }
func (a *noneAuthenticator) HasError() bool                 { return false }
func (a *noneAuthenticator) SetHeaders(_ map[string]string) {}
func (a *noneAuthenticator) GetToken() string               { return "" }

// basicAuthenticator produces a constant token up to its retry budget.
type basicAuthenticator struct {
	username, password string
	retries             int
}

func (a *basicAuthenticator) HasToken() bool { return a.retries >= 0 }
func (a *basicAuthenticator) HasError() bool { return a.retries < 0 }

func (a *basicAuthenticator) SetHeaders(_ map[string]string) {
	// Basic auth carries no server-issued state to absorb.
}

func (a *basicAuthenticator) GetToken() string {
	a.retries--
	creds := base64.StdEncoding.EncodeToString([]byte(a.username + ":" + a.password))
	return fmt.Sprintf("Proxy-Authorization: Basic %s\r\n", creds)
}

// digestAuthenticator implements RFC 2617-style digest authentication
// with the exact parameter ordering and unquoted nc form the wire
// protocol requires.
type digestAuthenticator struct {
	username, password string
	destHost, destPort  string

	retries    int
	nonceCount uint32

	realm, nonce, qop, opaque, cnonce string
}

func (a *digestAuthenticator) HasToken() bool { return a.retries >= 0 }
func (a *digestAuthenticator) HasError() bool { return a.retries < 0 }

// SetHeaders re-extracts realm, nonce, qop, and opaque from a fresh
// challenge and clears cnonce so a new one is generated on next use.
func (a *digestAuthenticator) SetHeaders(headers map[string]string) {
	challenge := headers["Proxy-Authenticate"]
	a.realm = findQuoted("realm", challenge)
	a.nonce = findQuoted("nonce", challenge)
	a.qop = findQuoted("qop", challenge)
	a.opaque = findQuoted("opaque", challenge)
	a.cnonce = ""
}

func (a *digestAuthenticator) GetToken() string {
	a.retries--

	nc := fmt.Sprintf("%08d", a.nonceCount)
	a.nonceCount++

	if a.cnonce == "" {
		a.cnonce = newCnonce()
	}

	ha1 := md5Hex(a.username + ":" + a.realm + ":" + a.password)
	ha2 := md5Hex("CONNECT:" + a.destHost + ":" + a.destPort)
	response := md5Hex(ha1 + ":" + a.nonce + ":" + nc + ":" + a.cnonce + ":" + a.qop + ":" + ha2)

	uri := a.destHost + ":" + a.destPort
	params := map[string]string{
		"cnonce":   a.cnonce,
		"nonce":    a.nonce,
		"opaque":   a.opaque,
		"qop":      a.qop,
		"realm":    a.realm,
		"response": response,
		"uri":      uri,
		"username": a.username,
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Proxy-Authorization: Digest ")
	for _, k := range keys {
		v := params[k]
		if v == "" {
			continue
		}
		fmt.Fprintf(&b, "%s=\"%s\", ", k, v)
	}
	fmt.Fprintf(&b, "nc=%s\r\n", nc)

	return b.String()
}

// findQuoted returns the value following name="  up to the next quote.
// Returns "" if name is not present.
func findQuoted(name, in string) string {
	needle := name + `="`
	idx := strings.Index(in, needle)
	if idx < 0 {
		return ""
	}
	start := idx + len(needle)
	end := strings.IndexByte(in[start:], '"')
	if end < 0 {
		return ""
	}
	return in[start : start+end]
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
