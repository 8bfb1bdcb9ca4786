package puttleproxy

import "testing"

func TestResponseAccumulator_HeadersCompleteCRLF(t *testing.T) {
	var r responseAccumulator
	r.Write([]byte("HTTP/1.1 200 Connection established\r\n"))
	if r.headersComplete() {
		t.Fatal("headersComplete() true before terminating blank line")
	}
	r.Write([]byte("Proxy-Agent: test\r\n\r\n"))
	if !r.headersComplete() {
		t.Fatal("headersComplete() false after terminating blank line")
	}
}

func TestResponseAccumulator_HeadersCompleteBareLF(t *testing.T) {
	var r responseAccumulator
	r.Write([]byte("HTTP/1.1 200 Connection established\n\n"))
	if !r.headersComplete() {
		t.Fatal("headersComplete() should accept bare LF blank line")
	}
}

func TestResponseAccumulator_HeadersCompleteAcrossChunks(t *testing.T) {
	var r responseAccumulator
	chunks := []string{"HTTP/1.1 ", "200 ", "OK\r\n", "Proxy-Agent: a\r\n", "\r", "\n"}
	for i, c := range chunks {
		r.Write([]byte(c))
		want := i == len(chunks)-1
		if got := r.headersComplete(); got != want {
			t.Errorf("after chunk %d: headersComplete() = %v, want %v", i, got, want)
		}
	}
}

func TestResponseAccumulator_Parse200(t *testing.T) {
	var r responseAccumulator
	r.Write([]byte("HTTP/1.1 200 Connection established\r\nProxy-Agent: puttle-test\r\n\r\n"))
	parsed, err := r.parse()
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	if parsed.Status != 200 {
		t.Errorf("Status = %d, want 200", parsed.Status)
	}
	if parsed.Headers["Proxy-Agent"] != "puttle-test" {
		t.Errorf("Headers[Proxy-Agent] = %q, want puttle-test", parsed.Headers["Proxy-Agent"])
	}
}

func TestResponseAccumulator_Parse407WithChallenge(t *testing.T) {
	var r responseAccumulator
	r.Write([]byte("HTTP/1.1 407 Proxy Authentication Required\r\n" +
		`Proxy-Authenticate: Digest realm="testrealm@host.com", nonce="abc123", qop="auth"` + "\r\n\r\n"))
	parsed, err := r.parse()
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	if parsed.Status != 407 {
		t.Errorf("Status = %d, want 407", parsed.Status)
	}
	want := `Digest realm="testrealm@host.com", nonce="abc123", qop="auth"`
	if parsed.Headers["Proxy-Authenticate"] != want {
		t.Errorf("Headers[Proxy-Authenticate] = %q, want %q", parsed.Headers["Proxy-Authenticate"], want)
	}
}

func TestResponseAccumulator_ParseLastWriteWinsOnDuplicateHeaders(t *testing.T) {
	var r responseAccumulator
	r.Write([]byte("HTTP/1.1 407 Proxy Authentication Required\r\n" +
		"Proxy-Authenticate: Basic realm=\"a\"\r\n" +
		"Proxy-Authenticate: Digest realm=\"b\"\r\n\r\n"))
	parsed, err := r.parse()
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	want := `Digest realm="b"`
	if parsed.Headers["Proxy-Authenticate"] != want {
		t.Errorf("Headers[Proxy-Authenticate] = %q, want %q (last write wins)", parsed.Headers["Proxy-Authenticate"], want)
	}
}

func TestResponseAccumulator_ParseRejectsMissingPrefix(t *testing.T) {
	var r responseAccumulator
	r.Write([]byte("garbage response\r\n\r\n"))
	if _, err := r.parse(); err == nil {
		t.Error("expected error for response missing HTTP/ prefix")
	}
}

func TestResponseAccumulator_ParseRejectsBadStatusCode(t *testing.T) {
	var r responseAccumulator
	r.Write([]byte("HTTP/1.1 XYZ Nonsense\r\n\r\n"))
	if _, err := r.parse(); err == nil {
		t.Error("expected error for non-numeric status code")
	}
}

func TestResponseAccumulator_ParseRejectsTruncatedStatusLine(t *testing.T) {
	var r responseAccumulator
	r.Write([]byte("HTTP/1.1\r\n\r\n"))
	if _, err := r.parse(); err == nil {
		t.Error("expected error for status line with no status code")
	}
}
