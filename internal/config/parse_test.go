package config

import "testing"

func TestParseFile_Basic(t *testing.T) {
	data := []byte("num-threads=4\nlisten-port=9999\nproxy=http://a:b@proxy1.example:3128\nverbosity=DEBUG\n")
	cfg, err := ParseFile(data)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if cfg.NumThreads != 4 {
		t.Errorf("NumThreads = %d, want 4", cfg.NumThreads)
	}
	if cfg.ListenPort != 9999 {
		t.Errorf("ListenPort = %d, want 9999", cfg.ListenPort)
	}
	if cfg.Verbosity != "DEBUG" {
		t.Errorf("Verbosity = %q, want DEBUG", cfg.Verbosity)
	}
	if len(cfg.Proxies) != 1 || cfg.Proxies[0] != "http://a:b@proxy1.example:3128" {
		t.Errorf("Proxies = %v", cfg.Proxies)
	}
}

func TestParseFile_IgnoresBlankLinesAndComments(t *testing.T) {
	data := []byte("\n# a comment\n   \nproxy=http://p1.example:3128\n# another\nproxy=http://p2.example:3128\n")
	cfg, err := ParseFile(data)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if len(cfg.Proxies) != 2 {
		t.Fatalf("Proxies = %v, want 2 entries", cfg.Proxies)
	}
}

func TestParseFile_RepeatedProxyAccumulates(t *testing.T) {
	data := []byte("proxy=http://p1.example:3128\nproxy=http://p2.example:3128\nproxy=http://p3.example:3128\n")
	cfg, err := ParseFile(data)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	want := []string{"http://p1.example:3128", "http://p2.example:3128", "http://p3.example:3128"}
	if len(cfg.Proxies) != len(want) {
		t.Fatalf("Proxies = %v, want %v", cfg.Proxies, want)
	}
	for i, p := range want {
		if cfg.Proxies[i] != p {
			t.Errorf("Proxies[%d] = %q, want %q", i, cfg.Proxies[i], p)
		}
	}
}

func TestParseFile_LastScalarWins(t *testing.T) {
	data := []byte("listen-port=1111\nlisten-port=2222\n")
	cfg, err := ParseFile(data)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if cfg.ListenPort != 2222 {
		t.Errorf("ListenPort = %d, want 2222 (last wins)", cfg.ListenPort)
	}
}

func TestParseFile_RejectsUnknownKey(t *testing.T) {
	if _, err := ParseFile([]byte("bogus-key=1\n")); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestParseFile_RejectsMissingEquals(t *testing.T) {
	if _, err := ParseFile([]byte("num-threads\n")); err == nil {
		t.Error("expected error for line missing '='")
	}
}

func TestParseFile_RejectsNonNumericPort(t *testing.T) {
	if _, err := ParseFile([]byte("listen-port=not-a-number\n")); err == nil {
		t.Error("expected error for non-numeric listen-port")
	}
}

func TestParseFile_DialTTL(t *testing.T) {
	cfg, err := ParseFile([]byte("dial-ttl=64\n"))
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if cfg.DialTTL != 64 {
		t.Errorf("DialTTL = %d, want 64", cfg.DialTTL)
	}
}

func TestParseFile_RejectsNonNumericDialTTL(t *testing.T) {
	if _, err := ParseFile([]byte("dial-ttl=not-a-number\n")); err == nil {
		t.Error("expected error for non-numeric dial-ttl")
	}
}

func TestParseFile_TrimsWhitespaceAroundKeyAndValue(t *testing.T) {
	cfg, err := ParseFile([]byte("  num-threads = 3  \n"))
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if cfg.NumThreads != 3 {
		t.Errorf("NumThreads = %d, want 3", cfg.NumThreads)
	}
}
