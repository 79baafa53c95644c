package util

import (
	"net/http"
	"net/netip"
	"testing"
)

func addr(t *testing.T, s string) netip.Addr {
	t.Helper()
	a, err := netip.ParseAddr(s)
	if err != nil {
		t.Fatalf("ParseAddr(%q): %v", s, err)
	}
	return a
}

func TestSpliceIPv6(t *testing.T) {
	tests := []struct {
		name      string
		request   string
		suffix    string
		prefixLen uint8
		want      string
	}{
		{
			name:      "48-bit split",
			request:   "2:3:4:5:6:7:8:9",
			suffix:    "0:0:0:1::5",
			prefixLen: 48,
			want:      "2:3:4:1::5",
		},
		{
			name:      "full prefix returns request unchanged",
			request:   "2001:db8::1234",
			suffix:    "::ffff",
			prefixLen: 128,
			want:      "2001:db8::1234",
		},
		{
			name:      "64-bit split",
			request:   "2001:db8:1:2:aaaa:bbbb:cccc:dddd",
			suffix:    "::1",
			prefixLen: 64,
			want:      "2001:db8:1:2::1",
		},
		{
			name:      "single bit from request",
			request:   "8000::",
			suffix:    "::",
			prefixLen: 1,
			want:      "8000::",
		},
		{
			name:      "split inside a byte",
			request:   "ffff:ffff:ffff:ffff::",
			suffix:    "::",
			prefixLen: 49,
			want:      "ffff:ffff:ffff:8000::",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SpliceIPv6(addr(t, tt.request), addr(t, tt.suffix), tt.prefixLen)
			if got != addr(t, tt.want) {
				t.Errorf("SpliceIPv6(%s, %s, %d) = %s, want %s",
					tt.request, tt.suffix, tt.prefixLen, got, tt.want)
			}
		})
	}
}

// bitAt returns bit i (0 = most significant) of a 16-byte address.
func bitAt(a [16]byte, i int) byte {
	return a[i/8] >> (7 - i%8) & 1
}

func TestSpliceIPv6EveryPrefixLength(t *testing.T) {
	request := addr(t, "ffee:ddcc:bbaa:9988:7766:5544:3322:1100").As16()
	suffix := addr(t, "123:4567:89ab:cdef:123:4567:89ab:cdef").As16()

	for prefixLen := 0; prefixLen <= 128; prefixLen++ {
		got := SpliceIPv6(netip.AddrFrom16(request), netip.AddrFrom16(suffix), uint8(prefixLen)).As16()
		for i := 0; i < 128; i++ {
			want := suffix
			if i < prefixLen {
				want = request
			}
			if bitAt(got, i) != bitAt(want, i) {
				t.Fatalf("prefixLen %d: bit %d = %d, want %d", prefixLen, i, bitAt(got, i), bitAt(want, i))
			}
		}
	}
}

func TestParseLANPrefix(t *testing.T) {
	p, err := ParseLANPrefix("2001:db8::/56")
	if err != nil {
		t.Fatalf("ParseLANPrefix: %v", err)
	}
	if p.Bits() != 56 || p.Addr() != addr(t, "2001:db8::") {
		t.Errorf("got %v, want 2001:db8::/56", p)
	}

	for _, s := range []string{
		"2001:db8::",     // no slash
		"nonsense/64",    // bad address
		"2001:db8::/129", // length out of range
		"1.2.3.0/24",     // not IPv6
		"",
	} {
		if _, err := ParseLANPrefix(s); err == nil {
			t.Errorf("ParseLANPrefix(%q): expected error", s)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "x-forwarded-for first entry wins",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"},
			want:       "203.0.113.7",
		},
		{
			name:       "x-real-ip fallback",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "203.0.113.8"},
			want:       "203.0.113.8",
		},
		{
			name:       "remote addr host port",
			remoteAddr: "192.0.2.5:5678",
			want:       "192.0.2.5",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "192.0.2.6",
			want:       "192.0.2.6",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := http.NewRequest("GET", "/update", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := GetClientIP(r); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
