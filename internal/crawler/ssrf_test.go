package crawler

import (
	"context"
	"fmt"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func guardWithHosts(hosts map[string][]string) *Guard {
	return &Guard{
		lookup: func(_ context.Context, host string) ([]netip.Addr, error) {
			ips, ok := hosts[host]
			if !ok {
				return nil, fmt.Errorf("no such host %s", host)
			}
			addrs := make([]netip.Addr, 0, len(ips))
			for _, ip := range ips {
				addrs = append(addrs, netip.MustParseAddr(ip))
			}
			return addrs, nil
		},
	}
}

func TestGuardRejectsSchemes(t *testing.T) {
	g := guardWithHosts(nil)
	for _, raw := range []string{"ftp://example.com/", "file:///etc/passwd", "gopher://example.com"} {
		assert.Error(t, g.CheckURL(context.Background(), raw), "url %s", raw)
	}
}

func TestGuardRejectsLiteralAddresses(t *testing.T) {
	g := guardWithHosts(nil)
	blocked := []string{
		"http://127.0.0.1/",
		"http://10.0.0.5/admin",
		"http://172.16.3.4/",
		"http://192.168.1.1/",
		"http://169.254.169.254/latest/meta-data",
		"http://[::1]/",
		"http://[fc00::1]/",
		"http://[fe80::1]/",
		"http://0.0.0.0/",
		"http://localhost/",
	}
	for _, raw := range blocked {
		assert.Error(t, g.CheckURL(context.Background(), raw), "url %s", raw)
	}
	assert.NoError(t, g.CheckURL(context.Background(), "https://93.184.216.34/"))
}

func TestGuardRejectsHostsResolvingPrivate(t *testing.T) {
	g := guardWithHosts(map[string][]string{
		"public.example.com":  {"93.184.216.34"},
		"rebind.example.com":  {"93.184.216.34", "10.0.0.5"},
		"private.example.com": {"192.168.0.10"},
	})
	ctx := context.Background()

	require.NoError(t, g.CheckURL(ctx, "https://public.example.com/"))
	// one private answer poisons the whole host
	assert.Error(t, g.CheckURL(ctx, "https://rebind.example.com/"))
	assert.Error(t, g.CheckURL(ctx, "https://private.example.com/"))
	assert.Error(t, g.CheckURL(ctx, "https://unknown.example.com/"))
}

func TestGuardTransportBlocksPrivateDial(t *testing.T) {
	g := NewGuard()
	tr := g.Transport(0)
	require.NotNil(t, tr.DialContext)
	_, err := tr.DialContext(context.Background(), "tcp", "127.0.0.1:80")
	assert.Error(t, err)
}

func TestBlockedAddrMappedIPv4(t *testing.T) {
	assert.True(t, blockedAddr(netip.MustParseAddr("::ffff:127.0.0.1")))
	assert.True(t, blockedAddr(netip.MustParseAddr("::ffff:192.168.1.1")))
	assert.False(t, blockedAddr(netip.MustParseAddr("::ffff:93.184.216.34")))
}
