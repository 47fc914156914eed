package device

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"a55pay-sdk/page"
)

func TestIdentityRegenerate(t *testing.T) {
	t.Parallel()

	doc := page.NewHeadless(page.Environment{})
	id := NewIdentity(doc, "https://collector.example/fp/tags.js?org_id=a55")
	first := id.Get()
	require.Len(t, first, 36)
	require.Equal(t, first, id.Get())

	second := id.Regenerate()
	require.NotEqual(t, first, second)
	require.Equal(t, second, id.Get())

	require.Eventually(t, func() bool {
		script := doc.ElementByID(CollectorScriptID)
		return script != nil && strings.Contains(script.Attr("src"), "session_id="+second)
	}, time.Second, 5*time.Millisecond)

	third := id.Regenerate()
	require.Eventually(t, func() bool {
		script := doc.ElementByID(CollectorScriptID)
		return script != nil && strings.Contains(script.Attr("src"), "session_id="+third)
	}, time.Second, 5*time.Millisecond)
	require.Len(t, doc.Head().QueryAll("#"+CollectorScriptID), 1)
}

func TestIdentityBackToBackRegenerate(t *testing.T) {
	t.Parallel()

	for n := 0; n < 50; n++ {
		doc := page.NewHeadless(page.Environment{})
		id := NewIdentity(doc, "https://collector.example/fp/tags.js")

		id.Regenerate()
		last := id.Regenerate()

		require.Eventually(t, func() bool {
			script := doc.ElementByID(CollectorScriptID)
			return script != nil && strings.Contains(script.Attr("src"), "session_id="+last)
		}, time.Second, time.Millisecond)
		time.Sleep(5 * time.Millisecond)

		scripts := doc.Head().QueryAll("#" + CollectorScriptID)
		require.Len(t, scripts, 1)
		require.Contains(t, scripts[0].Attr("src"), "session_id="+last)
		require.Equal(t, last, id.Get())
	}
}

func TestIdentityScriptFailureKeepsID(t *testing.T) {
	t.Parallel()

	doc := page.NewHeadless(page.Environment{})
	doc.ScriptHook = func(context.Context, string) error { return errors.New("blocked by CSP") }
	id := NewIdentity(doc, "https://collector.example/fp/tags.js")

	got := id.Regenerate()
	require.NotEmpty(t, got)
	require.Equal(t, got, id.Get())
}

func TestChainResolver(t *testing.T) {
	t.Parallel()

	failing := ResolverFunc(func(context.Context) (string, error) { return "", errors.New("down") })

	t.Run("first success wins", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ip":"203.0.113.7"}`))
		}))
		defer srv.Close()

		chain := ChainResolver{Resolvers: []IPResolver{failing, HTTPResolver{URL: srv.URL}}}
		require.Equal(t, "203.0.113.7", chain.Resolve(context.Background()))
	})

	t.Run("plain text bodies", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("198.51.100.4\n"))
		}))
		defer srv.Close()

		ip, err := HTTPResolver{URL: srv.URL}.ResolveIP(context.Background())
		require.NoError(t, err)
		require.Equal(t, "198.51.100.4", ip)
	})

	t.Run("all strategies fail", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>captcha</html>"))
		}))
		defer srv.Close()

		chain := ChainResolver{
			Resolvers:  []IPResolver{failing, HTTPResolver{URL: srv.URL}, StaticResolver("not-an-ip")},
			PerAttempt: 100 * time.Millisecond,
		}
		require.Equal(t, "", chain.Resolve(context.Background()))
	})
}

func TestCollect(t *testing.T) {
	t.Parallel()

	doc := page.NewHeadless(page.Environment{
		UserAgent:      "Mozilla/5.0",
		Language:       "pt-BR",
		ScreenWidth:    1920,
		ScreenHeight:   1080,
		TimezoneOffset: 180,
	})
	id := NewIdentity(doc, "")
	c := NewCollector(id, doc, ChainResolver{})

	fp := c.Collect(context.Background(), "ref-1", "192.0.2.10")
	require.Equal(t, id.Get(), fp.DeviceID)
	require.Equal(t, "ref-1", fp.SessionID)
	require.Equal(t, "192.0.2.10", fp.IPAddress)
	require.Equal(t, "pt-BR", fp.Language)
	require.Equal(t, 1920, fp.ScreenWidth)
	require.Equal(t, 180, fp.TimezoneOffset)

	require.Equal(t, "", c.Collect(context.Background(), "", "").IPAddress)
}
