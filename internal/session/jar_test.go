package session

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	require.NoError(t, err)
	return u
}

func names(cookies []*http.Cookie) []string {
	out := make([]string, len(cookies))
	for i, c := range cookies {
		out[i] = c.Name + "=" + c.Value
	}
	return out
}

func TestJar_HostOnlyCookie(t *testing.T) {
	j, err := Open("")
	require.NoError(t, err)

	j.SetCookies(mustURL(t, "https://api.example.com/v1/login"), []*http.Cookie{{Name: "sid", Value: "1"}})

	assert.Equal(t, []string{"sid=1"}, names(j.Cookies(mustURL(t, "https://api.example.com/v1/items"))))
	assert.Empty(t, j.Cookies(mustURL(t, "https://api.example.com/other")), "default path is /v1")
	assert.Empty(t, j.Cookies(mustURL(t, "https://www.example.com/v1/items")))
}

func TestJar_DomainCookie(t *testing.T) {
	j, _ := Open("")

	j.SetCookies(mustURL(t, "https://api.example.com/"), []*http.Cookie{{Name: "d", Value: "x", Domain: ".example.com", Path: "/"}})
	j.SetCookies(mustURL(t, "https://api.example.com/"), []*http.Cookie{{Name: "evil", Value: "x", Domain: "other.com"}})

	assert.Equal(t, []string{"d=x"}, names(j.Cookies(mustURL(t, "https://www.example.com/a"))))
	assert.Empty(t, j.Cookies(mustURL(t, "https://other.com/")))
}

func TestJar_SecureAndPathOrdering(t *testing.T) {
	j, _ := Open("")
	u := mustURL(t, "https://example.com/")

	j.SetCookies(u, []*http.Cookie{
		{Name: "short", Value: "1", Path: "/"},
		{Name: "long", Value: "2", Path: "/a/b"},
		{Name: "sec", Value: "3", Path: "/", Secure: true},
	})

	assert.Equal(t, []string{"long=2", "short=1", "sec=3"}, names(j.Cookies(mustURL(t, "https://example.com/a/b/c"))))
	assert.Equal(t, []string{"short=1"}, names(j.Cookies(mustURL(t, "http://example.com/"))))
	assert.Equal(t, []string{"short=1", "sec=3"}, names(j.Cookies(mustURL(t, "https://example.com/a/bc"))))
}

func TestJar_ReplaceAndExpire(t *testing.T) {
	j, _ := Open("")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }
	u := mustURL(t, "https://example.com/")

	j.SetCookies(u, []*http.Cookie{{Name: "a", Value: "1", Path: "/", MaxAge: 60}})
	j.SetCookies(u, []*http.Cookie{{Name: "a", Value: "2", Path: "/", MaxAge: 60}})
	assert.Equal(t, []string{"a=2"}, names(j.Cookies(u)))

	now = now.Add(2 * time.Minute)
	assert.Empty(t, j.Cookies(u))
	assert.Equal(t, 0, j.Len())

	j.SetCookies(u, []*http.Cookie{{Name: "b", Value: "1", Path: "/"}})
	j.SetCookies(u, []*http.Cookie{{Name: "b", Path: "/", MaxAge: -1}})
	assert.Empty(t, j.Cookies(u))
}

func TestJar_PersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cookies.json")
	j, err := Open(path)
	require.NoError(t, err)

	j.SetCookies(mustURL(t, "https://example.com/"), []*http.Cookie{{Name: "sid", Value: "abc", Path: "/"}})

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePerms), info.Mode().Perm())

	reloaded, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"sid=abc"}, names(reloaded.Cookies(mustURL(t, "https://example.com/x"))))
	assert.Equal(t, path, reloaded.Path())
}

func TestJar_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	j, _ := Open(path)
	j.SetCookies(mustURL(t, "https://example.com/"), []*http.Cookie{{Name: "sid", Value: "abc"}})

	require.NoError(t, j.Clear())
	require.NoError(t, j.Clear(), "clearing twice is fine")

	assert.Equal(t, 0, j.Len())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestOpen_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	j, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 0, j.Len())
}

func TestPathMatch(t *testing.T) {
	assert.True(t, pathMatch("/a", "/a"))
	assert.True(t, pathMatch("/a/b", "/a"))
	assert.True(t, pathMatch("/a/b", "/a/"))
	assert.False(t, pathMatch("/ab", "/a"))
	assert.False(t, pathMatch("/", "/a"))
}
