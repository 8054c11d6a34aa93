package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

const filePerms = 0o600

// cookie is the persisted form of one cookie.
type cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	HostOnly bool      `json:"host_only,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"http_only,omitempty"`
	Expires  time.Time `json:"expires,omitzero"`
}

func (c cookie) expired(now time.Time) bool {
	return !c.Expires.IsZero() && !c.Expires.After(now)
}

func (c cookie) matches(u *url.URL) bool {
	host := canonicalHost(u)
	if c.HostOnly {
		if host != c.Domain {
			return false
		}
	} else if host != c.Domain && !strings.HasSuffix(host, "."+c.Domain) {
		return false
	}
	if c.Secure && u.Scheme != "https" {
		return false
	}
	return pathMatch(requestPath(u), c.Path)
}

// Jar is a cookie jar persisted to a single JSON file. It implements
// http.CookieJar. A Jar with an empty path keeps cookies in memory only.
//
// Thread-safety: Jar is safe for concurrent use.
type Jar struct {
	mu      sync.Mutex
	path    string
	cookies []cookie
	now     func() time.Time
}

var _ http.CookieJar = (*Jar)(nil)

// Open loads the jar stored at path. A missing file yields an empty jar.
func Open(path string) (*Jar, error) {
	j := &Jar{path: path, now: time.Now}
	if path == "" {
		return j, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return j, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session jar: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return j, nil
	}
	if err := json.Unmarshal(data, &j.cookies); err != nil {
		return nil, fmt.Errorf("decode session jar %s: %w", path, err)
	}
	return j, nil
}

// Path returns the backing file, empty for an in-memory jar.
func (j *Jar) Path() string { return j.path }

// SetCookies implements http.CookieJar. Changes are written through to the
// backing file; write failures are dropped since the interface has no error
// return. Use Save to observe them.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	host := canonicalHost(u)
	for _, hc := range cookies {
		c := cookie{
			Name:     hc.Name,
			Value:    hc.Value,
			Domain:   host,
			HostOnly: true,
			Path:     hc.Path,
			Secure:   hc.Secure,
			HTTPOnly: hc.HttpOnly,
			Expires:  hc.Expires,
		}
		if d := strings.TrimPrefix(strings.ToLower(hc.Domain), "."); d != "" {
			if host != d && !strings.HasSuffix(host, "."+d) {
				continue
			}
			c.Domain = d
			c.HostOnly = false
		}
		if c.Path == "" || !strings.HasPrefix(c.Path, "/") {
			c.Path = defaultPath(u)
		}
		switch {
		case hc.MaxAge < 0:
			c.Expires = now.Add(-time.Second)
		case hc.MaxAge > 0:
			c.Expires = now.Add(time.Duration(hc.MaxAge) * time.Second)
		}

		j.cookies = slices.DeleteFunc(j.cookies, func(old cookie) bool {
			return old.Name == c.Name && old.Domain == c.Domain && old.Path == c.Path
		})
		if !c.expired(now) {
			j.cookies = append(j.cookies, c)
		}
	}
	_ = j.saveLocked()
}

// Cookies implements http.CookieJar. Longer paths sort first.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	var selected []cookie
	for _, c := range j.cookies {
		if !c.expired(now) && c.matches(u) {
			selected = append(selected, c)
		}
	}
	slices.SortStableFunc(selected, func(a, b cookie) int { return len(b.Path) - len(a.Path) })

	out := make([]*http.Cookie, len(selected))
	for i, c := range selected {
		out[i] = &http.Cookie{Name: c.Name, Value: c.Value}
	}
	return out
}

// Len returns the number of unexpired cookies.
func (j *Jar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.now()
	n := 0
	for _, c := range j.cookies {
		if !c.expired(now) {
			n++
		}
	}
	return n
}

// Save writes the jar to its file.
func (j *Jar) Save() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.saveLocked()
}

func (j *Jar) saveLocked() error {
	if j.path == "" {
		return nil
	}
	now := j.now()
	live := slices.DeleteFunc(slices.Clone(j.cookies), func(c cookie) bool { return c.expired(now) })
	if live == nil {
		live = []cookie{}
	}

	data, err := json.MarshalIndent(live, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session jar: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	if err := atomic.WriteFile(j.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write session jar: %w", err)
	}
	// atomic.WriteFile does not set permissions on new files
	if err := os.Chmod(j.path, filePerms); err != nil {
		return fmt.Errorf("set session jar permissions: %w", err)
	}
	return nil
}

// Clear drops every cookie and removes the backing file.
func (j *Jar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.cookies = nil
	if j.path == "" {
		return nil
	}
	if err := os.Remove(j.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session jar: %w", err)
	}
	return nil
}

func canonicalHost(u *url.URL) string {
	return strings.ToLower(u.Hostname())
}

func requestPath(u *url.URL) string {
	if u.Path == "" {
		return "/"
	}
	return u.Path
}

// defaultPath is the directory of the request path (RFC 6265 5.1.4).
func defaultPath(u *url.URL) string {
	p := requestPath(u)
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return "/"
	}
	return p[:i]
}

func pathMatch(reqPath, cookiePath string) bool {
	if reqPath == cookiePath {
		return true
	}
	if !strings.HasPrefix(reqPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || reqPath[len(cookiePath)] == '/'
}
