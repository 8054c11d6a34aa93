// Package session holds ambient HTTP session state: a cookie jar persisted
// next to the store. Teardown clears it together with the store files.
package session
