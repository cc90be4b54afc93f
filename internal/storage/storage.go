// Package storage uploads optimized event photos to durable object storage
// and hands back their public addresses.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ObjectStore stores immutable photo blobs under unique keys.
//
// Put must never overwrite an existing object written by another job; key
// uniqueness is the caller's responsibility (see BuildKey). The returned
// address is a stable, publicly dereferenceable URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (publicURL string, err error)
}

const maxNameLen = 64

// BuildKey builds a collision-resistant object key for an uploaded photo.
// The nanosecond timestamp makes concurrent jobs unable to collide even
// when they upload files with the same name.
func BuildKey(eventID, originalName string, now time.Time) string {
	return fmt.Sprintf("events/%s/%d_%s.jpg", sanitizeName(eventID), now.UnixNano(), sanitizeName(originalName))
}

// sanitizeName turns an arbitrary filename into a safe key segment:
// diacritics removed, lowercased, extension dropped, anything outside
// [a-z0-9._-] collapsed to a dash.
func sanitizeName(name string) string {
	name = strings.TrimSuffix(name, path.Ext(name))
	name = removeDiacritics(name)
	name = strings.ToLower(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}

	s := strings.Trim(b.String(), "-")
	if s == "" {
		s = "photo"
	}
	if len(s) > maxNameLen {
		s = s[:maxNameLen]
	}
	return s
}

// removeDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func removeDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}
