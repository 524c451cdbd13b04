package helpers

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/url"
	"path"
	"strings"
	"time"
)

func GetSplitPart(target string, separate string, index int) (string, error) {
	parts := strings.Split(target, separate)
	if index >= len(parts) {
		return "", errors.New("index out of range")
	}
	return parts[index], nil
}

// ListingIDFromURL reads the numeric id from a detail URL such as
// https://www.luxuryestate.com/p123456-villa-for-sale-marbella.
func ListingIDFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if path.Base(path.Dir(u.Path)) == "p" && isDigits(base) {
		return base
	}
	slug, err := GetSplitPart(base, "-", 0)
	if err != nil || !strings.HasPrefix(slug, "p") {
		return ""
	}
	id := strings.TrimPrefix(slug, "p")
	if !isDigits(id) {
		return ""
	}
	return id
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ResolveURL resolves href against base. Invalid input returns href as is.
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}

// Jitter returns a random duration between min and max inclusive
func Jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min+1)
}

// Sleep waits for d, returning early with ctx.Err() when ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
