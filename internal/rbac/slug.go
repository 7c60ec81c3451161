package rbac

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/iliyamo/opla-backend/internal/model"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// maxSlugSuffix bounds the collision search.
const maxSlugSuffix = 1000

// Slug column widths.
const (
	MaxRoleSlugLen = 100
	MaxOrgSlugLen  = 255
)

// Slugify lowercases s, collapses every run of non-alphanumerics into a
// single '-' and trims leading and trailing dashes.
func Slugify(s string) string {
	s = nonSlug.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

// UniqueSlug returns base if free, otherwise the first free base-N for
// N=1..maxSlugSuffix. Candidates never exceed maxLen bytes; base is cut
// short to make room for the suffix. taken reports whether a candidate is
// already in use.
func UniqueSlug(ctx context.Context, base string, maxLen int, taken func(ctx context.Context, slug string) (bool, error)) (string, error) {
	for n := 0; n <= maxSlugSuffix; n++ {
		candidate := slugCandidate(base, n, maxLen)
		used, err := taken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !used {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no free slug for %q", model.ErrConflict, base)
}

// slugCandidate is base for n == 0 and base-n otherwise, truncated to maxLen.
// Slugify output is ASCII, so cutting on a byte boundary is safe.
func slugCandidate(base string, n, maxLen int) string {
	suffix := ""
	if n > 0 {
		suffix = fmt.Sprintf("-%d", n)
	}
	if keep := maxLen - len(suffix); maxLen > 0 && len(base) > keep {
		base = strings.TrimRight(base[:max(keep, 0)], "-")
	}
	return base + suffix
}
