package links

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// appleIgnoredSegments are path segments that never carry a title on
// Apple Music and Apple Podcasts URLs.
var appleIgnoredSegments = map[string]bool{
	"us":       true,
	"podcast":  true,
	"album":    true,
	"playlist": true,
}

// titleCase capitalizes each word. A Caser keeps state, so one is built per
// call.
func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}

// FallbackTitle infers a display title from the URL alone, for use when no
// metadata service answers. Spotify, YouTube and SoundCloud links rely on
// oEmbed and never get a local title.
func FallbackTitle(c Classification) (string, bool) {
	u, err := url.Parse(c.CanonicalURL)
	if err != nil {
		return "", false
	}

	switch c.Provider {
	case ProviderAppleMusic, ProviderApplePodcasts:
		return appleTitle(u)
	case ProviderBandcamp, ProviderTidal, ProviderLinkOnly, ProviderUnknown:
		return lastSegmentTitle(u)
	default:
		return "", false
	}
}

func appleTitle(u *url.URL) (string, bool) {
	segments := pathSegments(u)
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if decoded, err := url.PathUnescape(seg); err == nil {
			seg = decoded
		}
		if appleIgnoredSegments[strings.ToLower(seg)] {
			continue
		}
		if strings.HasPrefix(seg, "id") || strings.HasPrefix(seg, "pl.") {
			continue
		}
		if utf8.RuneCountInString(seg) <= 2 {
			continue
		}
		return prettifySegment(segments[i])
	}
	return "", false
}

func lastSegmentTitle(u *url.URL) (string, bool) {
	segments := pathSegments(u)
	if len(segments) > 0 {
		return prettifySegment(segments[len(segments)-1])
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "" {
		return "", false
	}
	return titleCase(host), true
}

// pathSegments splits the escaped path and drops empty segments.
func pathSegments(u *url.URL) []string {
	var out []string
	for _, seg := range strings.Split(u.EscapedPath(), "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// prettifySegment turns "lofi-focus-mix.html" into "Lofi Focus Mix".
func prettifySegment(seg string) (string, bool) {
	if decoded, err := url.PathUnescape(seg); err == nil {
		seg = decoded
	}

	if i := strings.LastIndex(seg, "."); i >= 0 && i < len(seg)-1 {
		seg = seg[:i]
	}

	seg = strings.NewReplacer("-", " ", "_", " ").Replace(seg)
	seg = strings.Join(strings.Fields(seg), " ")
	if seg == "" {
		return "", false
	}
	return titleCase(seg), true
}
