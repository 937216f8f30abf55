// Package links classifies pasted music links.
//
// A raw string (deep link, short link or web link) is normalized into a URL,
// matched against an ordered chain of provider rules, and rewritten into a
// canonical https form suitable for display, caching and oEmbed lookups.
//
// Everything in this package is pure: no I/O, no clock, no shared state.
package links

import (
	"errors"
	"net/url"
	"strings"
)

// ErrUnclassifiable is returned by callers that require a link, when
// Classify rejects the input.
var ErrUnclassifiable = errors.New("link could not be classified")

// Provider identifies the service hosting a music link.
type Provider string

const (
	ProviderSpotify       Provider = "spotify"
	ProviderYouTube       Provider = "youtube"
	ProviderSoundCloud    Provider = "soundcloud"
	ProviderAppleMusic    Provider = "appleMusic"
	ProviderApplePodcasts Provider = "applePodcasts"
	ProviderBandcamp      Provider = "bandcamp"
	ProviderTidal         Provider = "tidal"
	ProviderLinkOnly      Provider = "linkOnly"
	ProviderUnknown       Provider = "unknown"
)

var providerNames = map[Provider]string{
	ProviderSpotify:       "Spotify",
	ProviderYouTube:       "YouTube",
	ProviderSoundCloud:    "SoundCloud",
	ProviderAppleMusic:    "Apple Music",
	ProviderApplePodcasts: "Apple Podcasts",
	ProviderBandcamp:      "Bandcamp",
	ProviderTidal:         "Tidal",
	ProviderLinkOnly:      "Link",
	ProviderUnknown:       "Unknown",
}

// DisplayName returns the human label for the provider.
func (p Provider) DisplayName() string {
	if name, ok := providerNames[p]; ok {
		return name
	}
	return providerNames[ProviderUnknown]
}

// ParseProvider maps a stored provider value back to a Provider.
// Unrecognized values become ProviderUnknown.
func ParseProvider(s string) Provider {
	p := Provider(s)
	if _, ok := providerNames[p]; ok {
		return p
	}
	return ProviderUnknown
}

// Classification is the result of classifying a raw link.
type Classification struct {
	Provider Provider `json:"provider"`

	// OriginalURL is the normalized form of the user's input. It may keep a
	// non-http scheme (spotify:playlist:...).
	OriginalURL string `json:"original_url"`

	// CanonicalURL is always the provider-specific rewrite of OriginalURL,
	// or OriginalURL itself when no rewrite applies.
	CanonicalURL string `json:"canonical_url"`
}

// Classify normalizes raw and classifies it.
// Returns false when raw is blank or cannot be parsed as a URL.
func Classify(raw string) (Classification, bool) {
	u, ok := Normalize(raw)
	if !ok {
		return Classification{}, false
	}

	provider := DetectProvider(u)
	canonical := u
	if rewritten, ok := canonicalURL(provider, u); ok {
		canonical = rewritten
	}

	return Classification{
		Provider:     provider,
		OriginalURL:  u.String(),
		CanonicalURL: canonical.String(),
	}, true
}

// Parse is Classify with an error: ErrUnclassifiable when raw is rejected.
func Parse(raw string) (Classification, error) {
	c, ok := Classify(raw)
	if !ok {
		return Classification{}, ErrUnclassifiable
	}
	return c, nil
}

// Normalize trims raw and parses it as a URL, assuming https for inputs
// without a scheme.
//
//   - spotify:...          parsed as-is (opaque deep link)
//   - http://, https://    parsed as-is
//   - //host/path          https: prepended
//   - anything else        https:// prepended
func Normalize(raw string) (*url.URL, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, false
	}

	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "spotify:"):
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
	case strings.HasPrefix(s, "//"):
		s = "https:" + s
	default:
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return nil, false
	}
	if u.Scheme != "spotify" && u.Host == "" {
		return nil, false
	}
	return u, true
}

// DetectProvider applies the provider rules in priority order; the first
// match wins. Host comparisons ignore case and a leading "www.".
func DetectProvider(u *url.URL) Provider {
	if strings.EqualFold(u.Scheme, "spotify") {
		return ProviderSpotify
	}

	host := normalizedHost(u)
	path := u.Path

	switch {
	case strings.Contains(host, "podcasts.apple.com"),
		strings.Contains(host, "itunes.apple.com") && strings.Contains(path, "/podcast/"):
		return ProviderApplePodcasts
	case strings.Contains(host, "spotify.com"):
		return ProviderSpotify
	case strings.Contains(host, "youtube.com"),
		host == "youtu.be",
		strings.Contains(host, "youtube-nocookie.com"):
		return ProviderYouTube
	case strings.Contains(host, "soundcloud.com"):
		return ProviderSoundCloud
	case strings.Contains(host, "music.apple.com"),
		strings.Contains(host, "itunes.apple.com"):
		return ProviderAppleMusic
	case strings.Contains(host, "tidal.com"):
		return ProviderTidal
	case strings.Contains(host, "bandcamp.com"):
		return ProviderBandcamp
	default:
		return ProviderLinkOnly
	}
}

// normalizedHost returns the lower-cased host without port or "www." prefix.
func normalizedHost(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// canonicalURL returns the provider-specific rewrite of u, or false when
// no rewrite rule applies.
func canonicalURL(provider Provider, u *url.URL) (*url.URL, bool) {
	switch provider {
	case ProviderSpotify:
		if strings.EqualFold(u.Scheme, "spotify") {
			return spotifyWebURL(u)
		}
	case ProviderYouTube:
		if normalizedHost(u) == "youtu.be" {
			if watch, ok := youtubeWatchURL(u); ok {
				return watch, true
			}
		}
	}
	return enforceHTTPS(u)
}

// spotifyWebURL rewrites spotify:TYPE:ID to https://open.spotify.com/TYPE/ID.
// Share parameters after "?" or "#" are dropped.
func spotifyWebURL(u *url.URL) (*url.URL, bool) {
	parts := strings.Split(u.Opaque, ":")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, false
	}
	return &url.URL{
		Scheme: "https",
		Host:   "open.spotify.com",
		Path:   "/" + parts[0] + "/" + parts[1],
	}, true
}

// youtubeWatchURL rewrites https://youtu.be/ID to the long watch form.
func youtubeWatchURL(u *url.URL) (*url.URL, bool) {
	id := strings.Trim(u.Path, "/")
	if id == "" {
		return nil, false
	}
	return &url.URL{
		Scheme:   "https",
		Host:     "www.youtube.com",
		Path:     "/watch",
		RawQuery: url.Values{"v": {id}}.Encode(),
	}, true
}

// enforceHTTPS upgrades a missing or http scheme to https, leaving the rest
// of the URL untouched.
func enforceHTTPS(u *url.URL) (*url.URL, bool) {
	if u.Scheme != "" && !strings.EqualFold(u.Scheme, "http") {
		return nil, false
	}
	upgraded := *u
	upgraded.Scheme = "https"
	return &upgraded, true
}
