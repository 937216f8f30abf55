package links

import "net/url"

// oembedEndpoints lists the providers with a well-known oEmbed endpoint.
var oembedEndpoints = map[Provider]struct {
	base  string
	extra url.Values
}{
	ProviderSpotify:    {base: "https://open.spotify.com/oembed"},
	ProviderYouTube:    {base: "https://www.youtube.com/oembed", extra: url.Values{"format": {"json"}}},
	ProviderSoundCloud: {base: "https://soundcloud.com/oembed"},
	ProviderTidal:      {base: "https://oembed.tidal.com/"},
}

// SupportsOEmbed reports whether the provider has a known oEmbed endpoint.
func (p Provider) SupportsOEmbed() bool {
	_, ok := oembedEndpoints[p]
	return ok
}

// OEmbedEndpoint returns the oEmbed request URL for a classified link.
// Returns false for providers without oEmbed support.
func OEmbedEndpoint(c Classification) (string, bool) {
	ep, ok := oembedEndpoints[c.Provider]
	if !ok {
		return "", false
	}

	q := url.Values{}
	for k, vs := range ep.extra {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("url", c.CanonicalURL)

	return ep.base + "?" + q.Encode(), true
}
