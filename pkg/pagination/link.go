package pagination

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/tomnomnom/linkheader"
)

// NextLink returns the rel="next" target from the Link headers in h,
// resolved against base when it is relative. Relation names compare
// case-insensitively and a rel may list several space-separated relations.
func NextLink(h http.Header, base *url.URL) (string, bool) {
	for _, link := range linkheader.ParseMultiple(h.Values("Link")) {
		if !hasRel(link.Rel, "next") {
			continue
		}
		if base == nil {
			return link.URL, true
		}
		ref, err := url.Parse(link.URL)
		if err != nil {
			continue
		}
		return base.ResolveReference(ref).String(), true
	}
	return "", false
}

func hasRel(rels, rel string) bool {
	for _, r := range strings.Fields(rels) {
		if strings.EqualFold(r, rel) {
			return true
		}
	}
	return false
}
