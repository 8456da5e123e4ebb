package resolver

import (
	"context"
	"strings"

	"ldn/internal/constants"
)

// PrefixResolver derives the object id from URLs of the form
// <prefix><id>[/...], e.g. https://repo.example.org/items/<uuid>.
type PrefixResolver struct {
	prefixes []string
}

func NewPrefixResolver(prefixes []string) *PrefixResolver {
	return &PrefixResolver{prefixes: prefixes}
}

func (r *PrefixResolver) Name() string {
	return constants.ResolverTypePrefix
}

func (r *PrefixResolver) Resolve(_ context.Context, url string) (string, error) {
	for _, prefix := range r.prefixes {
		if prefix == "" || !strings.HasPrefix(url, prefix) {
			continue
		}
		rest := url[len(prefix):]
		if i := strings.IndexAny(rest, "?#"); i >= 0 {
			rest = rest[:i]
		}
		rest = strings.TrimPrefix(rest, "/")
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			rest = rest[:i]
		}
		if rest != "" {
			return rest, nil
		}
	}
	return "", nil
}
