package fallback

import "github.com/element-skin/yggdrasil/internal/yggdrasil/domain"

// defaultSkinDomains is advertised when no endpoint configures its own
// domain list.
var defaultSkinDomains = []string{
	".minecraft.net",
	".mojang.com",
}

// UnionDomains merges domain lists into a single deduplicated list, keeping
// first-seen order.
func UnionDomains(lists ...[]string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, d := range list {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	return out
}

// SkinDomains returns the deduplicated union of every endpoint's skin
// domain list, in first-seen order, falling back to the static defaults.
func SkinDomains(endpoints []domain.FallbackEndpoint) []string {
	lists := make([][]string, 0, len(endpoints))
	for _, ep := range endpoints {
		lists = append(lists, ep.SkinDomains)
	}
	out := UnionDomains(lists...)
	if len(out) == 0 {
		return append([]string(nil), defaultSkinDomains...)
	}
	return out
}
