package toolversions

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	goversion "github.com/hashicorp/go-version"
)

// unstableRe excludes pre-release / development version strings from
// best-stable selection, ported from the xxenv-latest pattern used by the
// reference install.
var unstableRe = regexp.MustCompile(`(?i)(^Available versions:|-src|-dev|-latest|-stm|[-.]rc|-alpha|-beta|[-.]pre|-next|(a|b|c)[0-9]+|snapshot|master)`)

// FilterStable removes unstable-looking versions and versions that don't
// match query (a plain string prefix, per asdf's "latest:Q" semantics).
func FilterStable(versions []string, query string) []string {
	out := make([]string, 0, len(versions))
	for _, v := range versions {
		v = strings.TrimSpace(v)
		if v == "" || unstableRe.MatchString(v) {
			continue
		}
		if query != "" && !strings.HasPrefix(v, query) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// BestStable returns the numerically-greatest candidate in versions,
// preferring go-version's parser and falling back to semver for candidates
// go-version can't parse (many runtime version strings are semver-like but
// not strictly SemVer). Falls back to lexical ordering (last element) if
// neither parser accepts any candidate, matching the reference
// implementation's "last survivor wins" behaviour.
func BestStable(versions []string) string {
	if len(versions) == 0 {
		return ""
	}

	type parsed struct {
		raw string
		gv  *goversion.Version
		sv  *semver.Version
	}
	candidates := make([]parsed, 0, len(versions))
	for _, v := range versions {
		p := parsed{raw: v}
		if gv, err := goversion.NewVersion(v); err == nil {
			p.gv = gv
		} else if sv, err := semver.NewVersion(v); err == nil {
			p.sv = sv
		}
		candidates = append(candidates, p)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		switch {
		case a.gv != nil && b.gv != nil:
			return a.gv.LessThan(b.gv)
		case a.sv != nil && b.sv != nil:
			return a.sv.LessThan(b.sv)
		case (a.gv != nil || a.sv != nil) && b.gv == nil && b.sv == nil:
			return false
		case a.gv == nil && a.sv == nil && (b.gv != nil || b.sv != nil):
			return true
		default:
			return a.raw < b.raw
		}
	})

	return candidates[len(candidates)-1].raw
}
