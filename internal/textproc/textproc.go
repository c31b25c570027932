// Package textproc implements the text cleaning, aggressive normalization
// and similarity scoring used by normalization and duplicate detection.
package textproc

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

var (
	reURL      = regexp.MustCompile(`https?://\S+`)
	reUsername = regexp.MustCompile(`(?i)@([a-z0-9_]+)`)

	reAmp       = regexp.MustCompile(`\s+&amp;?\s+`)
	reMention   = regexp.MustCompile(`@[A-Za-z0-9_]+\b`)
	reTimeAmPM  = regexp.MustCompile(`(?i)\b\d\d?:\d\d\s*[ap]\.?m\.?\b`)
	reHourAmPM  = regexp.MustCompile(`(?i)\b\d\d?\s*[ap]\.?m\.?\b`)
	reTimeFull  = regexp.MustCompile(`\b\d\d?:\d\d:\d\d\b`)
	reTimeShort = regexp.MustCompile(`\b\d\d?:\d\d\b`)
	reFullURL   = regexp.MustCompile(`(?i)\bhttps?:\S+`)
	reTrailURL  = regexp.MustCompile(`(?i)\s+https?$`)
	reNonText   = regexp.MustCompile(`[^\w\d\s:'",.()#@?!/’_]+`)
	reNewline   = regexp.MustCompile(`\n`)
	reSpaces    = regexp.MustCompile(`\s{2,}`)
)

// CleanText removes URLs and @username mentions from post text.
func CleanText(text string) string {
	text = reURL.ReplaceAllString(text, "")
	text = reUsername.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// NormalizeAggressive rewrites post text into a canonical form for
// similarity comparison: mentions, times and URLs are replaced with
// placeholder tokens, unusual characters and repeated whitespace are
// stripped.
func NormalizeAggressive(text string) string {
	text = reAmp.ReplaceAllString(text, " and ")
	text = reMention.ReplaceAllString(text, "_USER_ ")
	text = reTimeAmPM.ReplaceAllString(text, "_TIME_")
	text = reHourAmPM.ReplaceAllString(text, "_TIME_")
	text = reTimeFull.ReplaceAllString(text, "_TIME_")
	text = reTimeShort.ReplaceAllString(text, "_TIME_")
	text = reFullURL.ReplaceAllString(text, " _URL_ ")
	text = reTrailURL.ReplaceAllString(text, " _URL_")
	text = reNonText.ReplaceAllString(text, "")
	text = reNewline.ReplaceAllString(text, " ")
	text = reSpaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// FilterTokens deduplicates analyzer output and drops single characters and
// protocol noise.
func FilterTokens(tokens []string) []string {
	notAllowed := map[string]struct{}{
		"rt": {}, "http": {}, "https": {}, "ftp": {},
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		key := strings.ToLower(strings.TrimSpace(t))
		if len(key) < 2 {
			continue
		}
		if _, bad := notAllowed[key]; bad {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Ratio computes a similarity score in [0, 1] between two strings based on
// their edit distance: 1 means identical, 0 means nothing in common.
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}
