// package formatter holds the pure functions of the download pipeline:
// format preference normalization, extension scoring, and filename shaping.
// Nothing here performs I/O; every function is total and deterministic.
package formatter

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultPreference is the format order used when the user supplies nothing
// usable.
var DefaultPreference = []string{"aiff", "flac", "wav"}

// losslessExts is the set of extensions treated as lossless throughout the
// pipeline.
var losslessExts = map[string]bool{
	".flac": true,
	".alac": true,
	".wav":  true,
	".ape":  true,
	".wv":   true,
	".aiff": true,
	".aif":  true,
	".tta":  true,
}

// allowedTokens is the preference vocabulary: the rankable lossless formats
// plus the synthetic "lossy" catchall bucket.
var allowedTokens = map[string]bool{
	"aiff":  true,
	"flac":  true,
	"wav":   true,
	"alac":  true,
	"lossy": true,
}

// fallbackOrder keeps unlisted lossless formats ranked above the lossy bucket
// when the user did not mention them.
var fallbackOrder = []string{".aiff", ".aif", ".flac", ".wav", ".alac"}

// NormalizePreference returns a clean, de-duplicated format preference list.
//
// Each part may be a single token or a comma-separated string. Tokens are
// lower-cased, leading dots stripped, and "aif" mapped to "aiff"; anything
// outside the vocabulary is dropped silently. The result is never empty:
// when nothing valid remains, [DefaultPreference] is returned. Idempotent.
func NormalizePreference(parts ...string) []string {
	var tokens []string
	for _, part := range parts {
		for _, raw := range strings.Split(part, ",") {
			if raw = strings.TrimSpace(raw); raw != "" {
				tokens = append(tokens, raw)
			}
		}
	}

	normalized := make([]string, 0, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for _, raw := range tokens {
		key := strings.TrimLeft(strings.ToLower(raw), ".")
		if key == "aif" {
			key = "aiff"
		}
		if !allowedTokens[key] || seen[key] {
			continue
		}
		seen[key] = true
		normalized = append(normalized, key)
	}

	if len(normalized) == 0 {
		return append([]string(nil), DefaultPreference...)
	}
	return normalized
}

// ApplyLossyPolicy shapes an already-normalized preference list to a run's
// fallback setting: "lossy" is appended when the fallback is allowed and
// absent, and stripped when the fallback is disallowed.
func ApplyLossyPolicy(preference []string, allowLossy bool) []string {
	shaped := make([]string, 0, len(preference)+1)
	for _, token := range preference {
		if token == "lossy" && !allowLossy {
			continue
		}
		shaped = append(shaped, token)
	}
	if allowLossy && !contains(shaped, "lossy") {
		shaped = append(shaped, "lossy")
	}
	if len(shaped) == 0 {
		return append([]string(nil), DefaultPreference...)
	}
	return shaped
}

func contains(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}

// IsLosslessPath reports whether the path's extension is a lossless format.
func IsLosslessPath(path string) bool {
	return losslessExts[extOf(path)]
}

// ExtScore ranks a file's extension against the preference order; higher is
// better and 0 means unranked. The ranking appends [fallbackOrder] to the
// preference so an unlisted lossless format still beats the lossy bucket
// unless lossy was explicitly preferred ahead of it. Lossy files only score
// when "lossy" appears in the preference.
func ExtScore(path string, preference []string) int {
	ext := extOf(path)
	prefs := NormalizePreference(preference...)

	baseline := make([]string, 0, len(prefs)+len(fallbackOrder))
	for _, token := range prefs {
		if token == "lossy" {
			baseline = append(baseline, "lossy")
		} else {
			baseline = append(baseline, "."+token)
		}
	}
	baseline = append(baseline, fallbackOrder...)

	ordered := make([]string, 0, len(baseline))
	seen := make(map[string]bool, len(baseline))
	for _, name := range baseline {
		if !seen[name] {
			seen[name] = true
			ordered = append(ordered, name)
		}
	}

	weights := make(map[string]int, len(ordered))
	for i, name := range ordered {
		weights[name] = len(ordered) - i
	}

	if w, ok := weights[ext]; ok {
		return w
	}
	if !IsLosslessPath(path) {
		if w, ok := weights["lossy"]; ok {
			return w
		}
	}
	return 0
}

// extOf returns the lowercased extension of the path's final component,
// tolerating peer paths that use backslashes.
func extOf(path string) string {
	return strings.ToLower(filepath.Ext(BasenameAny(path)))
}

// BasenameAny returns the filename component regardless of slash convention;
// Soulseek peers on Windows report backslash-separated paths.
func BasenameAny(path string) string {
	normalized := strings.ReplaceAll(path, "\\", "/")
	if idx := strings.LastIndex(normalized, "/"); idx >= 0 {
		return normalized[idx+1:]
	}
	return normalized
}

// illegalFilenameChars are rejected by at least one common filesystem.
const illegalFilenameChars = `\/:*?"<>|`

// SafeFilename converts name to a filesystem-safe form while preserving
// spaces and dashes: accents fold to ASCII via NFKD, illegal characters are
// removed, and whitespace collapses to single spaces.
func SafeFilename(name string) string {
	folded := norm.NFKD.String(name)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r > unicode.MaxASCII || strings.ContainsRune(illegalFilenameChars, r) {
			continue
		}
		b.WriteRune(r)
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

var playlistURLPattern = regexp.MustCompile(`playlist/([a-zA-Z0-9]+)`)

// ExtractPlaylistID pulls a Spotify playlist ID out of a share URL or a
// spotify:playlist: URI, returning bare IDs verbatim.
func ExtractPlaylistID(ref string) string {
	if strings.Contains(ref, "playlist") && strings.Contains(ref, "/") {
		if m := playlistURLPattern.FindStringSubmatch(ref); m != nil {
			return m[1]
		}
	}
	if strings.HasPrefix(ref, "spotify:playlist:") {
		parts := strings.Split(ref, ":")
		return parts[len(parts)-1]
	}
	return ref
}
