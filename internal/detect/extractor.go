package detect

import (
	"regexp"
	"strings"
)

// FileFeatures holds the signals extracted from a single changed file's
// unified diff. All line and token slices are normalized; the symbol
// sets come from best-effort pattern matching on the raw diff lines.
type FileFeatures struct {
	Path        string
	TopLevelDir string

	AddedLines   []string
	RemovedLines []string

	AddedTokens   []string
	RemovedTokens []string

	ImportsAdded   []string
	ImportsRemoved []string
	Functions      []string
	Classes        []string
}

// stopTokens are dropped during tokenization. They are so common across
// languages that they carry no similarity signal.
var stopTokens = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "this": {}, "that": {}, "with": {},
	"from": {}, "return": {}, "const": {}, "var": {}, "let": {},
	"function": {}, "func": {}, "def": {}, "class": {}, "import": {},
	"export": {}, "public": {}, "private": {}, "static": {}, "void": {},
	"int": {}, "string": {}, "bool": {}, "true": {}, "false": {},
	"nil": {}, "null": {}, "none": {}, "new": {}, "not": {}, "else": {},
}

// Import, function, and class signature patterns, tried in order against
// the raw (non-normalized) line. First match wins per category. These are
// heuristics spanning several source syntaxes, not parsers; both misses
// and spurious captures only perturb similarity scores.
var (
	importPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\s*import\s+.*?\bfrom\s+['"]([^'"]+)['"]`),
		regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`),
		regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import\b`),
		regexp.MustCompile(`^\s*#include\s*[<"]([^>"]+)[>"]`),
		regexp.MustCompile(`^\s*(?:import\s+)?(?:[A-Za-z_]\w*\s+)?"([\w./\-]+)"\s*$`),
		regexp.MustCompile(`^\s*import\s+([\w./\-]+)`),
		regexp.MustCompile(`^\s*(?:require|use)\s*\(?\s*['"]([^'"]+)['"]`),
	}

	functionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)`),
		regexp.MustCompile(`^\s*func\s+(?:\([^)]*\)\s*)?([A-Za-z_]\w*)\s*\(`),
		regexp.MustCompile(`^\s*(?:async\s+)?def\s+([A-Za-z_]\w*)\s*\(`),
		regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(?:async\s+)?(?:\([^)]*\)|[A-Za-z_$][\w$]*)\s*=>`),
		regexp.MustCompile(`^\s*(?:public|private|protected)\s+(?:static\s+)?[\w<>\[\],\s]+\s([A-Za-z_]\w*)\s*\([^)]*\)\s*\{`),
	}

	classPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?:export\s+)?(?:abstract\s+)?class\s+([A-Za-z_$][\w$]*)`),
		regexp.MustCompile(`^\s*type\s+([A-Za-z_]\w*)\s+(?:struct|interface)\b`),
		regexp.MustCompile(`^\s*(?:public\s+|private\s+)?(?:interface|trait|enum)\s+([A-Za-z_]\w*)`),
	}
)

// ExtractFileFeatures parses one file's unified-diff patch. The patch is
// truncated to maxPatchChars before parsing so a single pathological file
// cannot dominate the cost of a run. An empty patch (binary or oversized
// files on the platform side) yields path-only features.
func ExtractFileFeatures(path, patch string, maxPatchChars int) FileFeatures {
	f := FileFeatures{
		Path:        normalizePath(path),
		TopLevelDir: topLevelDir(path),
	}
	if patch == "" {
		return f
	}
	if maxPatchChars > 0 && len(patch) > maxPatchChars {
		patch = patch[:maxPatchChars]
	}

	for _, line := range strings.Split(patch, "\n") {
		if strings.HasPrefix(line, "@@") ||
			strings.HasPrefix(line, "+++") ||
			strings.HasPrefix(line, "---") {
			continue
		}
		var added bool
		switch {
		case strings.HasPrefix(line, "+"):
			added = true
		case strings.HasPrefix(line, "-"):
			added = false
		default:
			continue
		}
		raw := line[1:]

		if imp, ok := firstMatch(importPatterns, raw); ok {
			if added {
				f.ImportsAdded = append(f.ImportsAdded, imp)
			} else {
				f.ImportsRemoved = append(f.ImportsRemoved, imp)
			}
		}
		if fn, ok := firstMatch(functionPatterns, raw); ok {
			f.Functions = append(f.Functions, fn)
		}
		if cl, ok := firstMatch(classPatterns, raw); ok {
			f.Classes = append(f.Classes, cl)
		}

		normalized := NormalizeLine(raw)
		if normalized == "" {
			continue
		}
		tokens := Tokenize(normalized)
		if added {
			f.AddedLines = append(f.AddedLines, normalized)
			f.AddedTokens = append(f.AddedTokens, tokens...)
		} else {
			f.RemovedLines = append(f.RemovedLines, normalized)
			f.RemovedTokens = append(f.RemovedTokens, tokens...)
		}
	}
	return f
}

func firstMatch(patterns []*regexp.Regexp, line string) (string, bool) {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(line); m != nil {
			// Some patterns carry alternate capture groups; take the
			// first non-empty one.
			for _, g := range m[1:] {
				if g != "" {
					return strings.ToLower(g), true
				}
			}
		}
	}
	return "", false
}

var (
	blockCommentRe = regexp.MustCompile(`/\*.*?\*/`)
	lineCommentRe  = regexp.MustCompile(`(//|#|--\s).*$`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

// NormalizeLine strips comments, collapses whitespace, and lowercases a
// diff line so that formatting-only differences hash identically.
// Comment stripping is approximate: a comment marker inside a string
// literal truncates the line, which is acceptable noise for similarity
// purposes.
func NormalizeLine(line string) string {
	line = blockCommentRe.ReplaceAllString(line, " ")
	line = lineCommentRe.ReplaceAllString(line, "")
	line = whitespaceRe.ReplaceAllString(line, " ")
	return strings.ToLower(strings.TrimSpace(line))
}

var tokenSplitRe = regexp.MustCompile(`[^a-z0-9_]+`)

// Tokenize splits a normalized line into code tokens, dropping single
// characters and stop words.
func Tokenize(normalized string) []string {
	parts := tokenSplitRe.Split(normalized, -1)
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) <= 1 {
			continue
		}
		if _, stop := stopTokens[p]; stop {
			continue
		}
		tokens = append(tokens, p)
	}
	return tokens
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "./")
	return path
}

// topLevelDir returns the first path segment, or "." for files at the
// repository root.
func topLevelDir(path string) string {
	path = normalizePath(path)
	if i := strings.IndexByte(path, '/'); i > 0 {
		return path[:i]
	}
	return "."
}
