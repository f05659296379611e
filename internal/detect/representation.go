package detect

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/prtriage/prtriage/internal/types"
)

// Representation is the derived, comparable identity of one pull
// request: its file footprint, token bags, structural symbols, content
// hashes, and a hashed metadata embedding. It is immutable after
// construction; a changed pull request gets a fresh build, never a patch
// of an existing one.
type Representation struct {
	Number   int
	Title    string
	Body     string
	BaseRef  string
	State    types.State
	MergedAt *time.Time

	FileSet      map[string]struct{}
	TopLevelDirs map[string]struct{}

	ChangedFunctions map[string]struct{}
	ChangedClasses   map[string]struct{}
	ImportsAdded     map[string]struct{}
	ImportsRemoved   map[string]struct{}

	AddedTokenFreq   map[string]int
	RemovedTokenFreq map[string]int

	// MetadataVector is a signed random-projection sketch of the title,
	// body, and structural signals, L2-normalized (zero vector when
	// there is no text at all).
	MetadataVector []float64

	// Content hashes over sorted normalized text. InversePatchFingerprint
	// swaps the added/removed order so an exact revert of another pull
	// request carries that other's PatchFingerprint here.
	FilePathHash            string
	NormalizedDiffHash      string
	PatchFingerprint        string
	InversePatchFingerprint string
}

// BuildRepresentation runs feature extraction over every changed file
// and aggregates the results. The output is deterministic for identical
// inputs and configuration: all multi-element inputs are sorted before
// hashing so diff ordering never leaks into the fingerprints.
func BuildRepresentation(pr types.PullRequest, files []types.ChangedFile, cfg Config) *Representation {
	cfg = cfg.Normalized()

	rep := &Representation{
		Number:           pr.Number,
		Title:            pr.Title,
		Body:             pr.Body,
		BaseRef:          pr.Base.Ref,
		State:            pr.State,
		MergedAt:         pr.MergedAt,
		FileSet:          make(map[string]struct{}),
		TopLevelDirs:     make(map[string]struct{}),
		ChangedFunctions: make(map[string]struct{}),
		ChangedClasses:   make(map[string]struct{}),
		ImportsAdded:     make(map[string]struct{}),
		ImportsRemoved:   make(map[string]struct{}),
		AddedTokenFreq:   make(map[string]int),
		RemovedTokenFreq: make(map[string]int),
	}

	var addedLines, removedLines []string
	for _, file := range files {
		ff := ExtractFileFeatures(file.Filename, file.Patch, cfg.MaxPatchCharsPerFile)

		rep.FileSet[ff.Path] = struct{}{}
		rep.TopLevelDirs[ff.TopLevelDir] = struct{}{}
		addSet(rep.ChangedFunctions, ff.Functions)
		addSet(rep.ChangedClasses, ff.Classes)
		addSet(rep.ImportsAdded, ff.ImportsAdded)
		addSet(rep.ImportsRemoved, ff.ImportsRemoved)

		addedLines = append(addedLines, ff.AddedLines...)
		removedLines = append(removedLines, ff.RemovedLines...)
		for _, tok := range ff.AddedTokens {
			rep.AddedTokenFreq[tok]++
		}
		for _, tok := range ff.RemovedTokens {
			rep.RemovedTokenFreq[tok]++
		}
	}

	paths := sortedKeys(rep.FileSet)
	sort.Strings(addedLines)
	sort.Strings(removedLines)

	rep.FilePathHash = digest(paths)
	rep.NormalizedDiffHash = digest(append(tagLines("+", addedLines), tagLines("-", removedLines)...))
	// An empty diff gets empty fingerprints so two contentless pull
	// requests never register a patch-id or revert match. Side markers
	// keep an added-only diff from being its own inverse, and the path
	// list ties the fingerprint to where the change landed.
	if len(addedLines) > 0 || len(removedLines) > 0 {
		forward := append(tagLines("+", addedLines), tagLines("-", removedLines)...)
		inverse := append(tagLines("+", removedLines), tagLines("-", addedLines)...)
		rep.PatchFingerprint = digest(append(forward, paths...))
		rep.InversePatchFingerprint = digest(append(inverse, paths...))
	}

	rep.MetadataVector = buildMetadataVector(rep, paths, cfg.VectorSize)
	return rep
}

func addSet(set map[string]struct{}, items []string) {
	for _, item := range items {
		set[item] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func tagLines(tag string, lines []string) []string {
	tagged := make([]string, len(lines))
	for i, line := range lines {
		tagged[i] = tag + line
	}
	return tagged
}

// digest is the content-addressing primitive: sha256 over the lines
// joined by newline. Collision resistance is incidental; a standard
// digest just removes any need to reason about collision probability.
func digest(lines []string) string {
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}

// buildMetadataVector hashes tokens from the title, body, and structural
// signal summary into signed buckets (a random-hyperplane-style sketch)
// and L2-normalizes the result. No learned model involved: two pull
// requests about the same files and symbols land in mostly the same
// buckets with mostly the same signs.
func buildMetadataVector(rep *Representation, paths []string, size int) []float64 {
	var sb strings.Builder
	sb.WriteString(rep.Title)
	sb.WriteByte(' ')
	sb.WriteString(rep.Body)
	for _, part := range [][]string{
		paths,
		sortedKeys(rep.ChangedFunctions),
		sortedKeys(rep.ChangedClasses),
		sortedKeys(rep.ImportsAdded),
		sortedKeys(rep.ImportsRemoved),
	} {
		sb.WriteByte(' ')
		sb.WriteString(strings.Join(part, " "))
	}

	vec := make([]float64, size)
	for _, tok := range Tokenize(NormalizeLine(sb.String())) {
		h := fnv32a(tok)
		bucket := int(h % uint32(size))
		if h&1 == 1 {
			vec[bucket]++
		} else {
			vec[bucket]--
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// fnv32a is the 32-bit FNV-1a hash. Inlined rather than hash/fnv so the
// token loop stays allocation-free.
func fnv32a(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}
