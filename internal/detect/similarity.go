package detect

import (
	"math"
)

// Reason tags why a pair was classified the way it was.
type Reason string

const (
	// ReasonPatchIDMatch: identical patch fingerprints, byte-for-byte
	// equal normalized content.
	ReasonPatchIDMatch Reason = "patch-id-match"

	// ReasonNormalizedDiffMatch: identical normalized diff and file set.
	ReasonNormalizedDiffMatch Reason = "normalized-diff-match"

	// ReasonNearDuplicate: file, structural, and metadata similarity all
	// over their thresholds without an exact content match.
	ReasonNearDuplicate Reason = "structural-metadata-match"

	// ReasonRevert: the candidate's changes exactly invert this one's.
	ReasonRevert Reason = "revert"

	// ReasonNone: no classification fired.
	ReasonNone Reason = "none"
)

// Metrics are the independent similarity measurements between two
// representations.
type Metrics struct {
	FileOverlap          float64 `json:"file_overlap"`
	TopLevelDirOverlap   float64 `json:"top_level_dir_overlap"`
	FileCountDelta       int     `json:"file_count_delta"`
	StructuralSimilarity float64 `json:"structural_similarity"`
	MetadataSimilarity   float64 `json:"metadata_similarity"`
	FunctionOverlap      float64 `json:"function_overlap"`
	ClassOverlap         float64 `json:"class_overlap"`
	ImportOverlap        float64 `json:"import_overlap"`

	PatchIDMatch            bool `json:"patch_id_match"`
	InversePatchMatch       bool `json:"inverse_patch_match"`
	NormalizedDiffHashMatch bool `json:"normalized_diff_hash_match"`
	FilePathHashMatch       bool `json:"file_path_hash_match"`
}

// Similarity is the full comparison of two representations: metrics,
// classification, and confidence. It is a pure function of the two
// representations and the threshold configuration.
type Similarity struct {
	Metrics

	Reason     Reason  `json:"reason"`
	Confidence float64 `json:"confidence"`

	ExactDuplicate        bool `json:"exact_duplicate"`
	IsDuplicate           bool `json:"is_duplicate"`
	IsRevert              bool `json:"is_revert"`
	PassesCandidateFilter bool `json:"passes_candidate_filter"`
}

// Confidence levels for the non-blended classifications. Heuristic
// matches are clamped just below certainty so only an exact content
// match ever reports 1.0.
const (
	exactConfidence  = 1.0
	revertConfidence = 0.96
	maxBlended       = 0.999
)

// Evaluate compares the current representation against a candidate under
// the given thresholds.
func Evaluate(current, candidate *Representation, cfg Config) Similarity {
	cfg = cfg.Normalized()

	m := Metrics{
		// Two empty file sets are definitionally the same scope, so
		// empty-vs-empty counts as full overlap here...
		FileOverlap:        jaccard(current.FileSet, candidate.FileSet, 1),
		TopLevelDirOverlap: jaccard(current.TopLevelDirs, candidate.TopLevelDirs, 1),
		FileCountDelta:     absInt(len(current.FileSet) - len(candidate.FileSet)),

		StructuralSimilarity: cosineFreq(current.AddedTokenFreq, candidate.AddedTokenFreq),
		MetadataSimilarity:   cosineVec(current.MetadataVector, candidate.MetadataVector),

		// ...whereas two empty symbol sets are no evidence of anything.
		FunctionOverlap: jaccard(current.ChangedFunctions, candidate.ChangedFunctions, 0),
		ClassOverlap:    jaccard(current.ChangedClasses, candidate.ChangedClasses, 0),
		ImportOverlap:   jaccard(current.ImportsAdded, candidate.ImportsAdded, 0),

		PatchIDMatch: current.PatchFingerprint != "" &&
			current.PatchFingerprint == candidate.PatchFingerprint,
		InversePatchMatch: current.PatchFingerprint != "" &&
			current.PatchFingerprint == candidate.InversePatchFingerprint,
		NormalizedDiffHashMatch: current.NormalizedDiffHash == candidate.NormalizedDiffHash,
		FilePathHashMatch:       current.FilePathHash == candidate.FilePathHash,
	}

	sim := Similarity{Metrics: m}
	sim.PassesCandidateFilter = m.FileCountDelta <= cfg.FileCountDeltaThreshold &&
		m.TopLevelDirOverlap >= cfg.DirOverlapThreshold

	exactByDiff := m.NormalizedDiffHashMatch && m.FilePathHashMatch &&
		m.FileOverlap >= cfg.FileOverlapThreshold
	sim.ExactDuplicate = m.PatchIDMatch || exactByDiff

	nearDuplicate := m.FileOverlap >= cfg.FileOverlapThreshold &&
		m.StructuralSimilarity >= cfg.StructuralThreshold &&
		m.MetadataSimilarity >= cfg.MetadataThreshold

	sim.IsDuplicate = sim.ExactDuplicate || nearDuplicate
	sim.IsRevert = m.InversePatchMatch

	switch {
	case m.PatchIDMatch:
		sim.Reason = ReasonPatchIDMatch
	case exactByDiff:
		sim.Reason = ReasonNormalizedDiffMatch
	case nearDuplicate:
		sim.Reason = ReasonNearDuplicate
	case sim.IsRevert:
		sim.Reason = ReasonRevert
	default:
		sim.Reason = ReasonNone
	}

	switch {
	case sim.ExactDuplicate:
		sim.Confidence = exactConfidence
	case sim.IsRevert && !sim.IsDuplicate:
		sim.Confidence = revertConfidence
	default:
		sim.Confidence = blendConfidence(m)
	}
	return sim
}

// blendConfidence is the weighted heuristic confidence for non-exact
// pairs, clamped below 1 so a heuristic match never reports certainty.
func blendConfidence(m Metrics) float64 {
	symbolOverlap := math.Max(m.FunctionOverlap, math.Max(m.ClassOverlap, m.ImportOverlap))
	c := 0.34*m.FileOverlap +
		0.32*m.StructuralSimilarity +
		0.22*m.MetadataSimilarity +
		0.12*symbolOverlap
	return math.Min(math.Max(c, 0), maxBlended)
}

// jaccard computes |a∩b| / |a∪b|. emptyBoth defines the value when both
// sets are empty: two empty file sets agree (1), two empty symbol sets
// say nothing (0).
func jaccard(a, b map[string]struct{}, emptyBoth float64) float64 {
	if len(a) == 0 && len(b) == 0 {
		return emptyBoth
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// cosineFreq is cosine similarity over sparse token-frequency maps,
// 0 when either bag is empty.
func cosineFreq(a, b map[string]int) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for tok, ca := range a {
		normA += float64(ca) * float64(ca)
		if cb, ok := b[tok]; ok {
			dot += float64(ca) * float64(cb)
		}
	}
	for _, cb := range b {
		normB += float64(cb) * float64(cb)
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// cosineVec is cosine similarity over dense vectors, 0 on length
// mismatch or zero vectors.
func cosineVec(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
