package detect

import (
	"os"
	"strconv"
)

// Config holds the knobs for a duplicate detection run. Values are never
// trusted verbatim: every consumer goes through Normalized, which clamps
// each field to a sane range. Malformed or pathological settings degrade
// to defaults instead of failing the run.
type Config struct {
	// Enabled gates the whole detection step.
	Enabled bool

	// OnlyOnOpen restricts detection to the initial submission event.
	// When set, synchronize/reopen events skip detection.
	OnlyOnOpen bool

	// MaxOpenCandidates is the cap on open pull requests fetched as
	// comparison candidates.
	MaxOpenCandidates int

	// MaxMergedCandidates is the cap on recently merged pull requests
	// fetched as comparison candidates.
	MaxMergedCandidates int

	// MaxComparisons bounds the merged candidate pool after dedupe;
	// open candidates are privileged when the cap truncates.
	MaxComparisons int

	// MergedLookbackDays is how far back merged candidates are considered.
	MergedLookbackDays int

	// FileCountDeltaThreshold is the maximum difference in changed-file
	// counts for a candidate to pass the cheap pre-filter.
	FileCountDeltaThreshold int

	// DirOverlapThreshold is the minimum top-level directory Jaccard
	// overlap for the cheap pre-filter.
	DirOverlapThreshold float64

	// FileOverlapThreshold is the minimum file-set Jaccard overlap for a
	// duplicate classification.
	FileOverlapThreshold float64

	// StructuralThreshold is the minimum added-token cosine similarity
	// for a near-duplicate classification.
	StructuralThreshold float64

	// MetadataThreshold is the minimum hashed-embedding cosine
	// similarity for a near-duplicate classification.
	MetadataThreshold float64

	// FetchConcurrency is the worker fan-out for candidate evaluation.
	FetchConcurrency int

	// MaxPatchCharsPerFile truncates each file's patch text before
	// feature extraction.
	MaxPatchCharsPerFile int

	// VectorSize is the hashed embedding dimension.
	VectorSize int

	// MaxReportedMatches truncates the ranked match and revert lists.
	MaxReportedMatches int

	// CacheSize bounds the process-wide representation cache.
	CacheSize int
}

// DefaultConfig returns the default detection configuration. Thresholds
// are tuned conservative: a near-duplicate report needs file, structural,
// and metadata agreement all at once.
func DefaultConfig() Config {
	return Config{
		Enabled:                 true,
		OnlyOnOpen:              false,
		MaxOpenCandidates:       30,
		MaxMergedCandidates:     20,
		MaxComparisons:          40,
		MergedLookbackDays:      30,
		FileCountDeltaThreshold: 10,
		DirOverlapThreshold:     0.25,
		FileOverlapThreshold:    0.5,
		StructuralThreshold:     0.6,
		MetadataThreshold:       0.8,
		FetchConcurrency:        4,
		MaxPatchCharsPerFile:    20000,
		VectorSize:              128,
		MaxReportedMatches:      5,
		CacheSize:               2000,
	}
}

// Normalized returns a copy with every field clamped to its sane range.
// Out-of-range values are replaced, never reported as errors.
func (c Config) Normalized() Config {
	d := DefaultConfig()
	c.MaxOpenCandidates = clampInt(c.MaxOpenCandidates, 1, 100, d.MaxOpenCandidates)
	c.MaxMergedCandidates = clampInt(c.MaxMergedCandidates, 0, 100, d.MaxMergedCandidates)
	c.MaxComparisons = clampInt(c.MaxComparisons, 1, 200, d.MaxComparisons)
	c.MergedLookbackDays = clampInt(c.MergedLookbackDays, 1, 365, d.MergedLookbackDays)
	c.FileCountDeltaThreshold = clampInt(c.FileCountDeltaThreshold, 0, 1000, d.FileCountDeltaThreshold)
	c.DirOverlapThreshold = clampFloat(c.DirOverlapThreshold, 0, 1, d.DirOverlapThreshold)
	c.FileOverlapThreshold = clampFloat(c.FileOverlapThreshold, 0, 1, d.FileOverlapThreshold)
	c.StructuralThreshold = clampFloat(c.StructuralThreshold, 0, 1, d.StructuralThreshold)
	c.MetadataThreshold = clampFloat(c.MetadataThreshold, 0, 1, d.MetadataThreshold)
	c.FetchConcurrency = clampInt(c.FetchConcurrency, 1, 16, d.FetchConcurrency)
	c.MaxPatchCharsPerFile = clampInt(c.MaxPatchCharsPerFile, 500, 200000, d.MaxPatchCharsPerFile)
	c.VectorSize = clampInt(c.VectorSize, 8, 1024, d.VectorSize)
	c.MaxReportedMatches = clampInt(c.MaxReportedMatches, 1, 25, d.MaxReportedMatches)
	c.CacheSize = clampInt(c.CacheSize, 16, 100000, d.CacheSize)
	return c
}

// ConfigFromEnv builds a Config from PRTRIAGE_DETECT_* environment
// variables, falling back to defaults. Malformed values are ignored
// (the default stays in place) and the result is always normalized:
// configuration can degrade a run, never break it.
//
// Environment variables:
//   - PRTRIAGE_DETECT_ENABLED: enable detection (default: true)
//   - PRTRIAGE_DETECT_ONLY_ON_OPEN: run only on initial submission (default: false)
//   - PRTRIAGE_DETECT_MAX_OPEN: max open candidates (default: 30)
//   - PRTRIAGE_DETECT_MAX_MERGED: max merged candidates (default: 20)
//   - PRTRIAGE_DETECT_MAX_COMPARISONS: candidate comparison cap (default: 40)
//   - PRTRIAGE_DETECT_LOOKBACK_DAYS: merged lookback window (default: 30)
//   - PRTRIAGE_DETECT_FILE_DELTA: file-count-delta threshold (default: 10)
//   - PRTRIAGE_DETECT_DIR_OVERLAP: top-level dir overlap threshold (default: 0.25)
//   - PRTRIAGE_DETECT_FILE_OVERLAP: file overlap threshold (default: 0.5)
//   - PRTRIAGE_DETECT_STRUCTURAL: structural similarity threshold (default: 0.6)
//   - PRTRIAGE_DETECT_METADATA: metadata similarity threshold (default: 0.8)
//   - PRTRIAGE_DETECT_CONCURRENCY: candidate fetch fan-out (default: 4)
//   - PRTRIAGE_DETECT_PATCH_CHARS: per-file patch char cap (default: 20000)
//   - PRTRIAGE_DETECT_VECTOR_SIZE: embedding dimension (default: 128)
//   - PRTRIAGE_DETECT_MAX_MATCHES: max reported matches (default: 5)
//   - PRTRIAGE_DETECT_CACHE_SIZE: representation cache bound (default: 2000)
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	readEnvBool("PRTRIAGE_DETECT_ENABLED", &cfg.Enabled)
	readEnvBool("PRTRIAGE_DETECT_ONLY_ON_OPEN", &cfg.OnlyOnOpen)
	readEnvInt("PRTRIAGE_DETECT_MAX_OPEN", &cfg.MaxOpenCandidates)
	readEnvInt("PRTRIAGE_DETECT_MAX_MERGED", &cfg.MaxMergedCandidates)
	readEnvInt("PRTRIAGE_DETECT_MAX_COMPARISONS", &cfg.MaxComparisons)
	readEnvInt("PRTRIAGE_DETECT_LOOKBACK_DAYS", &cfg.MergedLookbackDays)
	readEnvInt("PRTRIAGE_DETECT_FILE_DELTA", &cfg.FileCountDeltaThreshold)
	readEnvFloat("PRTRIAGE_DETECT_DIR_OVERLAP", &cfg.DirOverlapThreshold)
	readEnvFloat("PRTRIAGE_DETECT_FILE_OVERLAP", &cfg.FileOverlapThreshold)
	readEnvFloat("PRTRIAGE_DETECT_STRUCTURAL", &cfg.StructuralThreshold)
	readEnvFloat("PRTRIAGE_DETECT_METADATA", &cfg.MetadataThreshold)
	readEnvInt("PRTRIAGE_DETECT_CONCURRENCY", &cfg.FetchConcurrency)
	readEnvInt("PRTRIAGE_DETECT_PATCH_CHARS", &cfg.MaxPatchCharsPerFile)
	readEnvInt("PRTRIAGE_DETECT_VECTOR_SIZE", &cfg.VectorSize)
	readEnvInt("PRTRIAGE_DETECT_MAX_MATCHES", &cfg.MaxReportedMatches)
	readEnvInt("PRTRIAGE_DETECT_CACHE_SIZE", &cfg.CacheSize)

	return cfg.Normalized()
}

func clampInt(v, min, max, fallback int) int {
	if v < min || v > max {
		return fallback
	}
	return v
}

func clampFloat(v, min, max, fallback float64) float64 {
	if v < min || v > max {
		return fallback
	}
	return v
}

func readEnvInt(key string, dest *int) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	if parsed, err := strconv.Atoi(value); err == nil {
		*dest = parsed
	}
}

func readEnvFloat(key string, dest *float64) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	if parsed, err := strconv.ParseFloat(value, 64); err == nil {
		*dest = parsed
	}
}

func readEnvBool(key string, dest *bool) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	if parsed, err := strconv.ParseBool(value); err == nil {
		*dest = parsed
	}
}
