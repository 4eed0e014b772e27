package expression

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/c360/stanagfeed/pkg/cache"
)

// Limits on regex filters, which run once per visited feature.
const (
	maxPatternLength = 500
	maxPatternGroups = 20
	maxPatternDepth  = 5
	patternCacheSize = 100
)

var patterns = mustPatternCache()

func mustPatternCache() cache.Cache[*regexp.Regexp] {
	c, err := cache.NewLRU[*regexp.Regexp](patternCacheSize)
	if err != nil {
		panic(fmt.Sprintf("expression: pattern cache: %v", err))
	}
	return c
}

// compilePattern returns the compiled form of pattern, compiling it at most
// once while it stays in the cache.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patterns.Get(pattern); ok {
		return re, nil
	}
	if err := checkPattern(pattern); err != nil {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
	}
	if _, err := patterns.Set(pattern, re); err != nil {
		return nil, err
	}
	return re, nil
}

func checkPattern(pattern string) error {
	if len(pattern) > maxPatternLength {
		return fmt.Errorf("regex pattern is %d chars, limit %d", len(pattern), maxPatternLength)
	}
	if n := strings.Count(pattern, "("); n > maxPatternGroups {
		return fmt.Errorf("regex pattern has %d groups, limit %d", n, maxPatternGroups)
	}
	depth, deepest := 0, 0
	for _, ch := range pattern {
		switch ch {
		case '(':
			depth++
			deepest = max(deepest, depth)
		case ')':
			depth--
		}
	}
	if deepest > maxPatternDepth {
		return fmt.Errorf("regex pattern nests %d deep, limit %d", deepest, maxPatternDepth)
	}
	return nil
}

// PatternCacheStats reports hits and misses of the shared compiled pattern cache.
func PatternCacheStats() *cache.Statistics {
	return patterns.Stats()
}
