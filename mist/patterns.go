package mist

import (
	"regexp"

	"github.com/nasa/GMSEC-API-sub012/pkg/cache"
)

const patternCacheSize = 512

// patternCache keeps compiled, fully anchored value patterns
type patternCache struct {
	compiled cache.Cache[*regexp.Regexp]
}

func newPatternCache() *patternCache {
	c, err := cache.NewLRU[*regexp.Regexp](patternCacheSize)
	if err != nil {
		panic(err)
	}
	return &patternCache{compiled: c}
}

// get compiles pattern so that it must match the whole value
func (p *patternCache) get(pattern string) (*regexp.Regexp, error) {
	if re, ok := p.compiled.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, err
	}
	_, _ = p.compiled.Set(pattern, re)
	return re, nil
}
