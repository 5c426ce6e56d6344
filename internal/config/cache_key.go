package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CandidateSessionKey returns the cache key for a candidate's login session.
func (r *CacheKeyStruct) CandidateSessionKey(username string) string {
	return fmt.Sprintf("login:%s", username)
}

var CacheKey = NewCacheKeyStruct()
