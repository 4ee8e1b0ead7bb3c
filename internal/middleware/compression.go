package middleware

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// uncompressedPaths are scraped or probed by infrastructure that either
// negotiates its own encoding or reads a few bytes only.
var uncompressedPaths = []string{"/metrics", "/healthz", "/readyz"}

// Compression gzips responses for clients that accept it. Plans and trip
// listings are large JSON documents and shrink well.
func Compression() gin.HandlerFunc {
	return gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths(uncompressedPaths))
}
