package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// Pagination reads ?skip=&limit= with the bounds the list endpoints share.
func Pagination(c *gin.Context) (skip, limit int) {
	skip = queryInt(c, "skip", 0)
	if skip < 0 {
		skip = 0
	}
	limit = queryInt(c, "limit", 100)
	if limit < 1 {
		limit = 1
	}
	if limit > 1000 {
		limit = 1000
	}
	return skip, limit
}

func queryInt(c *gin.Context, key string, def int) int {
	val, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return val
}
