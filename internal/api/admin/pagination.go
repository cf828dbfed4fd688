package admin

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// parsePagination reads the page and pageSize query params. Absent params
// fall back to page 1 and defaultSize; explicit values that are non-numeric
// or out of bounds get a 400 before any repository call.
func parsePagination(c *gin.Context, defaultSize, maxSize int) (page, pageSize int, ok bool) {
	page, pageSize = 1, defaultSize

	if raw, present := c.GetQuery("page"); present && raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
			return 0, 0, false
		}
		page = n
	}
	if raw, present := c.GetQuery("pageSize"); present && raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxSize {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("pageSize must be between 1 and %d", maxSize),
			})
			return 0, 0, false
		}
		pageSize = n
	}
	return page, pageSize, true
}
