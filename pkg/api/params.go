package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pushbolt/pushbolt/pkg/models"
)

// paramID parses the :id path segment.
func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

const (
	defaultPageLimit = 100
	maxPageLimit     = 500
)

// pagingParams reads limit and since from the query string. The limit is
// clamped to [1, 500] with a default of 100.
func pagingParams(c *gin.Context) (limit int, since int64) {
	limit = defaultPageLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if raw := c.Query("since"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			since = n
		}
	}
	return limit, since
}

// pagedViews wraps message views in the paging envelope.
func pagedViews(views []*models.MessageView, limit int, since int64) models.PagedMessages {
	if views == nil {
		views = []*models.MessageView{}
	}
	return models.PagedMessages{
		Messages: views,
		Paging: models.Paging{
			Size:  len(views),
			Since: since,
			Limit: limit,
		},
	}
}
