package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/rberts/delibera/internal/domain/common"
	"github.com/rberts/delibera/internal/logger"
	"github.com/rberts/delibera/internal/response"
)

// respondError maps a domain error to its HTTP status. Anything that is
// not a classified domain error is treated as an internal failure and
// its details are kept out of the response body.
func respondError(c *gin.Context, err error) {
	kind, ok := common.KindOf(err)
	if !ok {
		logger.Get().Error("Unhandled service error", "path", c.Request.URL.Path, "error", err)
		response.InternalServerError(c, "internal server error")
		return
	}

	switch kind {
	case common.KindNotFound:
		response.NotFoundError(c, err.Error())
	case common.KindInvalidRequest, common.KindInactive:
		response.BadRequestError(c, err.Error())
	case common.KindConflict:
		response.ConflictError(c, err.Error())
	default:
		response.InternalServerError(c, "internal server error")
	}
}
