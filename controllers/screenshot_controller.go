package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"autoapply/services"
	"autoapply/utils"
)

// Presigner hands out temporary links to stored objects.
type Presigner interface {
	GeneratePresignedURL(key string, ttl time.Duration) (string, error)
}

type ScreenshotController struct {
	presigner Presigner
	ttl       time.Duration
}

func NewScreenshotController(presigner Presigner) *ScreenshotController {
	return &ScreenshotController{presigner: presigner, ttl: time.Hour}
}

// GetScreenshot redirects to a pre-signed link for the confirmation page
// captured by run :id. With ?format=json the link is returned instead.
func (c *ScreenshotController) GetScreenshot(ctx *gin.Context) {
	if c.presigner == nil {
		utils.ServiceUnavailableError(ctx, "Screenshot service not available", nil)
		return
	}

	id := ctx.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		utils.NotFoundError(ctx, "Screenshot not found")
		return
	}

	key := services.ScreenshotKey(id)
	presignedURL, err := c.presigner.GeneratePresignedURL(key, c.ttl)
	if err != nil {
		utils.InternalServerError(ctx, "Failed to generate screenshot URL", err)
		return
	}

	if ctx.Query("format") == "json" {
		ctx.JSON(http.StatusOK, gin.H{
			"url":        presignedURL,
			"key":        key,
			"expires_in": c.ttl.String(),
		})
		return
	}
	ctx.Redirect(http.StatusTemporaryRedirect, presignedURL)
}
