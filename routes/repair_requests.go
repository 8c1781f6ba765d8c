package routes

import (
	"encoding/base64"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"climate-repair-server/models"
)

const qrCodeSize = 256

// RegisterRepairRequestRoutes registers the repair request endpoints, including
// comments, feedback, history and the feedback QR code.
func RegisterRepairRequestRoutes(router *gin.RouterGroup, deps Dependencies) {
	router.POST("", func(c *gin.Context) {
		var in models.CreateRequestInput
		if !bindJSON(c, &in) {
			return
		}
		req, err := deps.Requests.Create(c.Request.Context(), actor(c), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, req)
	})

	router.GET("", func(c *gin.Context) {
		reqs, err := deps.Requests.List(c.Request.Context(), actor(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, reqs)
	})

	router.GET("/:id", func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		req, err := deps.Requests.Get(c.Request.Context(), actor(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, req)
	})

	router.PATCH("/:id", func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var in models.UpdateRequestInput
		if !bindJSON(c, &in) {
			return
		}
		req, err := deps.Requests.Update(c.Request.Context(), actor(c), id, in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, req)
	})

	router.PATCH("/:id/status", func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var in models.SetStatusInput
		if !bindJSON(c, &in) {
			return
		}
		req, err := deps.Requests.SetStatus(c.Request.Context(), actor(c), id, in.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, req)
	})

	router.PATCH("/:id/assign/:specialistId", func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		specialistID, ok := paramID(c, "specialistId")
		if !ok {
			return
		}
		req, err := deps.Requests.Assign(c.Request.Context(), actor(c), id, specialistID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, req)
	})

	router.DELETE("/:id", func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		if err := deps.Requests.Remove(c.Request.Context(), actor(c), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	router.POST("/:id/comments", func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var in models.CreateCommentInput
		if !bindJSON(c, &in) {
			return
		}
		comment, err := deps.Requests.AddComment(c.Request.Context(), actor(c), id, in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, comment)
	})

	router.GET("/:id/comments", func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		comments, err := deps.Requests.ListComments(c.Request.Context(), actor(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, comments)
	})

	router.GET("/:id/history", func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		events, err := deps.Requests.History(c.Request.Context(), actor(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, events)
	})

	router.POST("/:id/feedback", func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var in models.FeedbackInput
		if !bindJSON(c, &in) {
			return
		}
		fb, err := deps.Feedback.Add(c.Request.Context(), actor(c), id, in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, fb)
	})

	router.GET("/:id/feedback", func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		summary, err := deps.Feedback.List(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	router.GET("/:id/qrcode", func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		if _, err := deps.Requests.Get(c.Request.Context(), actor(c), id); err != nil {
			respondError(c, err)
			return
		}

		url := deps.SurveyURL + strconv.FormatUint(uint64(id), 10)
		png, err := qrcode.Encode(url, qrcode.Medium, qrCodeSize)
		if err != nil {
			log.Printf("qrcode: encode %s: %v", url, err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "storage_error",
				"message": "failed to generate QR code",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"qrCode": "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
			"url":    url,
		})
	})
}
