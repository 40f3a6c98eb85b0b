package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pixelpruner/pruneriq/internal/config"
	apperrors "github.com/pixelpruner/pruneriq/internal/errors"
	"github.com/pixelpruner/pruneriq/internal/logger"
	"github.com/pixelpruner/pruneriq/internal/observer"
	"github.com/pixelpruner/pruneriq/internal/service"
	"github.com/pixelpruner/pruneriq/pkg/models"
)

// StatsProvider exposes analysis counters
type StatsProvider interface {
	GetStats() observer.Stats
}

func NewHandler(svc service.ImageAnalysisService, stats StatsProvider, cfg *config.Config) http.Handler {
	r := gin.Default()

	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	r.GET("/health", healthCheck)
	r.GET("/thresholds", getThresholds(svc))
	r.GET("/stats", getStats(stats))
	r.POST("/analyze", analyzeImage(svc, cfg))
	r.POST("/scan", scanFolder(svc, cfg))
	r.POST("/delete", deleteImages(svc, cfg))

	return r
}

func analyzeImage(svc service.ImageAnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		var req models.AnalysisRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		ref := req.Path
		if req.URL != "" {
			if req.Path != "" {
				respondError(c, http.StatusBadRequest, "invalid request format",
					apperrors.NewValidationError("specify either path or url, not both", nil))
				return
			}
			ref = req.URL
		}

		logger.WithFields(logrus.Fields{
			"source": ref,
			"ip":     c.ClientIP(),
		}).Debug("Analyzing image")

		resp, err := svc.AnalyzeImage(ctx, ref)
		if err != nil {
			respondError(c, determineStatusCode(err), "failed to analyze image", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"source":             ref,
			"rating":             resp.Result.Rating,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}).Info("Image analysis completed successfully")

		c.JSON(http.StatusOK, resp)
	}
}

func scanFolder(svc service.ImageAnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		var req models.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		resp, err := svc.ScanFolder(ctx, req, nil)
		if err != nil {
			respondError(c, determineStatusCode(err), "folder scan failed", err)
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

func deleteImages(svc service.ImageAnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		var req models.DeleteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		resp, err := svc.DeleteImages(ctx, req.Folder, req.Filenames)
		if err != nil {
			respondError(c, determineStatusCode(err), "delete failed", err)
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

func getThresholds(svc service.ImageAnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"thresholds": svc.Thresholds(),
			"safe_mode":  svc.SafeMode(),
		})
	}
}

func getStats(stats StatsProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, stats.GetStats())
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	entry := logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	resp := models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Details = appErr.Details
	}
	c.AbortWithStatusJSON(code, resp)
}
