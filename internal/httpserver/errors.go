package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medusa-storefront/internal/domain"
)

type errorResponse struct {
	Kind        string   `json:"kind"`
	Message     string   `json:"message"`
	Remediation string   `json:"remediation,omitempty"`
	Fields      []string `json:"fields,omitempty"`
}

func statusFor(err error) int {
	switch domain.Kind(err) {
	case domain.ErrValidation:
		return http.StatusBadRequest
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrConfiguration:
		return http.StatusFailedDependency
	case domain.ErrProvider:
		return http.StatusPaymentRequired
	case domain.ErrAlreadyCompleted, domain.ErrCheckoutInFlight:
		return http.StatusConflict
	case domain.ErrTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	resp := errorResponse{Kind: domain.KindName(err), Message: domain.Message(err)}
	var de *domain.Error
	if errors.As(err, &de) {
		resp.Remediation = de.Remediation
		resp.Fields = de.Fields
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		resp.Message = "internal error"
	} else if status >= http.StatusInternalServerError {
		logger.Warn("backend request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, resp)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{Kind: "validation", Message: err.Error()})
}
