package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	billingoverviewdomain "github.com/smallbiznis/quotebook/internal/billingoverview/domain"
)

func (s *Server) GetQuoteOverview(c *gin.Context) {
	if s.billingOverviewSvc == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	req, err := parseBillingOverviewRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.billingOverviewSvc.GetQuoteOverview(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetInvoiceOverview(c *gin.Context) {
	if s.billingOverviewSvc == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	req, err := parseBillingOverviewRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.billingOverviewSvc.GetInvoiceOverview(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func parseBillingOverviewRequest(c *gin.Context) (billingoverviewdomain.OverviewRequest, error) {
	var req billingoverviewdomain.OverviewRequest

	start, err := parseOptionalTime(c.Query("start"))
	if err != nil {
		return req, newValidationError("start", "invalid_start", "invalid start")
	}
	end, err := parseOptionalTime(c.Query("end"))
	if err != nil {
		return req, newValidationError("end", "invalid_end", "invalid end")
	}
	if start != nil && end != nil && end.Before(*start) {
		return req, newValidationError("end", "invalid_range", "end is before start")
	}
	clientID, err := parseOptionalSnowflakeID(c.Query("client_id"))
	if err != nil {
		return req, newValidationError("client_id", "invalid_client_id", "invalid client_id")
	}

	if start != nil {
		req.Start = *start
	}
	if end != nil {
		req.End = *end
	}
	req.ClientID = snowflakeOrZero(clientID)
	return req, nil
}
