package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"site-cloner/internal/middleware"
	"site-cloner/internal/model"
	"site-cloner/internal/security"
	"site-cloner/internal/service"
	"site-cloner/internal/utils"
	"site-cloner/pkg/response"
)

type CloneController struct {
	service service.CloneService
	logger  *zap.Logger
}

func NewCloneController(svc service.CloneService, logger *zap.Logger) *CloneController {
	return &CloneController{service: svc, logger: logger}
}

// CloneBody is the payload of a clone request; the source site comes from
// the path.
type CloneBody struct {
	Domain      string `json:"domain" binding:"required"`
	Path        string `json:"path"`
	Title       string `json:"title"`
	UserID      int64  `json:"userId"`
	NetworkID   int64  `json:"networkId"`
	Public      *bool  `json:"public,omitempty"`
	CopyUploads bool   `json:"copyUploads"`
}

// RewriteBody is the payload of a rewrite request.
type RewriteBody struct {
	From model.Identity `json:"from"`
	To   model.Identity `json:"to"`
}

// CloneSite godoc
// @Summary Clone a site
// @Description Creates a new site as a copy of the site in the path
// @Tags sites
// @Accept json
// @Produce json
// @Param id path int true "Source blog ID"
// @Param request body CloneBody true "New site address and owner"
// @Success 201 {object} response.StandardResponse{data=model.CloneResult}
// @Failure 400 {object} response.StandardResponse
// @Failure 404 {object} response.StandardResponse
// @Failure 409 {object} response.StandardResponse
// @Router /api/v1/sites/{id}/clone [post]
func (cc *CloneController) CloneSite(c *gin.Context) {
	cid := middleware.GetCorrelationID(c)
	siteID, ok := cc.siteID(c)
	if !ok {
		return
	}
	var body CloneBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, response.ValidationErrorResponse("Invalid request body: "+err.Error(), cid))
		return
	}
	if body.UserID == 0 {
		body.UserID = requestingUser(c)
	}

	req := &model.CloneRequest{
		FromSiteID:  siteID,
		Domain:      body.Domain,
		Path:        body.Path,
		Title:       body.Title,
		UserID:      body.UserID,
		NetworkID:   body.NetworkID,
		Public:      body.Public,
		CopyUploads: body.CopyUploads,
	}
	result, err := cc.service.Clone(c.Request.Context(), req)
	if err != nil {
		cc.fail(c, cid, result, err)
		return
	}
	c.JSON(http.StatusCreated, response.SuccessResponse(result, cid))
}

// RewriteSite godoc
// @Summary Rewrite a site's identity
// @Description Replaces one identity's prefix and URLs with another's across the site's tables
// @Tags sites
// @Accept json
// @Produce json
// @Param id path int true "Blog ID"
// @Param request body RewriteBody true "Old and new identity"
// @Success 200 {object} response.StandardResponse{data=model.RewriteReport}
// @Failure 400 {object} response.StandardResponse
// @Failure 404 {object} response.StandardResponse
// @Router /api/v1/sites/{id}/rewrite [post]
func (cc *CloneController) RewriteSite(c *gin.Context) {
	cid := middleware.GetCorrelationID(c)
	siteID, ok := cc.siteID(c)
	if !ok {
		return
	}
	var body RewriteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, response.ValidationErrorResponse("Invalid request body: "+err.Error(), cid))
		return
	}

	report, err := cc.service.Rewrite(c.Request.Context(), &model.RewriteRequest{SiteID: siteID, From: body.From, To: body.To})
	if err != nil {
		cc.fail(c, cid, report, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse(report, cid))
}

func (cc *CloneController) siteID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, response.ErrorResponse(utils.ErrCodeInvalidRequest, "Invalid site ID", c.Param("id"), middleware.GetCorrelationID(c)))
		return 0, false
	}
	return id, true
}

// fail writes err, keeping any partial result the service returned.
func (cc *CloneController) fail(c *gin.Context, cid string, partial interface{}, err error) {
	appErr := toAppError(err)
	if appErr.Status() >= http.StatusInternalServerError {
		cc.logger.Error("request failed", zap.String("correlation_id", cid), zap.Error(err))
	}
	if isNil(partial) {
		if appErr.Code == utils.ErrCodeInternalError {
			// Unclassified errors may carry SQL or paths; they stay in the log.
			c.JSON(appErr.Status(), response.InternalServerErrorResponse(cid))
			return
		}
		c.JSON(appErr.Status(), response.ErrorResponseFromAppError(appErr, cid))
		return
	}
	c.JSON(appErr.Status(), response.PartialResponse(partial, appErr, cid))
}

func isNil(v interface{}) bool {
	switch p := v.(type) {
	case nil:
		return true
	case *model.CloneResult:
		return p == nil
	case *model.RewriteReport:
		return p == nil
	}
	return false
}

// requestingUser returns the authenticated user's numeric ID, or zero.
func requestingUser(c *gin.Context) int64 {
	claims, ok := security.GetUserClaims(c)
	if !ok {
		return 0
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
