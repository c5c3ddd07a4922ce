package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	portssvc "github.com/SscSPs/geexpress_backend/internal/core/ports/services"
	"github.com/SscSPs/geexpress_backend/internal/dto"
	"github.com/SscSPs/geexpress_backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// maxDocumentSize bounds each courier document upload.
const maxDocumentSize = 10 << 20

// userHandler handles HTTP requests related to users.
type userHandler struct {
	userService portssvc.UserSvcFacade
}

// newUserHandler creates a new userHandler.
func newUserHandler(us portssvc.UserSvcFacade) *userHandler {
	return &userHandler{
		userService: us,
	}
}

// registerUserRoutes registers profile routes and the admin courier directory.
func registerUserRoutes(rg *gin.RouterGroup, userService portssvc.UserSvcFacade) {
	h := newUserHandler(userService)

	me := rg.Group("/users/me")
	{
		me.GET("", h.getProfile)
		me.PUT("", h.updateProfile)
		me.PUT("/fcm-token", h.updateFCMToken)
	}

	users := rg.Group("/users", adminOnly)
	{
		users.GET("/:id", h.getUser)
		users.PUT("/:id/active", h.setUserActive)
		users.POST("/:id/reset-password", h.resetPassword)
	}

	couriers := rg.Group("/delivery-men", adminOnly)
	{
		couriers.POST("", h.createDeliveryMan)
		couriers.GET("", h.listDeliveryMen)
		couriers.PUT("/:id/documents", h.updateDeliveryManDocuments)
	}
}

// readDocuments collects the courier documents present in the multipart form.
// The returned closer releases every opened file.
func readDocuments(c *gin.Context) (map[domain.DocumentType]portssvc.BlobFile, func(), error) {
	docs := map[domain.DocumentType]portssvc.BlobFile{}
	var opened []io.Closer
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	for _, dt := range domain.RequiredCourierDocuments {
		header, err := c.FormFile(string(dt))
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				continue
			}
			closeAll()
			return nil, func() {}, err
		}
		if header.Size > maxDocumentSize {
			closeAll()
			return nil, func() {}, fmt.Errorf("document %s exceeds the 10MB limit", dt)
		}
		file, err := header.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		opened = append(opened, file)
		docs[dt] = portssvc.BlobFile{
			Reader:      file,
			Size:        header.Size,
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
		}
	}
	return docs, closeAll, nil
}

// createDeliveryMan godoc
// @Summary Create a courier account
// @Description Creates a courier with the default password. Permit, CNI and contract are required.
// @Tags delivery-men
// @Accept  multipart/form-data
// @Produce  json
// @Param   name formData string true "Full name"
// @Param   phone formData string true "Phone number"
// @Param   matricule formData string false "Staff number"
// @Param   permit formData file true "Driving permit"
// @Param   cni formData file true "National identity card"
// @Param   contract formData file true "Signed contract"
// @Success 201 {object} dto.UserResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Phone already registered"
// @Failure 502 {object} ErrorResponse "Upload failed"
// @Security BearerAuth
// @Router /delivery-men [post]
func (h *userHandler) createDeliveryMan(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req dto.CreateDeliveryManRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}
	docs, closeDocs, err := readDocuments(c)
	if err != nil {
		bindError(c, err)
		return
	}
	defer closeDocs()

	user, err := h.userService.CreateDeliveryMan(c.Request.Context(), caller, req, docs)
	if err != nil {
		respondError(c, err, "Failed to create courier")
		return
	}

	middleware.GetLoggerFromCtx(c.Request.Context()).Info("Courier created", slog.String("user_id", user.UserID))
	c.JSON(http.StatusCreated, dto.ToUserResponse(user))
}

// updateDeliveryManDocuments godoc
// @Summary Replace courier documents
// @Tags delivery-men
// @Accept  multipart/form-data
// @Produce  json
// @Param   id path string true "Courier ID"
// @Param   permit formData file false "Driving permit"
// @Param   cni formData file false "National identity card"
// @Param   contract formData file false "Signed contract"
// @Success 200 {object} dto.UserResponse
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /delivery-men/{id}/documents [put]
func (h *userHandler) updateDeliveryManDocuments(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	docs, closeDocs, err := readDocuments(c)
	if err != nil {
		bindError(c, err)
		return
	}
	defer closeDocs()

	user, err := h.userService.UpdateDeliveryManDocuments(c.Request.Context(), caller, c.Param("id"), docs)
	if err != nil {
		respondError(c, err, "Failed to update documents")
		return
	}
	c.JSON(http.StatusOK, dto.ToUserResponse(user))
}

// listDeliveryMen godoc
// @Summary List couriers
// @Tags delivery-men
// @Produce  json
// @Param   limit query int false "Limit" default(20)
// @Param   offset query int false "Offset" default(0)
// @Param   activeOnly query bool false "Only active couriers"
// @Success 200 {object} dto.ListUsersResponse
// @Security BearerAuth
// @Router /delivery-men [get]
func (h *userHandler) listDeliveryMen(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var params dto.ListUsersParams
	if err := c.ShouldBindQuery(&params); err != nil {
		bindError(c, err)
		return
	}

	users, err := h.userService.ListDeliveryMen(c.Request.Context(), caller, params)
	if err != nil {
		respondError(c, err, "Failed to list couriers")
		return
	}
	c.JSON(http.StatusOK, dto.ToListUserResponse(users))
}

// getUser godoc
// @Summary Get a user by ID
// @Tags users
// @Produce  json
// @Param   id path string true "User ID"
// @Success 200 {object} dto.UserResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /users/{id} [get]
func (h *userHandler) getUser(c *gin.Context) {
	user, err := h.userService.GetUserByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to retrieve user")
		return
	}
	c.JSON(http.StatusOK, dto.ToUserResponse(user))
}

// setUserActive godoc
// @Summary Enable or disable an account
// @Tags users
// @Accept  json
// @Produce  json
// @Param   id path string true "User ID"
// @Param   body body dto.SetUserActiveRequest true "Active flag"
// @Success 200 {object} dto.UserResponse
// @Security BearerAuth
// @Router /users/{id}/active [put]
func (h *userHandler) setUserActive(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req dto.SetUserActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.userService.SetUserActive(c.Request.Context(), caller, c.Param("id"), *req.IsActive)
	if err != nil {
		respondError(c, err, "Failed to update account status")
		return
	}
	c.JSON(http.StatusOK, dto.ToUserResponse(user))
}

// resetPassword godoc
// @Summary Reset a password to the default
// @Tags users
// @Param   id path string true "User ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /users/{id}/reset-password [post]
func (h *userHandler) resetPassword(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	if err := h.userService.ResetPassword(c.Request.Context(), caller, c.Param("id")); err != nil {
		respondError(c, err, "Failed to reset password")
		return
	}
	c.Status(http.StatusNoContent)
}

// getProfile godoc
// @Summary The caller's profile
// @Tags users
// @Produce  json
// @Success 200 {object} dto.UserResponse
// @Security BearerAuth
// @Router /users/me [get]
func (h *userHandler) getProfile(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	user, err := h.userService.GetProfile(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err, "Failed to retrieve profile")
		return
	}
	c.JSON(http.StatusOK, dto.ToUserResponse(user))
}

// updateProfile godoc
// @Summary Update the caller's profile
// @Tags users
// @Accept  json
// @Produce  json
// @Param   body body dto.UpdateUserRequest true "Profile fields"
// @Success 200 {object} dto.UserResponse
// @Security BearerAuth
// @Router /users/me [put]
func (h *userHandler) updateProfile(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), caller, req)
	if err != nil {
		respondError(c, err, "Failed to update profile")
		return
	}
	c.JSON(http.StatusOK, dto.ToUserResponse(user))
}

// updateFCMToken godoc
// @Summary Register a push token
// @Tags users
// @Accept  json
// @Param   body body dto.UpdateFCMTokenRequest true "Device token"
// @Success 204
// @Security BearerAuth
// @Router /users/me/fcm-token [put]
func (h *userHandler) updateFCMToken(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req dto.UpdateFCMTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.userService.UpdateFCMToken(c.Request.Context(), caller, req.Token); err != nil {
		respondError(c, err, "Failed to update push token")
		return
	}
	c.Status(http.StatusNoContent)
}
