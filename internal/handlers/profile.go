package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"contact-service/internal/faults"
	"contact-service/internal/models"
	"contact-service/internal/plan"
	"contact-service/internal/repositories"
)

// ProfileHandler manages the local user snapshot and plan endpoints.
type ProfileHandler struct {
	userRepo repositories.UserRepository
	plans    *plan.Resolver
}

// NewProfileHandler builds a ProfileHandler.
func NewProfileHandler(userRepo repositories.UserRepository, plans *plan.Resolver) *ProfileHandler {
	return &ProfileHandler{userRepo: userRepo, plans: plans}
}

// UpsertMe creates or refreshes the caller's snapshot from their token
// identity plus the optional body fields.
func (h *ProfileHandler) UpsertMe(c *gin.Context) {
	var req struct {
		DisplayName string `json:"display_name"`
		PhotoURL    string `json:"photo_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, faults.New(faults.InvalidArgument, "invalid body"))
		return
	}

	userID := c.GetInt64("userID")
	email := strings.ToLower(c.GetString("userEmail"))
	displayName := req.DisplayName
	if displayName == "" {
		displayName = c.GetString("userDisplayName")
	}
	photoURL := req.PhotoURL
	if photoURL == "" {
		photoURL = c.GetString("userPhotoURL")
	}

	user, err := h.userRepo.UpsertProfile(c.Request.Context(), userID, email, displayName, photoURL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetMe returns the caller's snapshot together with their allowances.
func (h *ProfileHandler) GetMe(c *gin.Context) {
	userID := c.GetInt64("userID")
	ctx := c.Request.Context()

	user, err := h.userRepo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			respondError(c, faults.New(faults.NotFound, "profile not created yet"))
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":   user,
		"limits": h.plans.Limits(ctx, userID),
	})
}

// SetPlan updates a user's subscription tier. Internal-only route.
func (h *ProfileHandler) SetPlan(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		respondError(c, faults.New(faults.InvalidArgument, "invalid user id"))
		return
	}

	var req struct {
		Plan string `json:"plan" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, faults.New(faults.InvalidArgument, "plan is required"))
		return
	}
	switch req.Plan {
	case plan.TierBasic, plan.TierPro, plan.TierEnterprise:
	default:
		respondError(c, faults.Newf(faults.InvalidArgument, "unknown plan %q", req.Plan))
		return
	}

	if err := h.userRepo.SetPlan(c.Request.Context(), userID, req.Plan); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			respondError(c, faults.New(faults.NotFound, "user not found"))
			return
		}
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SearchUsers finds accounts by email prefix. Callers whose plan lacks
// the sharing feature get an empty result rather than an error, so
// clients can render the same screen for every tier.
func (h *ProfileHandler) SearchUsers(c *gin.Context) {
	userID := c.GetInt64("userID")
	ctx := c.Request.Context()

	query := strings.ToLower(strings.TrimSpace(c.Query("q")))
	if len(query) < 3 {
		respondError(c, faults.New(faults.InvalidArgument, "query must be at least 3 characters"))
		return
	}

	if !h.plans.Limits(ctx, userID).ShareItems {
		c.JSON(http.StatusOK, gin.H{"users": []gin.H{}})
		return
	}

	users, err := h.userRepo.SearchByEmailPrefix(ctx, query, userID, 10)
	if err != nil {
		respondError(c, err)
		return
	}

	results := make([]gin.H, 0, len(users))
	for _, u := range users {
		results = append(results, publicUser(u))
	}
	c.JSON(http.StatusOK, gin.H{"users": results})
}

func publicUser(u models.User) gin.H {
	result := gin.H{
		"id":           u.ID,
		"email":        u.Email,
		"display_name": u.DisplayName,
	}
	if u.PhotoURL.Valid {
		result["photo_url"] = u.PhotoURL.String
	}
	return result
}
