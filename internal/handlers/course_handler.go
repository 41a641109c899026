package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gradskill/backend/internal/models"
	"gorm.io/gorm"
)

// CourseHandler serves the course catalog and the user's enrollments
type CourseHandler struct {
	db *gorm.DB
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(db *gorm.DB) *CourseHandler {
	return &CourseHandler{db: db}
}

// List returns the course catalog, optionally filtered by ?category=
func (h *CourseHandler) List(c *gin.Context) {
	query := h.db.Order("created_at DESC")
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	var courses []models.Course
	if err := query.Find(&courses).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load courses"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": courses})
}

// MyCourses returns the courses the user has access to
func (h *CourseHandler) MyCourses(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	var courses []models.Course
	err := h.db.
		Joins("JOIN enrollments ON enrollments.course_id = courses.id").
		Where("enrollments.user_id = ?", userID).
		Order("enrollments.created_at DESC").
		Find(&courses).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load enrollments"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": courses})
}
