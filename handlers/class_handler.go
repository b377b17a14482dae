package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"vidyavichar/models"
	"vidyavichar/services"
)

type ClassHandler struct {
	classService *services.ClassService
}

func NewClassHandler(classService *services.ClassService) *ClassHandler {
	return &ClassHandler{
		classService: classService,
	}
}

func (h *ClassHandler) CreateClass(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}

	var req services.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, "create class", err)
		return
	}

	class, err := h.classService.CreateClass(c.Request.Context(), p, &req)
	if err != nil {
		respondError(c, "create class", err)
		return
	}

	c.JSON(http.StatusCreated, class)
}

func (h *ClassHandler) ListClasses(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}

	var q services.ListClassesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, "list classes", err)
		return
	}

	classes, err := h.classService.ListClasses(c.Request.Context(), p, q)
	if err != nil {
		respondError(c, "list classes", err)
		return
	}

	c.JSON(http.StatusOK, nonNilClasses(classes))
}

func (h *ClassHandler) ListMyClasses(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}

	classes, err := h.classService.ListMyClasses(c.Request.Context(), p)
	if err != nil {
		respondError(c, "list own classes", err)
		return
	}

	c.JSON(http.StatusOK, nonNilClasses(classes))
}

func (h *ClassHandler) GetClass(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}

	class, err := h.classService.GetClass(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, "get class", err)
		return
	}

	c.JSON(http.StatusOK, class)
}

func (h *ClassHandler) UpdateClass(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}

	var req services.UpdateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, "update class", err)
		return
	}

	class, err := h.classService.UpdateClass(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		respondError(c, "update class", err)
		return
	}

	c.JSON(http.StatusOK, class)
}

func (h *ClassHandler) DeactivateClass(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}

	class, err := h.classService.DeactivateClass(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, "deactivate class", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Class deactivated successfully",
		"class":   class,
	})
}

// nonNilClasses makes empty results encode as [] rather than null.
func nonNilClasses(classes []models.Class) []models.Class {
	if classes == nil {
		return []models.Class{}
	}
	return classes
}
