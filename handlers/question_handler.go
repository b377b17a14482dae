package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"vidyavichar/models"
	"vidyavichar/services"
)

type QuestionHandler struct {
	questionService *services.QuestionService
}

func NewQuestionHandler(questionService *services.QuestionService) *QuestionHandler {
	return &QuestionHandler{
		questionService: questionService,
	}
}

func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}

	var req services.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, "create question", err)
		return
	}

	question, err := h.questionService.CreateQuestion(c.Request.Context(), p, &req)
	if err != nil {
		respondError(c, "create question", err)
		return
	}

	c.JSON(http.StatusCreated, question)
}

func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}

	var q services.ListQuestionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, "list questions", err)
		return
	}

	questions, err := h.questionService.ListQuestions(c.Request.Context(), p, q)
	if err != nil {
		respondError(c, "list questions", err)
		return
	}
	if questions == nil {
		questions = []models.Question{}
	}

	c.JSON(http.StatusOK, questions)
}

func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}

	var req services.UpdateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, "update question", err)
		return
	}

	question, err := h.questionService.UpdateQuestion(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		respondError(c, "update question", err)
		return
	}

	c.JSON(http.StatusOK, question)
}

func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	question, err := h.questionService.DeleteQuestion(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "delete question", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Question marked as deleted",
		"question": question,
	})
}

func (h *QuestionHandler) ClearClassQuestions(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}

	cleared, err := h.questionService.ClearClassQuestions(c.Request.Context(), p, c.Param("classId"))
	if err != nil {
		respondError(c, "clear questions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "All questions cleared successfully",
		"cleared": cleared,
	})
}

func (h *QuestionHandler) GetClassQuestionStats(c *gin.Context) {
	stats, err := h.questionService.GetClassQuestionStats(c.Request.Context(), c.Param("classId"))
	if err != nil {
		respondError(c, "get question stats", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
