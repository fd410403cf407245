package handlers

import (
	"net/http"

	"quizduel/services"

	"github.com/gin-gonic/gin"
)

type QuizHandler struct {
	quizService  *services.QuizService
	badgeService *services.BadgeService
}

func NewQuizHandler(quizService *services.QuizService, badgeService *services.BadgeService) *QuizHandler {
	return &QuizHandler{
		quizService:  quizService,
		badgeService: badgeService,
	}
}

func (h *QuizHandler) GetCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": h.quizService.Categories()})
}

func (h *QuizHandler) GetMyBadges(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	badges, err := h.badgeService.ListBadges(c.Request.Context(), identity.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"badges": badges})
}
