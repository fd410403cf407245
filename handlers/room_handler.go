package handlers

import (
	"net/http"

	"quizduel/services"

	"github.com/gin-gonic/gin"
)

type RoomHandler struct {
	roomService *services.RoomService
}

func NewRoomHandler(roomService *services.RoomService) *RoomHandler {
	return &RoomHandler{
		roomService: roomService,
	}
}

type SubmitAnswerRequest struct {
	QuestionID  string `json:"questionId" binding:"required"`
	AnswerIndex *int   `json:"answerIndex" binding:"required"`
}

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req services.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": services.CodeInvalidConfiguration})
		return
	}

	state, err := h.roomService.Create(c.Request.Context(), identity, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, state)
}

func (h *RoomHandler) JoinRoom(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	state, err := h.roomService.Join(c.Request.Context(), identity, c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	state, err := h.roomService.Get(c.Request.Context(), identity, c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *RoomHandler) GetSummary(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	summary, err := h.roomService.Summary(c.Request.Context(), identity, c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *RoomHandler) ListMyRooms(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	rooms, err := h.roomService.ListMine(c.Request.Context(), identity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *RoomHandler) StartRoom(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	state, err := h.roomService.Start(c.Request.Context(), identity, c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *RoomHandler) SubmitAnswer(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": services.CodeInvalidAnswer})
		return
	}

	state, err := h.roomService.SubmitAnswer(c.Request.Context(), identity, c.Param("code"), req.QuestionID, *req.AnswerIndex)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *RoomHandler) RequestRematch(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	state, err := h.roomService.RequestRematch(c.Request.Context(), identity, c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}
