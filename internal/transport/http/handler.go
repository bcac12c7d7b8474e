package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/paystream/ledger-service/internal/repo"
	"github.com/paystream/ledger-service/internal/service"
	"gorm.io/gorm"
)

func RegisterHandlers(r *gin.Engine, accounts *service.AccountService, transfers *service.TransferService) {
	r.POST("/users", createUserHandler(accounts))
	r.POST("/transactions", createTransactionHandler(transfers))
	r.GET("/users/:id/balance", balanceHandler(accounts))
}

type createUserReq struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Document string `json:"document" binding:"required"`
	UserType string `json:"user_type" binding:"required"`
}

func createUserHandler(svc *service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createUserReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		view, err := svc.Register(c, service.RegisterInput{
			FullName: req.FullName,
			Email:    req.Email,
			Password: req.Password,
			Document: req.Document,
			UserType: req.UserType,
		})
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidDocument), errors.Is(err, service.ErrUnknownKind):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			case errors.Is(err, repo.ErrDuplicateAccount):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "an unexpected error occurred"})
			}
			return
		}
		c.JSON(http.StatusCreated, view)
	}
}

type createTransactionReq struct {
	PayerID string `json:"payer_id" binding:"required"`
	PayeeID string `json:"payee_id" binding:"required"`
	// Amount arrives as a JSON string or number; json.Number keeps the
	// exact text either way so decimal parsing stays lossless.
	Amount json.Number `json:"amount" binding:"required"`
}

func createTransactionHandler(svc *service.TransferService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createTransactionReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		receipt, err := svc.Process(c, req.PayerID, req.PayeeID, req.Amount.String())
		if err != nil {
			c.JSON(transferStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":        "Transaction completed successfully.",
			"transaction_id": receipt.TransferID.String(),
			"status":         string(receipt.Status),
		})
	}
}

// transferStatus maps processor errors onto HTTP status codes.
func transferStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInsufficientBalance):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrPayerNotFound),
		errors.Is(err, service.ErrPayeeNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotAuthorized):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func balanceHandler(svc *service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID format"})
			return
		}
		view, err := svc.Balance(c, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "an unexpected error occurred"})
			return
		}
		c.JSON(http.StatusOK, view)
	}
}
