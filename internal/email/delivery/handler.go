package delivery

import (
	authdelivery "lighthouse/internal/auth/delivery"
	emaildto "lighthouse/internal/email/dto"
	"lighthouse/internal/email/usecase"
	"lighthouse/pkg/callable"

	"github.com/gin-gonic/gin"
)

type EmailHandler struct {
	emailUsecase usecase.EmailUsecase
}

func NewEmailHandler(emailUsecase usecase.EmailUsecase) *EmailHandler {
	return &EmailHandler{
		emailUsecase: emailUsecase,
	}
}

func (h *EmailHandler) ProcessUserLogin(c *gin.Context) {
	var req emaildto.ProcessUserLoginRequest
	if err := callable.Bind(c, &req); err != nil {
		callable.Fail(c, err)
		return
	}

	resp, err := h.emailUsecase.ProcessUserLogin(c.Request.Context(), authdelivery.UserFromContext(c), &req)
	if err != nil {
		callable.Fail(c, err)
		return
	}
	callable.Respond(c, resp)
}

func (h *EmailHandler) GetUserEmails(c *gin.Context) {
	if err := callable.Bind(c, &struct{}{}); err != nil {
		callable.Fail(c, err)
		return
	}

	resp, err := h.emailUsecase.GetUserEmails(c.Request.Context(), authdelivery.UserFromContext(c))
	if err != nil {
		callable.Fail(c, err)
		return
	}
	callable.Respond(c, resp)
}

func (h *EmailHandler) RefreshUserTokens(c *gin.Context) {
	if err := callable.Bind(c, &struct{}{}); err != nil {
		callable.Fail(c, err)
		return
	}

	resp, err := h.emailUsecase.RefreshUserTokens(c.Request.Context(), authdelivery.UserFromContext(c))
	if err != nil {
		callable.Fail(c, err)
		return
	}
	callable.Respond(c, resp)
}

func (h *EmailHandler) DeleteUserData(c *gin.Context) {
	if err := callable.Bind(c, &struct{}{}); err != nil {
		callable.Fail(c, err)
		return
	}

	resp, err := h.emailUsecase.DeleteUserData(c.Request.Context(), authdelivery.UserFromContext(c))
	if err != nil {
		callable.Fail(c, err)
		return
	}
	callable.Respond(c, resp)
}
