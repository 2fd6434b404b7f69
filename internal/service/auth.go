package service

import (
	"github.com/wb-go/wbf/ginext"

	"tourbook/internal/dto"
)

// Login exchanges admin credentials, from a Basic header or a JSON body,
// for a short-lived session token.
func (s *service) Login(ctx *ginext.Context) {
	ok := s.auth.Check(ctx.GetHeader("Authorization"))
	if !ok {
		var req dto.LoginRequest
		if err := ctx.ShouldBindJSON(&req); err == nil {
			ok = s.auth.CheckPair(req.Username, req.Password)
		}
	}
	if !ok {
		s.log.Warn().Str("ip", ctx.ClientIP()).Msg("admin login rejected")
		dto.UnauthorizedError(ctx)
		return
	}

	token, expiresAt, err := s.auth.IssueToken()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to issue session token")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, dto.LoginResponse{Token: token, ExpiresAt: expiresAt})
}
