package jwttoken

import (
	id "hatchseed/pkg/domain"
	authmw "hatchseed/pkg/platform/middleware/auth"
)

var _ authmw.JWTValidator = (*JWTServiceAdapter)(nil)

// JWTServiceAdapter satisfies the auth middleware's validator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (id.Identity, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return id.Identity{}, err
	}
	return claims.Identity()
}
