package api

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// actorID extracts the authenticated user ID from the JWT subject claim
// for audit attribution. Returns uuid.Nil when auth is disabled or the
// claim is absent.
func actorID(c echo.Context) uuid.UUID {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok || token == nil {
		return uuid.Nil
	}
	claims, ok := token.Claims.(*jwt.MapClaims)
	if !ok {
		return uuid.Nil
	}
	sub, ok := (*claims)["sub"].(string)
	if !ok {
		return uuid.Nil
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil
	}
	return id
}
