package auth

import (
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// Middleware returns the echo middleware guarding staff routes. Parsed
// claims land in the context under "user".
func Middleware(jwtService *JWTService) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return jwtService.ValidateToken(token)
		},
	})
}

// ActorFrom extracts the authenticated actor from the request context.
// Unauthenticated requests yield the zero actor, which fails every
// staff check.
func ActorFrom(c echo.Context) Actor {
	if claims, ok := c.Get("user").(*Claims); ok {
		return claims.Actor()
	}
	return Actor{}
}
