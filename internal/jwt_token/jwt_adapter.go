package jwttoken

import (
	dErrors "careon/pkg/domain-errors"
	authmw "careon/pkg/platform/middleware/auth"
	"careon/pkg/requestcontext"
)

// Validator exposes JWTService through authmw.JWTValidator so the middleware
// never sees jwt types.
type Validator struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *Validator {
	return &Validator{service: service}
}

// ValidateToken accepts the applicant and admin roles only. A token without a
// role claim is treated as an applicant token.
func (v *Validator) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := v.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	role := requestcontext.Role(claims.Role)
	switch role {
	case "":
		role = requestcontext.RoleApplicant
	case requestcontext.RoleApplicant, requestcontext.RoleAdmin:
	default:
		return nil, dErrors.Newf(dErrors.CodeUnauthenticated, "unsupported role %q", claims.Role)
	}

	return &authmw.JWTClaims{
		UserID: claims.UserID,
		Role:   string(role),
		JTI:    claims.ID,
	}, nil
}
