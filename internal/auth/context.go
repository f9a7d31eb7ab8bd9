package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fitforge/fitforge-backend/internal/auth/domain"
)

const (
	CtxFirebaseUID = "firebase_uid"
	CtxEmail       = "email"
	CtxIdentity    = "identity"
	CtxIDToken     = "id_token"
)

// UserFirebaseUID extracts the Firebase UID from the Gin context.
// This is set by FirebaseAuthMiddleware.
func UserFirebaseUID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxFirebaseUID))
}

// IdentityFrom returns the verified identity of the request, if any.
func IdentityFrom(c *gin.Context) (*domain.Identity, bool) {
	v, ok := c.Get(CtxIdentity)
	if !ok {
		return nil, false
	}
	id, ok := v.(*domain.Identity)
	return id, ok && id != nil
}

// SetIdentity stores a verified identity on the request.
func SetIdentity(c *gin.Context, id *domain.Identity, idToken string) {
	c.Set(CtxIdentity, id)
	c.Set(CtxFirebaseUID, id.UID)
	c.Set(CtxIDToken, idToken)
	if id.Email != "" {
		c.Set(CtxEmail, id.Email)
	}
}
