package requestdata

import (
	"context"
	"time"

	"github.com/dengue-gen/denguegen-backend/internal/types"
)

type key struct{}

var requestDataKey key

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	val := ctx.Value(requestDataKey)
	if rd, ok := val.(*RequestData); ok {
		return rd
	}
	return nil
}

// RequestData is the authenticated caller, taken from the session token.
type RequestData struct {
	TokenString string
	UserID      string
	Name        string
	Email       string
	Avatar      string
	ExpiresAt   time.Time
}

func (rd *RequestData) User() types.User {
	return types.User{
		ID:     rd.UserID,
		Name:   rd.Name,
		Email:  rd.Email,
		Avatar: rd.Avatar,
	}
}
