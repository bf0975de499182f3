package provisioning

import (
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"
)

// TokenIssuer mints join tokens for the browser voice widget. This is media
// access only, not API authentication.
type TokenIssuer struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
}

func NewTokenIssuer(apiKey, apiSecret string, ttl time.Duration) (*TokenIssuer, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("%w: api key and secret are required", ErrNotConfigured)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{apiKey: apiKey, apiSecret: apiSecret, ttl: ttl}, nil
}

// JoinToken returns a JWT granting publish/subscribe access to one room.
func (t *TokenIssuer) JoinToken(room, identity string) (string, error) {
	if room == "" || identity == "" {
		return "", fmt.Errorf("%w: room and identity are required", ErrNotConfigured)
	}
	canPublish := true
	canSubscribe := true
	at := auth.NewAccessToken(t.apiKey, t.apiSecret).
		SetIdentity(identity).
		SetValidFor(t.ttl).
		SetVideoGrant(&auth.VideoGrant{
			RoomJoin:     true,
			Room:         room,
			CanPublish:   &canPublish,
			CanSubscribe: &canSubscribe,
		})
	return at.ToJWT()
}
