package livekit

import (
	"context"
	"errors"
	"time"

	"github.com/livekit/protocol/auth"

	"github.com/vovakirdan/skyoffice-server/internal/media"
)

// TokenTTL is how long a join token stays valid.
const TokenTTL = time.Hour

// Engine implements media.Engine with LiveKit access tokens.
// LiveKit creates rooms on demand when the first participant joins, so no
// room management is needed here.
type Engine struct {
	apiKey    string
	apiSecret string
	wsURL     string
}

// New creates a new Engine.
func New(apiKey, apiSecret, wsURL string) (*Engine, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, errors.New("livekit: api key and secret are required")
	}
	return &Engine{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		wsURL:     wsURL,
	}, nil
}

// GenerateJoinInfo signs a token granting roomName to identity.
func (e *Engine) GenerateJoinInfo(_ context.Context, roomName, identity, displayName string) (*media.JoinInfo, error) {
	at := auth.NewAccessToken(e.apiKey, e.apiSecret)
	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
	}
	at.SetVideoGrant(grant).
		SetIdentity(identity).
		SetName(displayName).
		SetValidFor(TokenTTL)

	token, err := at.ToJWT()
	if err != nil {
		return nil, err
	}

	return &media.JoinInfo{
		URL:      e.wsURL,
		Token:    token,
		RoomName: roomName,
		Identity: identity,
	}, nil
}

var _ media.Engine = (*Engine)(nil)
