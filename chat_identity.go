package sessioncore

import (
	"context"
	"errors"

	"github.com/demio-app/sessioncore/chat"
	"github.com/demio-app/sessioncore/token"
)

// ChatIdentity adapts the engine's gateway session into a [chat.IdentitySource].
// With a non-nil manager the access token is verified locally and the identity
// comes from its claims; a token that fails verification reads as signed out,
// not as an error. With a nil manager the gateway session fields are trusted
// as-is.
func (e *Engine) ChatIdentity(tokens *token.Manager) chat.IdentitySource {
	return &gatewayIdentity{engine: e, tokens: tokens}
}

type gatewayIdentity struct {
	engine *Engine
	tokens *token.Manager
}

func (g *gatewayIdentity) Identity(ctx context.Context) (*chat.Identity, error) {
	sess, err := g.engine.Session(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.AccessToken == "" {
		return nil, nil
	}

	if g.tokens == nil {
		if sess.UserID == "" {
			return nil, nil
		}
		return &chat.Identity{UserID: sess.UserID, Token: sess.AccessToken}, nil
	}

	ident, err := g.tokens.Identity(sess.AccessToken)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) || errors.Is(err, token.ErrTokenInvalid) {
			g.engine.warn("sessioncore: gateway session token rejected", "error", err)
			return nil, nil
		}
		return nil, err
	}
	return &chat.Identity{UserID: ident.UserID, Token: sess.AccessToken}, nil
}
