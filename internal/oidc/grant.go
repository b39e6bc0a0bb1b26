package oidc

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/signet/internal/metrics"
	"github.com/dropDatabas3/signet/internal/observability/logger"
)

// GrantHandlerDeps contains the collaborators of the authorization-code grant
// handler.
type GrantHandlerDeps struct {
	Codes   AuthorizationCodeStore
	Grants  PersistedGrantStore
	PKCE    *PKCEValidator
	Profile ProfileService
}

// AuthorizationCodeGrantHandler redeems one-time authorization codes at the
// token endpoint. A code moves Issued→Consumed exactly once on success or
// Issued→Removed on expiry, replay or error; no other transitions exist.
type AuthorizationCodeGrantHandler struct {
	codes   AuthorizationCodeStore
	grants  PersistedGrantStore
	pkce    *PKCEValidator
	profile ProfileService
}

// NewAuthorizationCodeGrantHandler wires the handler from its dependencies.
func NewAuthorizationCodeGrantHandler(d GrantHandlerDeps) *AuthorizationCodeGrantHandler {
	return &AuthorizationCodeGrantHandler{
		codes:   d.Codes,
		grants:  d.Grants,
		pkce:    d.PKCE,
		profile: d.Profile,
	}
}

// Handle validates and consumes an authorization code. Protocol failures come
// back as *ProtocolError with kind invalid_grant; any other error is an
// infrastructure fault the caller maps to a generic server error.
func (h *AuthorizationCodeGrantHandler) Handle(ctx context.Context, req TokenRequest) (*GrantResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("AuthorizationCodeGrantHandler.Handle"))

	// 1. The code itself.
	if req.Code == "" {
		return nil, NewProtocolError(ErrorInvalidGrant, "authorization code is missing")
	}

	// 2. Lookup.
	code, err := h.codes.Get(ctx, req.Code)
	if err != nil {
		if err == ErrNotFound {
			return nil, NewProtocolError(ErrorInvalidGrant, "authorization code is invalid")
		}
		return nil, fmt.Errorf("authorization code lookup: %w", err)
	}

	// 3. Replay. A consumed code showing up again is a strong leakage
	// signal: drop the code and revoke everything issued off its back
	// (RFC 6749 §4.1.2).
	if code.IsConsumed {
		metrics.CodeReplays.Inc()
		log.Warn("authorization code replay detected",
			logger.ClientID(code.ClientID),
			logger.UserID(code.SubjectID),
		)
		if err := h.revokeOnReplay(ctx, req.Code, code); err != nil {
			log.Error("replay revocation cascade failed", logger.Err(err))
		}
		return nil, NewProtocolError(ErrorInvalidGrant, "authorization code has already been used")
	}

	// 4. Expiration.
	if code.Expired(time.Now()) {
		if err := h.codes.Remove(ctx, req.Code); err != nil {
			log.Error("expired code removal failed", logger.Err(err))
		}
		return nil, NewProtocolError(ErrorInvalidGrant, "authorization code is expired")
	}

	// 5. Client binding. Checked unconditionally so a stolen code never
	// crosses clients.
	if req.Client == nil || req.Client.ClientID != code.ClientID {
		return nil, NewProtocolError(ErrorInvalidGrant, "authorization code was issued to a different client")
	}

	// 6. Redirect URI binding, byte for byte. A code issued without a
	// redirect_uri is redeemable without one; a code issued with one is not.
	if req.RedirectURI != code.RedirectURI {
		return nil, NewProtocolError(ErrorInvalidGrant, "redirect_uri does not match the authorization request")
	}

	// 7. PKCE.
	if req.Client.RequirePKCE && code.CodeChallenge == "" {
		return nil, NewProtocolError(ErrorInvalidGrant, "PKCE is required for this client")
	}
	if code.CodeChallenge != "" {
		if err := h.pkce.ValidateCodeVerifier(req.CodeVerifier, code.CodeChallenge, code.CodeChallengeMethod); err != nil {
			log.Debug("code_verifier rejected", logger.ClientID(code.ClientID), logger.Err(err))
			return nil, err
		}
	}

	// 8. Subject liveness. Codes without a subject skip this.
	if code.SubjectID != "" {
		active, err := h.profile.IsActive(ctx, IsActiveRequest{
			SubjectID: code.SubjectID,
			ClientID:  code.ClientID,
			Caller:    "authorization_code",
		})
		if err != nil {
			return nil, fmt.Errorf("profile liveness check: %w", err)
		}
		if !active {
			return nil, NewProtocolError(ErrorInvalidGrant, "user is not active")
		}
	}

	// 9. Consume, atomically. Of N concurrent redemptions exactly one comes
	// through here with consumed=true; the rest are replays.
	consumed, err := h.codes.Consume(ctx, req.Code)
	if err != nil {
		return nil, fmt.Errorf("authorization code consume: %w", err)
	}
	if !consumed {
		metrics.CodeReplays.Inc()
		log.Warn("concurrent authorization code redemption lost the consume race",
			logger.ClientID(code.ClientID),
		)
		if err := h.revokeOnReplay(ctx, req.Code, code); err != nil {
			log.Error("replay revocation cascade failed", logger.Err(err))
		}
		return nil, NewProtocolError(ErrorInvalidGrant, "authorization code has already been used")
	}

	result := &GrantResult{
		SubjectID: code.SubjectID,
		SessionID: code.SessionID,
		ClientID:  code.ClientID,
		Scopes:    code.Scopes,
	}
	if code.Nonce != "" {
		result.Claims = append(result.Claims, Claim{Type: "nonce", Value: code.Nonce})
	}
	if code.SubjectID != "" {
		claims, err := h.profile.ProfileData(ctx, ProfileDataRequest{
			SubjectID: code.SubjectID,
			ClientID:  code.ClientID,
			Scopes:    code.Scopes,
			Caller:    "authorization_code",
		})
		if err != nil {
			return nil, fmt.Errorf("profile data: %w", err)
		}
		result.Claims = append(result.Claims, claims...)
	}
	for t, v := range code.Claims {
		result.Claims = append(result.Claims, Claim{Type: t, Value: v})
	}

	log.Info("authorization code redeemed",
		logger.ClientID(code.ClientID),
		logger.UserID(code.SubjectID),
		logger.Count(len(result.Scopes)),
	)
	return result, nil
}

// revokeOnReplay removes the code and revokes every persisted grant matching
// its subject, client and session. Both run to completion before the caller
// answers; failures are reported, never swallowed.
func (h *AuthorizationCodeGrantHandler) revokeOnReplay(ctx context.Context, rawCode string, code *AuthorizationCode) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.codes.Remove(gctx, rawCode)
	})
	g.Go(func() error {
		return h.grants.RemoveAll(gctx, GrantFilter{
			SubjectID: code.SubjectID,
			ClientID:  code.ClientID,
			SessionID: code.SessionID,
		})
	})
	return g.Wait()
}
