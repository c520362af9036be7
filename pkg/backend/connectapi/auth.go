package connectapi

import (
	"context"
	"errors"
	"strings"

	"connectrpc.com/connect"
	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/mpapenbr/simkiosk/log"
)

var errMissingToken = errors.New("missing bearer token")

type (
	// TokenVerifier checks the bearer token of an incoming request.
	TokenVerifier interface {
		Verify(ctx context.Context, rawToken string) error
	}
	// VerifierFunc adapts a function to TokenVerifier.
	VerifierFunc func(ctx context.Context, rawToken string) error

	oidcVerifier struct {
		v *oidc.IDTokenVerifier
	}

	tokenInterceptor struct {
		verifier TokenVerifier
		l        *log.Logger
	}
)

func (f VerifierFunc) Verify(ctx context.Context, rawToken string) error {
	return f(ctx, rawToken)
}

// NewOIDCVerifier accepts tokens signed by issuer. An empty audience skips
// the audience check.
//
//nolint:whitespace // can't make both editor and linter happy
func NewOIDCVerifier(
	ctx context.Context, issuer, audience string,
) (TokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, err
	}
	return &oidcVerifier{v: provider.Verifier(&oidc.Config{
		ClientID:          audience,
		SkipClientIDCheck: audience == "",
	})}, nil
}

func (o *oidcVerifier) Verify(ctx context.Context, rawToken string) error {
	_, err := o.v.Verify(ctx, rawToken)
	return err
}

// NewTokenInterceptor rejects handler calls without a valid bearer token.
func NewTokenInterceptor(verifier TokenVerifier) connect.Interceptor {
	return &tokenInterceptor{
		verifier: verifier,
		l:        log.Default().Named("backend.auth"),
	}
}

//nolint:whitespace // better readability
func (i *tokenInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return connect.UnaryFunc(func(
		ctx context.Context,
		req connect.AnyRequest,
	) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		raw, ok := strings.CutPrefix(req.Header().Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			return nil, connect.NewError(connect.CodeUnauthenticated, errMissingToken)
		}
		if err := i.verifier.Verify(ctx, raw); err != nil {
			i.l.Debug("token rejected",
				log.String("procedure", req.Spec().Procedure), log.ErrorField(err))
			return nil, connect.NewError(connect.CodeUnauthenticated, err)
		}
		return next(ctx, req)
	})
}

//nolint:whitespace // editor/linter
func (i *tokenInterceptor) WrapStreamingClient(
	next connect.StreamingClientFunc,
) connect.StreamingClientFunc {
	return next
}

//nolint:whitespace // editor/linter
func (i *tokenInterceptor) WrapStreamingHandler(
	next connect.StreamingHandlerFunc,
) connect.StreamingHandlerFunc {
	return next
}
