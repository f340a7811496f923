package auth

import (
	"net/http"
	"slices"
	"strings"

	"github.com/goliatone/go-router"
)

const (
	// DefaultCSRFHeaderName carries the CSRF token on state-changing requests
	DefaultCSRFHeaderName = "X-CSRF-Token"
	// DefaultCSRFFormField is the fallback form field for HTML posts
	DefaultCSRFFormField = "_csrf"
)

// GuardConfig wires the route guard middleware.
type GuardConfig struct {
	Session *SessionManager
	Guard   *SessionGuard
	Routes  *RouteSet
	Policy  AccessPolicy

	// CSRFHeaderName overrides the token header (default X-CSRF-Token).
	CSRFHeaderName string
	// CSRFFormField overrides the token form field (default _csrf).
	CSRFFormField string

	ErrorHandler router.ErrorHandler
	Logger       Logger
}

func guardConfigDefault(cfg GuardConfig) GuardConfig {
	if cfg.Routes == nil {
		cfg.Routes = NewRouteSet()
	}

	if cfg.Policy == (AccessPolicy{}) {
		cfg.Policy = DefaultAccessPolicy()
	}

	if cfg.CSRFHeaderName == "" {
		cfg.CSRFHeaderName = DefaultCSRFHeaderName
	}

	if cfg.CSRFFormField == "" {
		cfg.CSRFFormField = DefaultCSRFFormField
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			if IsForbidden(err) {
				return c.Status(router.StatusForbidden).SendString(err.Error())
			}
			return c.Status(router.StatusUnauthorized).SendString(err.Error())
		}
	}

	if cfg.Logger == nil {
		cfg.Logger = defLogger{}
	}

	return cfg
}

// RouteGuard evaluates every request against the access table and, for
// state-changing methods, the CSRF token. Redirect decisions short-circuit
// the handler chain; allowed requests proceed with the identity propagated
// into the standard context.
func RouteGuard(config ...GuardConfig) router.MiddlewareFunc {
	var cfg GuardConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	cfg = guardConfigDefault(cfg)

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			// a hard-expired session always resolves to sign-in with the
			// expired flag, regardless of the route
			if cfg.Guard != nil && cfg.Guard.IsExpired() {
				if cfg.Session != nil {
					cfg.Session.SignOut(ctx.Context())
				}
				return ctx.Redirect(ExpiredRedirectPath(cfg.Policy), http.StatusSeeOther)
			}

			var identity *Identity
			if cfg.Session != nil {
				identity, _ = cfg.Session.CurrentIdentity()
			}

			route := cfg.Routes.Resolve(ctx.Path())

			decision := cfg.Policy.Decide(identity, route)
			if !decision.Allowed() {
				return ctx.Redirect(decision.Redirect(), http.StatusSeeOther)
			}

			if cfg.Guard != nil {
				if isUnsafeMethod(ctx.Method()) {
					presented := extractCSRFToken(ctx, cfg)
					if !cfg.Guard.Validate(ctx.Context(), presented) {
						return cfg.ErrorHandler(ctx, ErrCSRFMismatch)
					}
					next := cfg.Guard.RotateAfterUse(ctx.Context())
					ctx.SetHeader(cfg.CSRFHeaderName, next)
				}

				cfg.Guard.RecordActivity()
			}

			if identity != nil {
				ctx.SetContext(WithIdentity(ctx.Context(), identity))
			}

			return hf(ctx)
		}
	}
}

// safeMethods never mutate server state and skip CSRF validation
var safeMethods = []string{"GET", "HEAD", "OPTIONS", "TRACE"}

func isUnsafeMethod(method string) bool {
	return !slices.Contains(safeMethods, strings.ToUpper(method))
}

func extractCSRFToken(ctx router.Context, cfg GuardConfig) string {
	if token := ctx.Header(cfg.CSRFHeaderName); token != "" {
		return token
	}
	return ctx.FormValue(cfg.CSRFFormField)
}
