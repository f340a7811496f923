package auth

import "time"

// SimpleConfig is a plain-struct Config implementation for applications that
// assemble options from their own configuration layer.
type SimpleConfig struct {
	SigningKey      string   `json:"signing_key"`
	Issuer          string   `json:"issuer"`
	Audience        []string `json:"audience"`
	TokenExpiration int      `json:"token_expiration"`
	InviteTTLDays   int      `json:"invite_ttl_days"`
	SignInPath      string   `json:"sign_in_path"`
	DashboardPath   string   `json:"dashboard_path"`
	BillingPath     string   `json:"billing_path"`
	InviteLinkBase  string   `json:"invite_link_base"`
}

var _ Config = (*SimpleConfig)(nil)

func (c *SimpleConfig) GetSigningKey() string { return c.SigningKey }

func (c *SimpleConfig) GetIssuer() string { return c.Issuer }

func (c *SimpleConfig) GetAudience() []string { return c.Audience }

// GetTokenExpiration returns the token TTL in hours.
func (c *SimpleConfig) GetTokenExpiration() int {
	if c.TokenExpiration <= 0 {
		return 72
	}
	return c.TokenExpiration
}

// GetInviteTTL returns the invite validity window in days.
func (c *SimpleConfig) GetInviteTTL() int {
	if c.InviteTTLDays <= 0 {
		return int(DefaultInviteTTL / (24 * time.Hour))
	}
	return c.InviteTTLDays
}

func (c *SimpleConfig) GetSignInPath() string {
	if c.SignInPath == "" {
		return DefaultSignInPath
	}
	return c.SignInPath
}

func (c *SimpleConfig) GetDashboardPath() string {
	if c.DashboardPath == "" {
		return DefaultDashboardPath
	}
	return c.DashboardPath
}

func (c *SimpleConfig) GetBillingPath() string {
	if c.BillingPath == "" {
		return DefaultBillingPath
	}
	return c.BillingPath
}

func (c *SimpleConfig) GetInviteLinkBase() string { return c.InviteLinkBase }

// PolicyFromConfig maps the configured paths onto an AccessPolicy.
func PolicyFromConfig(cfg Config) AccessPolicy {
	if cfg == nil {
		return DefaultAccessPolicy()
	}
	return AccessPolicy{
		SignInPath:    cfg.GetSignInPath(),
		DashboardPath: cfg.GetDashboardPath(),
		BillingPath:   cfg.GetBillingPath(),
	}
}
