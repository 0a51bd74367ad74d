package session

// DefaultHTTPTimeout bounds every network operation, in seconds. The remote
// API defines no timeout of its own; an in-flight call past this bound is
// reported as a network error.
const DefaultHTTPTimeout = 30

// BaseConfig is a plain-struct Config implementation with sensible defaults.
// Deployments that layer file/env configuration can implement Config directly.
type BaseConfig struct {
	BaseURL              string `json:"base_url" yaml:"base_url"`
	HTTPTimeout          int    `json:"http_timeout" yaml:"http_timeout"`
	LoginRoute           string `json:"login_route" yaml:"login_route"`
	OnboardingRoute      string `json:"onboarding_route" yaml:"onboarding_route"`
	RejectedRouteKey     string `json:"rejected_route_key" yaml:"rejected_route_key"`
	RejectedRouteDefault string `json:"rejected_route_default" yaml:"rejected_route_default"`
}

var _ Config = (*BaseConfig)(nil)

func (c *BaseConfig) GetBaseURL() string {
	return c.BaseURL
}

func (c *BaseConfig) GetHTTPTimeout() int {
	if c.HTTPTimeout <= 0 {
		return DefaultHTTPTimeout
	}
	return c.HTTPTimeout
}

func (c *BaseConfig) GetLoginRoute() string {
	if c.LoginRoute == "" {
		return "/login"
	}
	return c.LoginRoute
}

func (c *BaseConfig) GetOnboardingRoute() string {
	if c.OnboardingRoute == "" {
		return "/onboarding"
	}
	return c.OnboardingRoute
}

func (c *BaseConfig) GetRejectedRouteKey() string {
	if c.RejectedRouteKey == "" {
		return "rejected_route"
	}
	return c.RejectedRouteKey
}

func (c *BaseConfig) GetRejectedRouteDefault() string {
	if c.RejectedRouteDefault == "" {
		return "/"
	}
	return c.RejectedRouteDefault
}
