package ai

import "context"

type disabledModel struct{}

func (disabledModel) Name() string  { return ProviderNone }
func (disabledModel) Enabled() bool { return false }
func (disabledModel) Generate(context.Context, Request) (Reply, error) {
	return Reply{}, ErrDisabled
}

// Disabled is a Model that refuses every call with ErrDisabled.
var Disabled Model = disabledModel{}

// WithFallback returns the primary model when it is enabled, otherwise the
// fallback, otherwise Disabled. The choice is made once here so a request
// never reaches a second provider after the first one fails.
func WithFallback(primary, fallback Model) Model {
	if primary != nil && primary.Enabled() {
		return primary
	}
	if fallback != nil && fallback.Enabled() {
		return fallback
	}
	return Disabled
}
