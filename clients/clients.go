package clients

import (
	"context"
	"slices"
)

// HostConf identifies a scripting host connected to the bridge.
// A zero HostConf is an anonymous host with no preset restrictions.
type HostConf struct {
	ID        string   `json:"-"` // filled with the token subject
	Databases []string `json:"dbs"`
	// Restricted hosts may only open presets listed in Databases.
	Restricted bool `json:"-"`
}

// Allows reports whether the host may open the named preset.
func (c HostConf) Allows(preset string) bool {
	if !c.Restricted {
		return true
	}
	return slices.Contains(c.Databases, preset)
}

// Ctx Access Helpers

type ctxKey struct{}

func WithHostConf(ctx context.Context, conf HostConf) context.Context {
	return context.WithValue(ctx, ctxKey{}, conf)
}

func HostConfFromContext(ctx context.Context) (HostConf, bool) {
	ctxVal := ctx.Value(ctxKey{})
	val, ok := ctxVal.(HostConf)
	return val, ok
}
