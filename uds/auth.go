package uds

import (
	"github.com/zeptools/gw-dbbridge/clients"
	"github.com/zeptools/gw-dbbridge/sec"
)

// Authenticator turns an auth token into the host's identity.
type Authenticator func(token string) (clients.HostConf, error)

// TokenAuthenticator verifies HS256 host tokens signed with secret.
// A token with a database list restricts the host to those presets.
func TokenAuthenticator(secret []byte) Authenticator {
	return func(token string) (clients.HostConf, error) {
		claims, err := sec.ParseHostToken(secret, token)
		if err != nil {
			return clients.HostConf{}, err
		}
		return clients.HostConf{
			ID:         claims.Subject,
			Databases:  claims.Databases,
			Restricted: len(claims.Databases) > 0,
		}, nil
	}
}
