package tbac

import (
	"log/slog"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// logTokenClaims logs the identity claims of an exchanged token at debug
// level. Tokens are verified by the identity service, not here, so the
// parse skips signature and validity checks; opaque tokens are logged
// without claims.
func logTokenClaims(direction, token string) {
	parsed, err := jwt.ParseInsecure([]byte(token))
	if err != nil {
		slog.Debug("TBAC token obtained", "direction", direction)
		return
	}

	attrs := []any{"direction", direction}
	if sub := parsed.Subject(); sub != "" {
		attrs = append(attrs, "subject", sub)
	}
	if iss := parsed.Issuer(); iss != "" {
		attrs = append(attrs, "issuer", iss)
	}
	if exp := parsed.Expiration(); !exp.IsZero() {
		attrs = append(attrs, "expires_at", exp)
	}
	slog.Debug("TBAC token obtained", attrs...)
}
