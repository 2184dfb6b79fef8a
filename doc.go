// Package oauth implements the OAuth token lifecycle for third-party
// integrations: exchanging authorization codes for tokens against providers
// with divergent flow quirks, persisting token sets encrypted, and
// proactively refreshing them before expiry so callers never touch raw OAuth
// mechanics.
//
// The engine is deliberately synchronous and caller-driven. There is no
// background refresh daemon: a token inside its refresh window is refreshed
// inline by the GetAccessToken call that discovers it. Concurrent callers may
// race into a refresh; both obtain valid tokens and the store's upsert is
// last-writer-wins.
//
// Every failure propagates as a typed *Error whose Kind separates
// user-actionable (reconnect), transient (retry), and permanent failures.
// The engine itself never retries.
//
// Typical wiring:
//
//	googleCfg, _ := google.New(&google.Config{
//	    ClientID:     id,
//	    ClientSecret: providers.SecretSource{Env: "GOOGLE_CLIENT_SECRET"},
//	})
//	registry, _ := providers.NewRegistry(googleCfg)
//	encryptor, _ := security.NewEncryptor(key)
//	svc, _ := oauth.New(registry, store, encryptor, nil, logger)
//
//	token, err := svc.GetAccessToken(ctx, "user@example.com", "google")
package oauth
