// Package providers defines the configuration model for third-party OAuth
// providers and the registry used to look configurations up by id.
//
// A provider is described declaratively by a Config: endpoints, client
// credentials, scopes, and a small closed set of quirk switches (basic-auth
// token endpoints, non-standard scope parameter names, nested token
// extraction, workspace account extraction). The token exchange itself lives
// in the root package; this package only answers "how does provider X want
// its requests shaped and its responses read".
//
// Preset configurations for well-known providers are provided in subpackages:
//   - providers/google: Google (standard OAuth 2.0 shape)
//   - providers/slack:  Slack (user tokens nested under authed_user, team account info)
//   - providers/github: GitHub (non-expiring OAuth App tokens)
//   - providers/notion: Notion (basic-auth token endpoint, workspace account info)
//
// Client secrets are held as references (SecretSource) and resolved lazily on
// first use, so an application configuring many providers does not fail at
// startup because one unused provider's secret env var is unset.
package providers
