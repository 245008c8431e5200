// Package sessiongate is the client-side session and authorization gateway
// for the Barberly booking front end. It owns the only stateful pieces of
// the client: establishing a session, keeping it across restarts, attaching
// credentials to outbound requests, and gating role-specific areas.
//
// Session lifecycle:
//   - SessionStore is an explicit state machine (Unknown, Unauthenticated,
//     Authenticated) with a transition table. Every transition persists the
//     authenticated flag and bearer token to durable Storage synchronously,
//     so a restart resumes where the user left off. The user record is never
//     persisted; guards re-fetch it so role truth always comes from the
//     server.
//   - Resolver performs the handshake: CSRF priming, login, identity fetch
//     and best-effort logout. Rejected credentials come back as a
//     LoginResult, never as an error; errors are reserved for transport
//     faults and rejected tokens.
//   - RoleGuard protects one role area. It runs exactly one resolution per
//     mount, decides through a pure function (Decide), and applies
//     navigation only at defined transition points. Unauthenticated results
//     force a local logout; transport faults never do.
//
// Transport:
//   - CredentialAttacher is an http.RoundTripper that injects the bearer
//     token and echoes the CSRF double-submit cookie into a header. It reads
//     both fresh per request and omits headers when credentials are absent.
//
// Activity sinks:
//   - ActivitySink receives login, logout, and guard events. Sinks run
//     best-effort (errors are logged) so telemetry never blocks resolution.
package sessiongate
