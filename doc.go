// Package session resolves and maintains client-side auth state against a
// remote account/onboarding API (credential cache, typed HTTP client, state
// machine, route guard).
//
// Session lifecycle:
//   - A Manager owns the resolved state: Unresolved until the first
//     reconciliation, then Anonymous, AuthenticatedIncomplete, or
//     AuthenticatedComplete. On Start it reads the Store, optimistically
//     publishes the cached state, then revalidates against the server. The
//     server answer is authoritative; transport failures fall back to the
//     cached state rather than demoting to Anonymous.
//   - Mutations (Login, Signup, Logout, Refresh, onboarding) are generation
//     guarded: a Logout supersedes any still in-flight operation, so a late
//     login response can never re-establish a session after an explicit
//     logout.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the Manager to
//     describe login, logout, refresh, and onboarding events. Sinks run
//     best-effort (errors are logged) so you can forward to a database or
//     queue without blocking state resolution.
//
// Route guarding:
//   - Decide is a pure function of (state, requireOnboarding). RouteGuard
//     adapts it to go-router handlers, redirecting to the login or onboarding
//     path and replaying the rejected route after sign-in.
package session
