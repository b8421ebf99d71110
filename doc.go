// Package users provides a complete account and session service: user
// registration, bearer-token login, password reset and rotation, plus the
// HTTP surface and Bun-backed repositories behind them.
//
// Authentication:
//   - Auther signs JWTs at login and resolves inbound bearer tokens back to a
//     live user through two dependent lookups: the token record (jti) and the
//     user record behind it. Deleting either revokes the credential without
//     any blocklist.
//   - UserProvider performs the password check. Unknown email and wrong
//     password are indistinguishable to callers, and repeated failures trip a
//     cooldown window.
//
// Password reset:
//   - Requesting a reset clears the stored password hash at the same time the
//     reset token is set, so the account cannot log in mid-reset. Completing
//     the reset consumes the token and installs the new hash in one statement.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther and the
//     command handlers to describe login, registration, deletion, and password
//     events. Sinks run best-effort (errors are logged) so you can forward to
//     a database or queue without blocking authentication.
package users
