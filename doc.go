// Package auth implements email based account signup, login and password
// reset on top of signed, short lived tokens.
//
// Signup:
//   - Signup validates the request and mails a verification token. No user
//     row exists until the token comes back.
//   - VerifySignup decodes the token and creates the user. Verifying the same
//     email twice reports VerifyAlreadyRegistered instead of failing.
//
// Sessions:
//   - Login checks the bcrypt hash and issues a session token. The
//     RouteAuthenticator guard accepts only session tokens, reset and signup
//     tokens are refused.
//
// Password reset:
//   - ForgotPassword mails a reset token bound to the user id.
//   - ResetPassword accepts the token once. Consumed token ids are kept until
//     the token would have expired anyway.
//
// Every failure is a *errors.Error from go-errors carrying a text code, use
// HasTextCode or the Is* predicates to branch on them.
package auth
