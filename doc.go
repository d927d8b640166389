// Package membership provides the account lifecycle core of a membership
// platform: registration, single use email verification and a login gate
// that only admits verified accounts.
//
// Verification tokens:
//   - TokenCodec signs stateless HS256 tokens carrying a subject (the
//     username), issue and expiry instants and a purpose. Parse checks the
//     signature before any claim is read, then expiry, then purpose.
//   - Tokens are never stored. Single use is enforced by the account's
//     verified flag, which the Accounts repository flips with a conditional
//     update so concurrent redemptions resolve to one winner.
//
// Registration:
//   - RegisterAccountHandler validates the payload, hashes the password and
//     creates the account inside a transaction. Username and email uniqueness
//     is decided by the store's unique constraints.
//   - The confirmation email is handed to a Dispatcher after commit. Delivery
//     is asynchronous and best-effort; a failed send never undoes the account.
//
// Authentication:
//   - Authenticator.Login rejects unknown emails and wrong passwords with the
//     same ErrInvalidCredentials, reports ErrAccountNotVerified separately and
//     returns a session credential that is created at most once per account.
//
// Activity sinks:
//   - ActivitySink receives best-effort audit events for registration,
//     verification, login and notification failures. Errors are logged and
//     never change the outcome of the operation.
package membership
