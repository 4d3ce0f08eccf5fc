// Package server runs the loopback half of the installed-app OAuth flow.
//
// # Session
//
// [NewSession] binds an ephemeral port on the loopback interface and builds the consent URL, requesting offline
// access with a forced consent prompt, a PKCE challenge and a random state value. The redirect URI is always
// http://localhost:<port>/.
//
// [Session.Wait] accepts one connection at a time and reads a single request line from each. Requests without both
// state and code in the query (favicon probes, speculative preconnects) get a 404 and the loop continues. The first
// qualifying request gets a success page, after which the code is exchanged and the record handed to the
// [Persister].
//
// A redirect carrying state and error means consent was refused and ends the session with
// [shared.ErrAuthorizationDenied].
//
// # Cancellation
//
// [Session.Cancel] may be called from any goroutine. It closes the listener and any in-flight connection, which
// unblocks Wait with [shared.ErrUserCancelled]. The port is free again once Wait returns.
//
// Lifecycle:
//
//	Idle -> ListenerBound -> URLEmitted -> AwaitingRedirect -> CodeReceived -> TokenExchanged -> Succeeded
//	                                         any non-terminal state -> Cancelled | Failed
package server
