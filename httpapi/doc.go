// Package httpapi exposes the sign-in engine over JSON/HTTP.
//
// [NewRouter] mounts these routes on a gorilla/mux router:
//
//	POST   /v1/signin             start a code sign-in       {"channel","address"}
//	GET    /v1/signin             current attempt            ?channel=&address=
//	DELETE /v1/signin             abandon the attempt        ?channel=&address=
//	POST   /v1/signin/code        submit a code              {"channel","address","code"}
//	POST   /v1/signin/resend      resend a code              {"channel","address"}
//	POST   /v1/signin/stepup      report a step-up result    {"channel","address","result"}
//	POST   /v1/signin/business    business password path     {"email","password"}
//	POST   /v1/business/accounts  enrol a business account   {"email","password"}
//	DELETE /v1/devices            revoke a trusted device    ?channel=&address=
//
// Every response carries the attempt snapshot. Engine errors map to a
// stable error code and HTTP status; a cooldown also sets Retry-After.
//
// # Caller authentication
//
// Routes address attempts by identity alone. Anyone who can reach the router
// can act on the attempt and device of any identity they can name. Mount the
// router behind the caller's own authentication, for example a middleware
// that binds the identity in the request to the authenticated caller.
//
// # What this package must NOT do
//
//   - Hold attempt state. The engine owns it.
//   - Return full addresses or codes in responses.
package httpapi
