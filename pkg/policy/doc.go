// Package policy defines the policy record exchanged between the policy file
// loader, the bootstrap orchestrator and the policy stores, together with the
// closed set of error kinds those components report.
//
// # Policy Records
//
// A Policy is decoded from JSON and forwarded as an indivisible unit. Its
// structure follows the external policy schema; this package does not
// evaluate policies.
//
//	[
//	  {"id": "p1", "effect": "allow", "actions": ["read"], "resources": ["docs/*"]},
//	  {"id": "p2", "effect": "deny", "subjects": ["guest"]}
//	]
//
// # Error Handling
//
// Every failure while seeding policies is reported as a *Error carrying an
// ErrorKind. Callers match kinds with errors.Is against the sentinel values:
//
//	if errors.Is(err, policy.ErrNotFound) {
//	    // file missing
//	}
//
// The underlying cause, when there is one, is available through errors.Unwrap.
package policy
