// Package loader reads policy files from disk and decodes them into policy
// records.
//
// A policy file is a UTF-8 text file with a .json extension holding a single
// JSON array of policy objects. Loading runs a fixed pipeline in which every
// step short-circuits on failure:
//
//  1. the path must exist (policy.KindNotFound)
//  2. the extension must be exactly "json" (policy.KindUnsupportedFormat)
//  3. the file must open (policy.KindOpenFailure)
//  4. the contents must read fully as UTF-8 text (policy.KindReadFailure)
//  5. the contents must decode as a JSON array (policy.KindDecodeFailure)
//
// Decoding is all-or-nothing: either every element decodes or Load returns no
// policies at all. The loader keeps no state between calls.
//
//	l := loader.New(nil)
//	policies, err := l.Load("/etc/policyd/policies.json")
//	if err != nil {
//	    log.Error("failed to load policies", "error", err)
//	}
package loader
