// Package bootstrap runs the one-shot startup work of policyd.
//
// The Orchestrator seeds a policy store from an operator-supplied JSON file.
// Seeding is optional: an empty path disables it, and every failure is
// logged and swallowed so the service starts with whatever the store
// already holds.
//
// Startup work is expressed as an ordered Sequence of Steps. The entry point
// builds the sequence explicitly and aborts only when a Required step fails:
//
//	seq := bootstrap.NewSequence(logger,
//	    bootstrap.Required(bootstrap.StoreCheckStep(st)),
//	    bootstrap.PolicySeedStep(orch, cfg.Policy.File, nil),
//	)
//	if err := seq.Run(ctx).Err(); err != nil {
//	    return err
//	}
package bootstrap
