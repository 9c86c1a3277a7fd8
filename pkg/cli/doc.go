/*
Package cli provides command-line helpers shared by the policyd commands.

Output Formatting:

Command results can be written as text or JSON:

	formatter, err := cli.NewFormatter(cli.FormatJSON)
	if err != nil {
		return err
	}
	return formatter.FormatTo(cmd.OutOrStdout(), outcome)

Errors:

ConfigError and CommandError describe failures for the user. ExitError
carries a process exit code through cobra's error return.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
