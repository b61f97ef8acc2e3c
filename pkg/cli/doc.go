/*
Package cli provides helpers shared by the threadgate subcommands.

Output Formatting:

Commands that print results accept --format text|json:

	format, err := cli.ParseFormat(flags.format)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result)

Results implementing Table are printed as aligned columns in text mode.

Exit Codes:

ExitCode maps a command error to the process exit status: configuration
errors exit 2, missing records exit 3, everything else exits 1.

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
