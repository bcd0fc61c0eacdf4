/*
Package cli holds the helpers shared by the conduit subcommands: output
formatting, signal handling and error to exit code mapping.

Output Formatting:

Commands accept --output text|json:

	format, err := cli.ParseOutputFormat(flag)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(os.Stdout, result)

Results that implement TextRenderer control their text form; anything else is
printed with %v. Table aligns columns for text renderers.

Signal Handling:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

Exit Codes:

ExitCode maps configuration problems (bad flags, unknown provider, default
not initialized) to 2 and rejected credentials to 3.
*/
package cli
