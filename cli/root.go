package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/practicetool/practiceloader/inspect"
	"github.com/practicetool/practiceloader/offsets"
)

// errSitesMismatch makes inspect exit non-zero when the sites disagree or
// hold unexpected bytes.
var errSitesMismatch = errors.New("one or more sites do not match")

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	var offsetsFile string

	root := &cobra.Command{
		Use:          "practiceloader",
		Short:        "Check a host executable against the practiceloader offset table",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&offsetsFile, "offsets", "", "Extra YAML offset table merged over the built-in one")

	table := func() (offsets.Table, error) {
		t := offsets.Default()
		if offsetsFile == "" {
			return t, nil
		}
		extra, err := offsets.LoadFile(offsetsFile)
		if err != nil {
			return nil, err
		}
		return t.Merge(extra), nil
	}

	root.AddCommand(newOffsetsCmd(table), newInspectCmd(table), newVersionCmd())
	return root
}

func newOffsetsCmd(table func() (offsets.Table, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "offsets",
		Short: "List the known host versions and their site offsets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := table()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tNO_LOGO\tFONT_PATCH\tVERIFIED")
			for _, v := range t.Versions() {
				o := t[v]
				fmt.Fprintf(w, "%s\t%#x\t%#x\t%t\n", v, uintptr(o.NoLogo), uintptr(o.FontPatch), o.Verified)
			}
			return w.Flush()
		},
	}
}

func newInspectCmd(table func() (offsets.Table, error)) *cobra.Command {
	var version string

	cmd := &cobra.Command{
		Use:   "inspect <executable>",
		Short: "Report the bytes at every patch site of an executable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := table()
			if err != nil {
				return err
			}
			v, err := hostVersion(args[0], version)
			if err != nil {
				return err
			}
			offs, err := t.Lookup(v)
			if err != nil {
				return err
			}
			findings, err := inspect.File(args[0], offs)
			if err != nil {
				return err
			}
			printFindings(cmd.OutOrStdout(), v, findings)

			status, err := inspect.Summary(findings)
			if err != nil {
				return err
			}
			if status == inspect.Pending || status == inspect.Applied {
				return nil
			}
			return errSitesMismatch
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "Host version to assume instead of reading the version resource")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version <executable>",
		Short: "Print the file version of an executable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := offsets.FileVersion(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func hostVersion(path, override string) (offsets.Version, error) {
	if override != "" {
		return offsets.ParseVersion(override)
	}
	return offsets.FileVersion(path)
}

func printFindings(out io.Writer, v offsets.Version, findings []inspect.Finding) {
	fmt.Fprintf(out, "host %s\n", v)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SITE\tRVA\tSECTION\tFILE OFFSET\tSTATUS\tINSTRUCTION")
	for _, f := range findings {
		fmt.Fprintf(w, "%s\t%#x\t%s\t%#x\t%s\t%s\n", f.Site.Name, f.RVA, f.Section, f.FileOffset, f.Status, f.Instruction)
	}
	_ = w.Flush()
}
