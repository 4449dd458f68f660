package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/poyrazK/zonekeeper/internal/adapters/memory"
	"github.com/poyrazK/zonekeeper/internal/core/domain"
	"github.com/poyrazK/zonekeeper/internal/dns/master"
	"github.com/poyrazK/zonekeeper/internal/dns/rdata"
)

func zoneArg(raw string) (domain.Name, error) {
	zone, err := domain.ParseZoneName(raw)
	if err != nil {
		return "", fmt.Errorf("invalid zone name %q: %w", raw, err)
	}
	return zone, nil
}

func newRectifyZoneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rectify-zone ZONE [ZONE...]",
		Short: "Recompute ordernames, auth flags and empty non-terminals of zones",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			merr := &multierror.Error{ErrorFormat: func(es []error) string {
				return fmt.Sprintf("%d of %d zones failed to rectify", len(es), len(args))
			}}
			for _, raw := range args {
				zone, err := zoneArg(raw)
				if err == nil {
					var res *domain.RectifyResult
					res, err = e.rectifier.RectifyZone(cmd.Context(), zone)
					if err == nil {
						printRectified(cmd, a, res)
						continue
					}
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Error rectifying zone '%s': %v\n", raw, err)
				merr = multierror.Append(merr, err)
			}
			return merr.ErrorOrNil()
		},
	}
}

func printRectified(cmd *cobra.Command, a *app, res *domain.RectifyResult) {
	fmt.Fprintf(cmd.OutOrStdout(), "Rectified zone '%s' (%s): %d names, %d empty non-terminals, %d inserted, %d deleted\n",
		res.Zone, res.Posture, res.Names, res.ENTs, len(res.ENTInserted), len(res.ENTDeleted))
	if res.ENTDisabled {
		fmt.Fprintf(cmd.OutOrStdout(), "Empty non-terminal tracking disabled for '%s': more than %d entries\n",
			res.Zone, a.cfg.MaxENTEntries)
	}
}

func newRectifyAllZonesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rectify-all-zones",
		Short: "Rectify every zone in the backend, skipping presigned zones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			res, err := e.rectifier.RectifyAllZones(cmd.Context())
			if res != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Rectified %d zones, %d failed, %d skipped.\n",
					res.Zones-res.Failed-res.Skipped, res.Failed, res.Skipped)
			}
			return err
		},
	}
}

func newCheckZoneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check-zone ZONE",
		Short: "Check a zone for integrity problems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			zone, err := zoneArg(args[0])
			if err != nil {
				return err
			}
			e, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			report, err := e.checker.CheckZone(cmd.Context(), zone)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report)
			if !report.Passed() {
				return errChecksFailed
			}
			return nil
		},
	}
}

func newCheckAllZonesCmd(a *app) *cobra.Command {
	var exitOnError bool
	cmd := &cobra.Command{
		Use:   "check-all-zones",
		Short: "Check every zone in the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			res, err := e.checker.CheckAllZones(cmd.Context(), exitOnError, func(r *domain.CheckReport) {
				fmt.Fprintln(out, r)
			})
			if res == nil {
				return err
			}
			// An early stop reports only the zones it reached.
			if !exitOnError || res.Failed == 0 {
				fmt.Fprintf(out, "Checked %d zones, %d had errors.\n", res.Zones, res.Failed)
			}
			if err != nil {
				return err
			}
			if res.Failed > 0 {
				return errChecksFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&exitOnError, "exit-on-error", false, "stop at the first zone with errors")
	return cmd
}

func newCheckFileCmd(a *app) *cobra.Command {
	var origin string
	cmd := &cobra.Command{
		Use:   "check-file FILE",
		Short: "Check a master zone file without touching the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var apex domain.Name
			if origin != "" {
				var err error
				if apex, err = zoneArg(origin); err != nil {
					return err
				}
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			st := memory.NewStore()
			zone, err := st.LoadZoneFile(f, apex)
			if err != nil {
				return err
			}
			e := a.newEngine(st)
			report, err := e.checker.CheckZone(cmd.Context(), domain.NewName(zone.Name))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report)
			if !report.Passed() {
				return errChecksFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "zone apex when the file has no $ORIGIN")
	return cmd
}

func newListZoneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-zone ZONE",
		Short: "Print the records of a zone in zone file format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			zone, err := zoneArg(args[0])
			if err != nil {
				return err
			}
			e, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			z, err := e.store.GetZone(cmd.Context(), zone)
			if err != nil {
				return err
			}
			if z == nil {
				return fmt.Errorf("%s: %w", zone, domain.ErrZoneNotFound)
			}
			records, err := e.store.ListRecords(cmd.Context(), z.ID, false)
			if err != nil {
				return err
			}
			master.SortRecordsCanonically(records)

			c := rdata.NewCanonicalizer()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "$ORIGIN .")
			for _, rec := range records {
				if rec.IsENT() {
					continue
				}
				fmt.Fprintln(out, c.Presentation(rec))
			}
			return nil
		},
	}
}

func newShowOrderingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show-ordering ZONE NAME",
		Short: "Show the names before and after NAME in the zone's denial ordering",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			zone, err := zoneArg(args[0])
			if err != nil {
				return err
			}
			name := domain.NewName(args[1])
			if !name.IsPartOf(zone) {
				return fmt.Errorf("%s is not part of zone %s", name, zone)
			}
			e, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			before, after, err := e.rectifier.ClosestNames(cmd.Context(), zone, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "before: %s\nafter: %s\n", before, after)
			return nil
		},
	}
}

func newLoadZoneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load-zone ZONE FILE",
		Short: "Create a zone from a master file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			zone, err := zoneArg(args[0])
			if err != nil {
				return err
			}
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			data, err := master.NewMasterParser(zone).Parse(f)
			if err != nil {
				return fmt.Errorf("failed to parse zone file: %w", err)
			}
			e, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			z := &domain.Zone{Name: string(zone), Kind: domain.ZoneKindNative}
			if err := e.store.CreateZoneWithRecords(cmd.Context(), z, data.Records); err != nil {
				return fmt.Errorf("failed to create zone: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d records into zone '%s'\n", len(data.Records), zone)
			return nil
		},
	}
}

func newSecureZoneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "secure-zone ZONE",
		Short: "Give a zone an active KSK and ZSK",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			zone, err := zoneArg(args[0])
			if err != nil {
				return err
			}
			e, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			created, err := e.dnssec.SecureZone(cmd.Context(), zone)
			if err != nil {
				return err
			}
			for _, k := range created {
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s for '%s'\n", k.KeyType, k.ID, zone)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Zone '%s' secured, run rectify-zone to update ordering\n", zone)
			return nil
		},
	}
}

func newSetNSEC3Cmd(a *app) *cobra.Command {
	var narrow bool
	cmd := &cobra.Command{
		Use:   "set-nsec3 ZONE ['HASH FLAGS ITERATIONS SALT']",
		Short: "Switch a zone to NSEC3 (default '1 0 0 -')",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			zone, err := zoneArg(args[0])
			if err != nil {
				return err
			}
			param := "1 0 0 -"
			if len(args) == 2 {
				param = args[1]
			}
			e, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			if err := e.dnssec.SetNSEC3Param(cmd.Context(), zone, param, narrow); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "NSEC3 set for '%s', run rectify-zone to update ordering\n", zone)
			return nil
		},
	}
	cmd.Flags().BoolVar(&narrow, "narrow", false, "hash at query time, store no ordernames")
	return cmd
}

func newUnsetNSEC3Cmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unset-nsec3 ZONE",
		Short: "Switch a zone back to NSEC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			zone, err := zoneArg(args[0])
			if err != nil {
				return err
			}
			e, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			return e.dnssec.UnsetNSEC3Param(cmd.Context(), zone)
		},
	}
}

func newSetPresignedCmd(a *app) *cobra.Command {
	var unset bool
	cmd := &cobra.Command{
		Use:   "set-presigned ZONE",
		Short: "Mark a zone as signed elsewhere so rectify leaves it alone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			zone, err := zoneArg(args[0])
			if err != nil {
				return err
			}
			e, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			return e.dnssec.SetPresigned(cmd.Context(), zone, !unset)
		},
	}
	cmd.Flags().BoolVar(&unset, "unset", false, "clear the presigned flag")
	return cmd
}
