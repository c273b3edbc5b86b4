package cli

import (
	"fmt"
	"io"
	"strconv"

	"mileage-service/internal/domain/trip"

	"github.com/spf13/cobra"
)

func parseID(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid %s %q", what, raw))
	}
	return id, nil
}

type rangeFlags struct {
	from, to string
}

func (r *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.from, "from", "", "only trips starting on or after this date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&r.to, "to", "", "only trips starting on or before this date")
}

func (r *rangeFlags) parse() (*trip.DateRange, error) {
	return trip.ParseDateRange(r.from, r.to)
}

// ==================== validate ====================

type validateOptions struct {
	rng     rangeFlags
	autoFix bool
}

// NewValidateCommand audits one or more chains. It exits with ExitFailure
// when critical or high severity issues are left unfixed.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate [vehicle-id...]",
		Short: "Audit odometer chains for integrity issues",
		Long: `Audit one vehicle's chain, several, or every vehicle of the tenant when no
id is given. --auto-fix repairs odometer regressions and missing mileage.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, rootOpts, opts, args)
		},
	}
	opts.rng.register(cmd)
	cmd.Flags().BoolVar(&opts.autoFix, "auto-fix", false, "repair auto-fixable issues")
	return cmd
}

func runValidate(cmd *cobra.Command, rootOpts *RootOptions, opts *validateOptions, args []string) error {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := parseID(a, "vehicle id")
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	rng, err := opts.rng.parse()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid range", err)
	}
	if rng != nil && len(ids) != 1 {
		return NewExitError(ExitCommandError, "--from/--to need exactly one vehicle id")
	}

	e, err := openEngine(cmd, rootOpts)
	if err != nil {
		return err
	}
	defer e.close()
	ctx := commandContext(cmd)

	var results []trip.FleetAuditResult
	if len(ids) == 1 {
		issues, err := e.svc.ValidateChain(ctx, e.tc, ids[0], trip.ValidateOptions{AutoFix: opts.autoFix, Range: rng})
		if err != nil {
			return e.out.Fail("validate", err)
		}
		results = []trip.FleetAuditResult{{VehicleID: ids[0], Issues: issues}}
	} else {
		results, err = e.svc.ValidateFleet(ctx, e.tc, ids, opts.autoFix)
		if err != nil {
			return e.out.Fail("validate", err)
		}
	}

	if err := e.out.Result(results, func(w io.Writer) { writeAudit(w, results) }); err != nil {
		return err
	}
	if n := unresolved(results); n > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d unresolved critical or high issue(s)", n))
	}
	return nil
}

func unresolved(results []trip.FleetAuditResult) int {
	n := 0
	for _, r := range results {
		if r.Error != "" {
			n++
		}
		for _, i := range r.Issues {
			if !i.Fixed && (i.Severity == trip.SeverityCritical || i.Severity == trip.SeverityHigh) {
				n++
			}
		}
	}
	return n
}

func writeAudit(w io.Writer, results []trip.FleetAuditResult) {
	for _, r := range results {
		fmt.Fprintf(w, "vehicle %d\n", r.VehicleID)
		if r.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", r.Error)
			continue
		}
		for _, i := range r.Issues {
			if i.IssueType == trip.IssueNone {
				fmt.Fprintf(w, "  ✓ %s\n", i.Description)
				continue
			}
			fmt.Fprintf(w, "  [%s] %s trip %d: %s\n", i.Severity, i.IssueType, i.TripID, i.Description)
			if i.Fixed {
				fmt.Fprintf(w, "      fixed: %s\n", i.FixAction)
			}
		}
	}
}

// ==================== analyze ====================

func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	rng := &rangeFlags{}
	cmd := &cobra.Command{
		Use:   "analyze <vehicle-id>",
		Short: "Score the continuity of a vehicle's chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vehicleID, err := parseID(args[0], "vehicle id")
			if err != nil {
				return err
			}
			r, err := rng.parse()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid range", err)
			}

			e, err := openEngine(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			report, err := e.svc.AnalyzeContinuity(commandContext(cmd), e.tc, vehicleID, r)
			if err != nil {
				return e.out.Fail("analyze", err)
			}
			return e.out.Result(report, func(w io.Writer) { writeContinuity(w, report) })
		},
	}
	rng.register(cmd)
	return cmd
}

func writeContinuity(w io.Writer, r *trip.ContinuityReport) {
	score := "n/a"
	if r.Score != nil {
		score = strconv.Itoa(*r.Score)
	}
	c := r.Counts
	fmt.Fprintf(w, "vehicle %d: score %s\n", r.VehicleID, score)
	fmt.Fprintf(w, "  trips %d, pairs %d: perfect %d, small %d, moderate %d, large %d, negative %d\n",
		c.TotalTrips, c.Pairs, c.Perfect, c.Small, c.Moderate, c.Large, c.Negative)
	for _, rec := range r.Recommendations {
		fmt.Fprintf(w, "  - %s\n", rec)
	}
}

// ==================== breaks ====================

func NewBreaksCommand(rootOpts *RootOptions) *cobra.Command {
	rng := &rangeFlags{}
	cmd := &cobra.Command{
		Use:   "breaks <vehicle-id>",
		Short: "List adjacent trips whose odometer readings do not line up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vehicleID, err := parseID(args[0], "vehicle id")
			if err != nil {
				return err
			}
			r, err := rng.parse()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid range", err)
			}

			e, err := openEngine(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			breaks, err := e.svc.DetectChainBreaks(commandContext(cmd), e.tc, vehicleID, r)
			if err != nil {
				return e.out.Fail("breaks", err)
			}
			return e.out.Result(breaks, func(w io.Writer) {
				if len(breaks) == 0 {
					fmt.Fprintf(w, "vehicle %d: no chain breaks\n", vehicleID)
					return
				}
				for _, b := range breaks {
					fmt.Fprintf(w, "trip %d -> trip %d: %.2f km (%s) %s\n",
						b.FromTripID, b.ToTripID, b.GapKm, b.Classification, b.Remediation)
				}
			})
		},
	}
	rng.register(cmd)
	return cmd
}

// ==================== recalculate ====================

func NewRecalculateCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "recalculate <trip-id>",
		Short: "Recalculate the fuel efficiency of a refueling trip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "trip id")
			if err != nil {
				return err
			}

			e, err := openEngine(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			res, err := e.svc.RecalculateMileage(commandContext(cmd), e.tc, id, force)
			if err != nil {
				return e.out.Fail("recalculate", err)
			}
			if err := e.out.Result(res, func(w io.Writer) {
				fmt.Fprintf(w, "trip %d: %s -> %s km/l (%s) %s\n",
					res.TripID, fmtKm(res.OldKmpl), fmtKm(res.NewKmpl), res.Method, res.Message)
			}); err != nil {
				return err
			}
			if !res.Success {
				return NewExitError(ExitFailure, res.Message)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing value")
	return cmd
}

// ==================== recover ====================

func NewRecoverCommand(rootOpts *RootOptions) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "recover <trip-id>",
		Short: "Restore a soft-deleted trip into its chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "trip id")
			if err != nil {
				return err
			}

			e, err := openEngine(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			res, err := e.svc.RecoverTrip(commandContext(cmd), e.tc, id, reason)
			if err != nil {
				return e.out.Fail("recover", err)
			}
			if err := e.out.Result(res, func(w io.Writer) {
				fmt.Fprintf(w, "trip %d: %s\n", id, res.Message)
			}); err != nil {
				return err
			}
			if !res.Success {
				return NewExitError(ExitFailure, res.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the trip is being recovered")
	return cmd
}
