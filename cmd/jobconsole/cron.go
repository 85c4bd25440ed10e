package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/doughall/jobconsole/internal/schedule"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// stateFlags binds the schedule fields shared by build and jobs schedule.
type stateFlags struct {
	preset     string
	hour       string
	minute     string
	dayOfWeek  string
	dayOfMonth string
	interval   string
}

func (f *stateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.preset, "preset", "", "schedule preset, see the presets command")
	cmd.Flags().StringVar(&f.hour, "hour", "", "hour of day, 0-23")
	cmd.Flags().StringVar(&f.minute, "minute", "", "minute of hour, 0-55 in steps of 5")
	cmd.Flags().StringVar(&f.dayOfWeek, "dow", "", "day of week for weekly, 0 (Sunday) to 6")
	cmd.Flags().StringVar(&f.dayOfMonth, "dom", "", "day of month for monthly, 1-28")
	cmd.Flags().StringVar(&f.interval, "interval", "", "hour interval for every_n_hours: 2, 3, 4, 6, 8 or 12")
}

// state applies the set flags on top of base.
func (f *stateFlags) state(base schedule.State) (schedule.State, error) {
	if f.preset != "" {
		p, ok := schedule.ParsePreset(f.preset)
		if !ok {
			return base, fmt.Errorf("unknown preset %q", f.preset)
		}
		base.Preset = p
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&base.Hour, f.hour)
	set(&base.Minute, f.minute)
	set(&base.DayOfWeek, f.dayOfWeek)
	set(&base.DayOfMonth, f.dayOfMonth)
	set(&base.IntervalHours, f.interval)
	return base, nil
}

func (f *stateFlags) any() bool {
	return f.preset != "" || f.hour != "" || f.minute != "" || f.dayOfWeek != "" ||
		f.dayOfMonth != "" || f.interval != ""
}

func newBuildCmd(a *app) *cobra.Command {
	var flags stateFlags
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the cron expression for a preset",
		Example: `  jobconsole build --preset weekdays --hour 14 --minute 30
  jobconsole build --preset every_n_hours --interval 6`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := flags.state(schedule.DefaultState())
			if err != nil {
				return err
			}
			if st.Preset == schedule.PresetCustom {
				return fmt.Errorf("preset %q has no template; pass the expression to validate or preview", st.Preset)
			}
			fmt.Fprintln(cmd.OutOrStdout(), schedule.Build(st))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse CRON",
		Short: "Show the preset and fields a cron expression maps to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := schedule.Parse(args[0])
			out, err := yaml.Marshal(st)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func newPreviewCmd(a *app) *cobra.Command {
	var (
		count int
		from  string
		tz    string
	)
	cmd := &cobra.Command{
		Use:   "preview CRON",
		Short: "List the next fire times of a cron expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := previewStart(from, tz)
			if err != nil {
				return err
			}
			if count <= 0 {
				count = a.cfg.PreviewCount
			}

			times := schedule.NextFireTimes(args[0], count, start)
			if len(times) == 0 {
				color.New(color.FgYellow).Fprintln(cmd.ErrOrStderr(), "no upcoming fire times")
				return &exitError{code: 1}
			}
			printTimes(cmd.OutOrStdout(), times)
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "number of fire times (default preview_count from config)")
	cmd.Flags().StringVar(&from, "from", "", "start instant in RFC3339 (default now)")
	cmd.Flags().StringVar(&tz, "tz", "", "IANA time zone to evaluate in (default local)")
	return cmd
}

// previewStart resolves --from and --tz into the evaluation start.
func previewStart(from, tz string) (time.Time, error) {
	loc := time.Local
	if tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --tz: %w", err)
		}
		loc = l
	}
	if from == "" {
		return time.Now().In(loc), nil
	}
	t, err := time.Parse(time.RFC3339, from)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --from: %w", err)
	}
	if tz != "" {
		t = t.In(loc)
	}
	return t, nil
}

func printTimes(w io.Writer, times []time.Time) {
	for _, t := range times {
		fmt.Fprintf(w, "%s  %s\n", t.Format(time.RFC3339), t.Format("Mon"))
	}
}

func newDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe CRON",
		Short: "Render a cron expression in plain English",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), schedule.Describe(args[0]))
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate CRON",
		Short: "Check that a cron expression is well formed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := schedule.Validate(args[0]); err != nil {
				color.New(color.FgRed).Fprintln(cmd.ErrOrStderr(), err)
				return &exitError{code: 1}
			}
			color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "valid:", schedule.Describe(args[0]))
			return nil
		},
	}
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List schedule presets and the accepted field values",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			rows := make([][]string, 0, len(schedule.Presets))
			for _, p := range schedule.Presets {
				st := schedule.DefaultState()
				st.Preset = p
				example := schedule.Build(st)
				if example == "" {
					example = "-"
				}
				rows = append(rows, []string{string(p), p.Label(), example})
			}
			writeTable(cmd.OutOrStdout(), []string{"PRESET", "LABEL", "EXAMPLE"}, rows)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out)
			fmt.Fprintln(out, "--hour      ", values(schedule.HourOptions()))
			fmt.Fprintln(out, "--minute    ", values(schedule.MinuteOptions()))
			fmt.Fprintln(out, "--dow       ", labelled(schedule.DayOfWeekOptions()))
			fmt.Fprintln(out, "--dom       ", values(schedule.DayOfMonthOptions()))
			fmt.Fprintln(out, "--interval  ", values(schedule.IntervalOptions()))
		},
	}
}

func values(opts []schedule.Option) string {
	v := make([]string, len(opts))
	for i, o := range opts {
		v[i] = o.Value
	}
	return strings.Join(v, " ")
}

func labelled(opts []schedule.Option) string {
	v := make([]string, len(opts))
	for i, o := range opts {
		v[i] = o.Value + "=" + o.Label
	}
	return strings.Join(v, " ")
}
