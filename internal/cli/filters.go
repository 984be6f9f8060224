package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"FeedWatcher/internal/app"
	"FeedWatcher/internal/domain"
	"FeedWatcher/internal/infrastructure/storage"
)

const dateLayout = "2006-01-02"

// FiltersCmd groups filter management.
func FiltersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filters",
		Short: "Manage notification filters",
		Long:  "Create, list, update, toggle and delete the filters new feed items are matched against",
	}
	cmd.AddCommand(filtersListCmd())
	cmd.AddCommand(filtersAddCmd())
	cmd.AddCommand(filtersUpdateCmd())
	cmd.AddCommand(filtersToggleCmd("enable", true))
	cmd.AddCommand(filtersToggleCmd("disable", false))
	cmd.AddCommand(filtersDeleteCmd())
	return cmd
}

func filtersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.Application, out io.Writer) error {
				filters, err := a.Filters().List(ctx)
				if err != nil {
					return fmt.Errorf("failed to list filters: %w", err)
				}
				if len(filters) == 0 {
					fmt.Fprintln(out, "No filters found")
					return nil
				}

				fmt.Fprintf(out, "Found %d filter(s):\n\n", len(filters))
				for _, f := range filters {
					printFilter(out, f)
				}
				return nil
			})
		},
	}
}

func filtersAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Create a filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := domain.Filter{Name: args[0], Enabled: true}
			if err := applyCriteriaFlags(cmd, &f); err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.Application, out io.Writer) error {
				created, err := a.Filters().Create(ctx, f)
				if err != nil {
					return fmt.Errorf("failed to create filter: %w", err)
				}
				fmt.Fprintf(out, "%s Created filter %s\n", okMark, created.ID)
				printFilter(out, created)
				return nil
			})
		},
	}
	addCriteriaFlags(cmd)
	return cmd
}

func filtersUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Change a filter; only the given flags are applied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.Application, out io.Writer) error {
				f, err := lookupFilter(ctx, a, args[0])
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("name") {
					f.Name, _ = cmd.Flags().GetString("name")
				}
				if err := applyCriteriaFlags(cmd, &f); err != nil {
					return err
				}

				updated, err := a.Filters().Update(ctx, f)
				if err != nil {
					return fmt.Errorf("failed to update filter: %w", err)
				}
				fmt.Fprintf(out, "%s Updated filter %s\n", okMark, updated.ID)
				printFilter(out, updated)
				return nil
			})
		},
	}
	cmd.Flags().String("name", "", "New filter name")
	addCriteriaFlags(cmd)
	return cmd
}

func filtersToggleCmd(verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " [id]",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.Application, out io.Writer) error {
				f, err := lookupFilter(ctx, a, args[0])
				if err != nil {
					return err
				}
				f.Enabled = enabled
				if _, err := a.Filters().Update(ctx, f); err != nil {
					return fmt.Errorf("failed to %s filter: %w", verb, err)
				}
				fmt.Fprintf(out, "%s Filter %s %sd\n", okMark, f.Name, verb)
				return nil
			})
		},
	}
}

func filtersDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.Application, out io.Writer) error {
				removed, err := a.Filters().Delete(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to delete filter: %w", err)
				}
				if !removed {
					return fmt.Errorf("filter %s: %w", args[0], domain.ErrNotFound)
				}
				fmt.Fprintf(out, "%s Deleted filter %s\n", okMark, args[0])
				return nil
			})
		},
	}
}

func lookupFilter(ctx context.Context, a *app.Application, id string) (domain.Filter, error) {
	f, err := a.Filters().Get(ctx, id)
	if storage.IsNotFound(err) {
		return domain.Filter{}, fmt.Errorf("no filter with id %s (see 'feedwatcher filters list')", id)
	}
	if err != nil {
		return domain.Filter{}, fmt.Errorf("failed to load filter: %w", err)
	}
	return f, nil
}

func addCriteriaFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("title-include", nil, "Keywords the title must all contain")
	cmd.Flags().StringSlice("title-exclude", nil, "Keywords the title must not contain")
	cmd.Flags().StringSlice("desc-include", nil, "Keywords the description must all contain")
	cmd.Flags().StringSlice("desc-exclude", nil, "Keywords the description must not contain")
	cmd.Flags().String("min-date", "", "Earliest publish date (YYYY-MM-DD or RFC3339, empty clears)")
	cmd.Flags().String("max-date", "", "Latest publish date (YYYY-MM-DD or RFC3339, empty clears)")
	cmd.Flags().Bool("disabled", false, "Store the filter disabled")
}

// applyCriteriaFlags copies every flag the user set onto f.
func applyCriteriaFlags(cmd *cobra.Command, f *domain.Filter) error {
	flags := cmd.Flags()
	lists := map[string]*[]string{
		"title-include": &f.Criteria.TitleIncludes,
		"title-exclude": &f.Criteria.TitleExcludes,
		"desc-include":  &f.Criteria.DescriptionIncludes,
		"desc-exclude":  &f.Criteria.DescriptionExcludes,
	}
	for name, target := range lists {
		if flags.Changed(name) {
			*target, _ = flags.GetStringSlice(name)
		}
	}

	for name, target := range map[string]**time.Time{
		"min-date": &f.Criteria.MinDate,
		"max-date": &f.Criteria.MaxDate,
	} {
		if !flags.Changed(name) {
			continue
		}
		raw, _ := flags.GetString(name)
		t, err := parseDate(raw, name == "max-date")
		if err != nil {
			return fmt.Errorf("invalid --%s: %w", name, err)
		}
		*target = t
	}

	if flags.Changed("disabled") {
		disabled, _ := flags.GetBool("disabled")
		f.Enabled = !disabled
	}
	return nil
}

// parseDate accepts a day or an RFC3339 instant. A bare max day covers the whole day.
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("expected %s or RFC3339, got %q", dateLayout, raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return &t, nil
}

func printFilter(out io.Writer, f domain.Filter) {
	state := okMark + " enabled "
	if !f.Enabled {
		state = failMark + " disabled"
	}
	fmt.Fprintf(out, "%s  %s  %s\n", state, accent.Sprint(f.Name), dim.Sprint(f.ID))

	c := f.Criteria
	if c.Empty() {
		fmt.Fprintln(out, "    (matches everything)")
	}
	printKeywords(out, "title must include", c.TitleIncludes)
	printKeywords(out, "title must exclude", c.TitleExcludes)
	printKeywords(out, "description must include", c.DescriptionIncludes)
	printKeywords(out, "description must exclude", c.DescriptionExcludes)
	if c.MinDate != nil {
		fmt.Fprintf(out, "    published from: %s\n", c.MinDate.Format(time.RFC3339))
	}
	if c.MaxDate != nil {
		fmt.Fprintf(out, "    published until: %s\n", c.MaxDate.Format(time.RFC3339))
	}
}

func printKeywords(out io.Writer, label string, keywords []string) {
	if len(keywords) == 0 {
		return
	}
	fmt.Fprintf(out, "    %s: %s\n", label, strings.Join(keywords, ", "))
}
