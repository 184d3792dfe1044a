package protocol

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/soundscape-lab/sounddb/constants"
	"github.com/soundscape-lab/sounddb/destination"
	"github.com/soundscape-lab/sounddb/pkg/accessor"
	"github.com/soundscape-lab/sounddb/pkg/combine"
	"github.com/soundscape-lab/sounddb/pkg/frame"
	"github.com/soundscape-lab/sounddb/types"
	"github.com/soundscape-lab/sounddb/utils/logger"
)

func newAccessorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accessors",
		Short: "list the registered accessors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPARAMS\tDESCRIPTION")
			for _, a := range registry.All() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", a.Name(), strings.Join(a.Params(), ","), a.Description())
			}
			return w.Flush()
		},
	}
}

type entryLine struct {
	Path   string         `json:"path"`
	Fields map[string]any `json:"fields"`
}

func newEntriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries <accessor>",
		Short: "list the files an accessor would read, without reading them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			_, q, err := buildQuery(ctx, args[0])
			if err != nil {
				return err
			}
			sel := types.Selection{Filters: q.Filters(), Limit: limit}
			if len(sortFields) > 0 {
				sel.Sort = &types.SortSpec{Fields: sortFields}
			}
			it, err := q.Endpoint().Entries(ctx, sel)
			if err != nil {
				return err
			}
			defer it.Close()

			encoder := json.NewEncoder(cmd.OutOrStdout())
			count := 0
			for it.Next(ctx) {
				entry := it.Entry()
				if err := encoder.Encode(entryLine{Path: entry.Path, Fields: entry.Fields}); err != nil {
					return err
				}
				count++
			}
			if err := it.Err(); err != nil {
				return err
			}
			logger.Infof("%s: %d entries", args[0], count)
			return nil
		},
	}
	queryFlags(cmd)
	return cmd
}

func newSummarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize <accessor>",
		Short: "reduce every deployment, or every group, with a statistic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			_, q, err := buildQuery(ctx, args[0])
			if err != nil {
				return err
			}
			group, err := groupQuery(q)
			if err != nil {
				return err
			}
			result, err := group.Method(stat).Compute(ctx, groupKeyName())
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)

			if destinationPath == "" {
				return nil
			}
			return export(ctx, func(writer destination.Writer) error {
				return writer.Write(ctx, result, destination.WithIdentifier(fmt.Sprintf("%s_%s", args[0], stat)))
			})
		},
	}
	queryFlags(cmd)
	cmd.Flags().StringVarP(&stat, "stat", "", "mean", "Statistic: mean, median, min, max, sum, count, std")
	cmd.Flags().StringSliceVarP(&groupFields, "group", "g", nil, "(Optional) Fields to group by; defaults to the deployment ID")
	cmd.Flags().StringVarP(&destinationPath, "destination", "", "", "(Optional) Destination config to write the summary to")
	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <accessor>",
		Short: "read every matching entry and write the joined data to a destination",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if destinationPath == "" {
				return fmt.Errorf("--destination not passed")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			a, q, err := buildQuery(ctx, args[0])
			if err != nil {
				return err
			}
			return export(ctx, func(writer destination.Writer) error {
				if len(groupFields) == 0 {
					result, err := q.All(ctx, nil)
					if err != nil {
						return err
					}
					return writer.Write(ctx, result, destination.WithIdentifier(a.Name()))
				}

				// one file per group, each below its own partition
				group, err := groupQuery(q)
				if err != nil {
					return err
				}
				it := group.Iter(ctx)
				defer it.Close()
				for it.Next() {
					if err := writer.Write(ctx, it.Value(), destination.WithIdentifier(a.Name()), destination.WithPartition(partitionName(it.Key()))); err != nil {
						return err
					}
				}
				if skipped := it.Skipped(); skipped != nil {
					logger.Warnf("%s: some groups were not exported: %s", a.Name(), skipped)
				}
				return it.Err()
			})
		},
	}
	queryFlags(cmd)
	cmd.Flags().StringSliceVarP(&groupFields, "group", "g", nil, "(Optional) Fields to partition the export by")
	cmd.Flags().StringVarP(&destinationPath, "destination", "", "", "(Required) Destination config")
	return cmd
}

// export opens the --destination writer around fn.
func export(ctx context.Context, fn func(destination.Writer) error) error {
	writer, err := loadWriter(ctx)
	if err != nil {
		return err
	}
	if err := fn(writer); err != nil {
		writer.Close(ctx)
		return err
	}
	return writer.Close(ctx)
}

// groupQuery groups by --group, or by deployment ID when none is given.
func groupQuery(q *accessor.Query) (*accessor.GroupBy, error) {
	if len(groupFields) == 0 {
		return q.GroupBy(func(entry *types.Entry) any {
			return accessor.DefaultID(entry)
		})
	}
	keys := make([]any, len(groupFields))
	for i, field := range groupFields {
		keys[i] = field
	}
	return q.GroupBy(keys...)
}

func groupKeyName() combine.Option {
	if len(groupFields) == 0 {
		return combine.WithKeyName(constants.IDField)
	}
	return combine.WithKeyName(strings.Join(groupFields, ","))
}

func partitionName(key any) string {
	var parts []string
	if t, ok := key.(frame.Tuple); ok {
		for _, part := range t {
			parts = append(parts, fmt.Sprint(part))
		}
	} else {
		parts = []string{fmt.Sprint(key)}
	}
	return strings.ReplaceAll(strings.Join(parts, "_"), "/", "_")
}

func printResult(w io.Writer, result any) {
	if results, ok := result.(*combine.Results); ok {
		results.Each(func(key, value any) bool {
			fmt.Fprintf(w, "%v: %v\n", key, value)
			return true
		})
		return
	}
	fmt.Fprintln(w, result)
}
