package main

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"gardenkeep/internal/core"
	"gardenkeep/internal/session"
	"gardenkeep/pkg/domain"
)

func table(w io.Writer, header string, rows func(tw *tabwriter.Writer)) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, header)
	rows(tw)
	return tw.Flush()
}

func parseDateFlag(raw, field string) (domain.Date, error) {
	if raw == "" {
		return domain.Date{}, nil
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return domain.Date{}, &domain.ValidationError{Field: field, Reason: "must be YYYY-MM-DD"}
	}
	return d, nil
}

func (c *cli) plantsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "plants", Short: "Manage your plant collection"}

	list := &cobra.Command{
		Use:  "list",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := c.api(cmd.Context())
			if err != nil {
				return err
			}
			col := session.NewCollection(api)
			if err := col.Load(cmd.Context()); err != nil {
				return report(cmd, session.NoticeFor(err))
			}
			return table(cmd.OutOrStdout(), "ID\tNAME\tBOTANICAL\tLOCATION\tPLANTED", func(tw *tabwriter.Writer) {
				for _, p := range col.Plants() {
					planted := ""
					if p.DatePlanted != nil {
						planted = p.DatePlanted.String()
					}
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, domain.Deref(p.BotanicalName), domain.Deref(p.Location), planted)
				}
			})
		},
	}

	var in core.PlantInput
	var planted string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a plant to your collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := parseDateFlag(planted, "date_planted")
			if err != nil {
				return report(cmd, session.NoticeFor(err))
			}
			if !d.IsZero() {
				in.DatePlanted = &d
			}
			api, err := c.api(cmd.Context())
			if err != nil {
				return err
			}
			return report(cmd, session.NewCollection(api).Add(cmd.Context(), in))
		},
	}
	add.Flags().StringVar(&in.Name, "name", "", "plant name (required)")
	add.Flags().StringVar(&in.BotanicalName, "botanical-name", "", "botanical name")
	add.Flags().StringVar(&in.SpeciesID, "species-id", "", "botanical species id")
	add.Flags().StringVar(&in.Location, "location", "", "where the plant lives")
	add.Flags().StringVar(&planted, "planted", "", "date planted (YYYY-MM-DD)")
	add.Flags().StringVar(&in.Notes, "notes", "", "free-form notes")
	add.Flags().StringVar(&in.ImageURL, "image-url", "", "photo URL")

	addSpecies := &cobra.Command{
		Use:   "add-species SPECIES_ID",
		Short: "Add a species from the botanical catalogue to your collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.api(cmd.Context())
			if err != nil {
				return err
			}
			sp, err := api.GetSpecies(cmd.Context(), args[0])
			if err != nil {
				return report(cmd, session.NoticeFor(err))
			}
			col := session.NewCollection(api)
			if err := col.Load(cmd.Context()); err != nil {
				return report(cmd, session.NoticeFor(err))
			}
			return report(cmd, col.AddSpecies(cmd.Context(), sp))
		},
	}

	remove := &cobra.Command{
		Use:  "remove ID",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.api(cmd.Context())
			if err != nil {
				return err
			}
			return report(cmd, session.NewCollection(api).Remove(cmd.Context(), args[0]))
		},
	}

	cmd.AddCommand(list, add, addSpecies, remove)
	return cmd
}

func (c *cli) favoritesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "favorites", Short: "Manage saved species"}
	cmd.AddCommand(
		&cobra.Command{
			Use:  "list",
			Args: cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				api, err := c.api(cmd.Context())
				if err != nil {
					return err
				}
				favs := session.NewFavorites(api)
				if err := favs.Load(cmd.Context()); err != nil {
					return report(cmd, session.NoticeFor(err))
				}
				return table(cmd.OutOrStdout(), "ID\tSPECIES\tBOTANICAL\tCOMMON", func(tw *tabwriter.Writer) {
					for _, f := range favs.Items() {
						_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.ID, f.SpeciesID, f.BotanicalName, domain.Deref(f.CommonName))
					}
				})
			},
		},
		&cobra.Command{
			Use:   "add SPECIES_ID",
			Short: "Save a species from the botanical catalogue",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				api, err := c.api(cmd.Context())
				if err != nil {
					return err
				}
				sp, err := api.GetSpecies(cmd.Context(), args[0])
				if err != nil {
					return report(cmd, session.NoticeFor(err))
				}
				return report(cmd, session.NewFavorites(api).Add(cmd.Context(), sp))
			},
		},
		&cobra.Command{
			Use:  "remove ID",
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				api, err := c.api(cmd.Context())
				if err != nil {
					return err
				}
				return report(cmd, session.NewFavorites(api).Remove(cmd.Context(), args[0]))
			},
		},
	)
	return cmd
}

func printChores(cmd *cobra.Command, chores []domain.GardenChore) error {
	return table(cmd.OutOrStdout(), "ID\tDATE\tTYPE\tTITLE\tDONE", func(tw *tabwriter.Writer) {
		for _, ch := range chores {
			done := ""
			if ch.Completed {
				done = "yes"
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\t%s\n", ch.ID, ch.ScheduledDate, domain.ChoreTypeGlyph(ch.ChoreType), ch.ChoreType.Label(), ch.Title, done)
		}
	})
}

func (c *cli) choresCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "chores", Short: "Manage the garden calendar"}

	load := func(cmd *cobra.Command) (*session.Calendar, error) {
		api, err := c.api(cmd.Context())
		if err != nil {
			return nil, err
		}
		cal := session.NewCalendar(api)
		if err := cal.Load(cmd.Context()); err != nil {
			return nil, report(cmd, session.NoticeFor(err))
		}
		return cal, nil
	}

	list := &cobra.Command{
		Use:  "list",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cal, err := load(cmd)
			if err != nil {
				return err
			}
			return printChores(cmd, cal.Chores())
		},
	}

	on := &cobra.Command{
		Use:   "on DATE",
		Short: "Chores scheduled for one day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := domain.ParseDate(args[0])
			if err != nil {
				return report(cmd, session.NoticeFor(&domain.ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}))
			}
			cal, err := load(cmd)
			if err != nil {
				return err
			}
			return printChores(cmd, cal.On(d))
		},
	}

	var from string
	var limit int
	upcoming := &cobra.Command{
		Use:   "upcoming",
		Short: "The next incomplete chores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := parseDateFlag(from, "from")
			if err != nil {
				return report(cmd, session.NoticeFor(err))
			}
			if d.IsZero() {
				d = domain.DateOf(time.Now().UTC())
			}
			cal, err := load(cmd)
			if err != nil {
				return err
			}
			return printChores(cmd, cal.Upcoming(d, limit))
		},
	}
	upcoming.Flags().StringVar(&from, "from", "", "first day (default today)")
	upcoming.Flags().IntVar(&limit, "limit", domain.DefaultUpcomingLimit, "maximum chores to show")

	var in core.ChoreInput
	var date string
	add := &cobra.Command{
		Use:  "add",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := parseDateFlag(date, "scheduled_date")
			if err != nil {
				return report(cmd, session.NoticeFor(err))
			}
			in.ScheduledDate = d
			api, err := c.api(cmd.Context())
			if err != nil {
				return err
			}
			return report(cmd, session.NewCalendar(api).Add(cmd.Context(), in))
		},
	}
	add.Flags().StringVar(&in.Title, "title", "", "chore title (required)")
	add.Flags().StringVar(&in.ChoreType, "type", "", "watering, fertilizing, pruning, repotting, harvesting or other")
	add.Flags().StringVar(&date, "date", "", "scheduled date (YYYY-MM-DD)")
	add.Flags().StringVar(&in.PlantID, "plant", "", "plant id")
	add.Flags().StringVar(&in.Description, "description", "", "details")

	toggle := &cobra.Command{
		Use:   "toggle ID",
		Short: "Flip a chore between done and not done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.api(cmd.Context())
			if err != nil {
				return err
			}
			return report(cmd, session.NewCalendar(api).Toggle(cmd.Context(), args[0]))
		},
	}

	remove := &cobra.Command{
		Use:  "remove ID",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.api(cmd.Context())
			if err != nil {
				return err
			}
			return report(cmd, session.NewCalendar(api).Remove(cmd.Context(), args[0]))
		},
	}

	cmd.AddCommand(list, on, upcoming, add, toggle, remove)
	return cmd
}

func (c *cli) schedulesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "schedules", Short: "Manage recurring care schedules"}

	list := &cobra.Command{
		Use:  "list",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := c.api(cmd.Context())
			if err != nil {
				return err
			}
			schedules, err := api.ListSchedules(cmd.Context())
			if err != nil {
				return report(cmd, session.NoticeFor(err))
			}
			return table(cmd.OutOrStdout(), "ID\tPLANT\tTYPE\tEVERY\tNEXT\tACTIVE", func(tw *tabwriter.Writer) {
				for _, s := range schedules {
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%dd\t%s\t%t\n", s.ID, s.PlantID, s.ChoreType.Label(), s.FrequencyDays, s.NextDue(), s.Active)
				}
			})
		},
	}

	var in core.ScheduleInput
	var next string
	add := &cobra.Command{
		Use:  "add",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := parseDateFlag(next, "next_due_date")
			if err != nil {
				return report(cmd, session.NoticeFor(err))
			}
			in.NextDueDate = d
			api, err := c.api(cmd.Context())
			if err != nil {
				return err
			}
			sched, err := api.CreateSchedule(cmd.Context(), in)
			if err != nil {
				return report(cmd, session.NoticeFor(err))
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Schedule %s created, next due %s\n", sched.ID, sched.NextDue())
			return nil
		},
	}
	add.Flags().StringVar(&in.PlantID, "plant", "", "plant id (required)")
	add.Flags().StringVar(&in.ChoreType, "type", "", "chore type (required)")
	add.Flags().IntVar(&in.FrequencyDays, "every", 7, "frequency in days")
	add.Flags().StringVar(&next, "next", "", "next due date (YYYY-MM-DD)")
	add.Flags().StringVar(&in.Notes, "notes", "", "notes")

	var completedOn string
	complete := &cobra.Command{
		Use:  "complete ID",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDateFlag(completedOn, "date")
			if err != nil {
				return report(cmd, session.NoticeFor(err))
			}
			api, err := c.api(cmd.Context())
			if err != nil {
				return err
			}
			sched, err := api.CompleteSchedule(cmd.Context(), args[0], d)
			if err != nil {
				return report(cmd, session.NoticeFor(err))
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Next due %s\n", sched.NextDue())
			return nil
		},
	}
	complete.Flags().StringVar(&completedOn, "date", "", "completion date (default today)")

	remove := &cobra.Command{
		Use:  "remove ID",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.api(cmd.Context())
			if err != nil {
				return err
			}
			if err := api.DeleteSchedule(cmd.Context(), args[0]); err != nil {
				return report(cmd, session.NoticeFor(err))
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Schedule removed")
			return nil
		},
	}

	var today string
	evaluate := &cobra.Command{
		Use:   "evaluate",
		Short: "Create chores for every schedule that is due",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := parseDateFlag(today, "today")
			if err != nil {
				return report(cmd, session.NoticeFor(err))
			}
			api, err := c.api(cmd.Context())
			if err != nil {
				return err
			}
			chores, err := api.EvaluateRecurrences(cmd.Context(), d)
			if err != nil {
				return report(cmd, session.NoticeFor(err))
			}
			return printChores(cmd, chores)
		},
	}
	evaluate.Flags().StringVar(&today, "today", "", "evaluation date (default today)")

	cmd.AddCommand(list, add, complete, remove, evaluate)
	return cmd
}

func (c *cli) searchCmd() *cobra.Command {
	var q domain.SpeciesQuery
	cmd := &cobra.Command{
		Use:   "search [QUERY]",
		Short: "Search the botanical catalogue",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				q.Query = args[0]
			}
			api, err := c.api(cmd.Context())
			if err != nil {
				return err
			}
			results, err := api.SearchSpecies(cmd.Context(), q)
			if err != nil {
				return report(cmd, session.NoticeFor(err))
			}
			if len(results) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No plants found")
				return nil
			}
			return table(cmd.OutOrStdout(), "ID\tSCIENTIFIC\tCOMMON\tFAMILY", func(tw *tabwriter.Writer) {
				for _, sp := range results {
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", sp.ID, sp.ScientificName, domain.Deref(sp.CommonName), domain.Deref(sp.Family))
				}
			})
		},
	}
	cmd.Flags().StringVar(&q.ScientificName, "scientific", "", "filter by scientific name")
	cmd.Flags().StringVar(&q.CommonName, "common", "", "filter by common name")
	cmd.Flags().StringVar(&q.Family, "family", "", "filter by family")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "maximum results")
	cmd.Flags().IntVar(&q.Offset, "offset", 0, "results to skip")
	return cmd
}

func (c *cli) imagesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "images", Short: "Upload plant photos"}
	cmd.AddCommand(&cobra.Command{
		Use:  "upload FILE",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			api, err := c.api(cmd.Context())
			if err != nil {
				return err
			}
			info, err := api.UploadImage(cmd.Context(), filepath.Base(args[0]), mime.TypeByExtension(filepath.Ext(args[0])), f)
			if err != nil {
				return report(cmd, session.NoticeFor(err))
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s bytes)\n", info.URL, strconv.FormatInt(info.Size, 10))
			return nil
		},
	})
	return cmd
}
