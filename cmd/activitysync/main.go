package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/activitysync/internal/activities"
	"example.com/activitysync/internal/cache"
	"example.com/activitysync/internal/changefeed"
	"example.com/activitysync/internal/config"
	"example.com/activitysync/internal/domain"
	"example.com/activitysync/internal/follow"
	"example.com/activitysync/internal/identity"
	"example.com/activitysync/internal/logging"
	"example.com/activitysync/internal/query"
	"example.com/activitysync/internal/remote"
	httptransport "example.com/activitysync/internal/transport/http"
)

type options struct {
	filter string
	start  string
	pages  int
	attend string
	follow string
}

func main() {
	var opts options
	flag.StringVar(&opts.filter, "filter", string(query.KeyAll), "activity filter: all, isGoing or isHost")
	flag.StringVar(&opts.start, "start", "", "only list activities on or after this RFC 3339 date")
	flag.IntVar(&opts.pages, "pages", 1, "number of pages to load")
	flag.StringVar(&opts.attend, "attend", "", "toggle attendance of the activity with this id")
	flag.StringVar(&opts.follow, "follow", "", "toggle following of this username")
	flag.Parse()

	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "activitysync: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens, err := identity.NewTokenProvider(cfg.Token)
	if err != nil {
		return err
	}
	client := remote.NewHTTPClient(cfg.APIURL, cfg.HTTPTimeout, remote.WithTokenSource(tokens))
	loc := time.Local
	store := activities.NewStore(client, tokens,
		activities.WithLogger(logger),
		activities.WithPageSize(cfg.PageSize),
		activities.WithRegistryOptions(cache.WithLocation(loc)))

	if cfg.ChangefeedEnabled() {
		writer := changefeed.NewKafkaWriter(cfg.KafkaBrokers)
		defer writer.Close()
		pub := changefeed.NewPublisher(writer, cfg.ChangefeedTopic, changefeed.WithLogger(logger))
		pub.Attach(store.Registry())
		go func() {
			if err := pub.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("change feed stopped", "error", err)
			}
		}()
		defer pub.Close()
		logger.Info("change feed enabled", "topic", cfg.ChangefeedTopic, "brokers", cfg.KafkaBrokers)
	}

	if cfg.MetricsAddress != "" {
		go func() {
			srvCfg := httptransport.DefaultServerConfig(cfg.MetricsAddress)
			if err := httptransport.ListenAndServe(ctx, srvCfg, promhttp.Handler(), logger); err != nil {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	if err := applyFilter(ctx, store, opts); err != nil {
		return err
	}
	if _, listed := store.Pagination(); !listed {
		store.List(ctx)
	}
	for i := 1; i < opts.pages; i++ {
		if !store.LoadNextPage(ctx) {
			break
		}
	}

	if opts.attend != "" {
		if _, ok := store.LoadOne(ctx, opts.attend); !ok {
			return fmt.Errorf("activity %s could not be loaded", opts.attend)
		}
		if !store.ToggleAttendance(ctx) {
			return fmt.Errorf("attendance for %s was not changed", opts.attend)
		}
	}
	if opts.follow != "" {
		svc := follow.NewService(client, store, follow.WithLogger(logger))
		if _, err := svc.ToggleFollowing(ctx, opts.follow); err != nil {
			return err
		}
	}

	page, _ := store.Pagination()
	return render(out, store.Grouped(), page, loc)
}

func applyFilter(ctx context.Context, store *activities.Store, opts options) error {
	if opts.start != "" {
		start, err := remote.ParseDate(opts.start)
		if err != nil {
			return err
		}
		if err := store.SetPredicate(ctx, query.KeyStartDate, start); err != nil {
			return err
		}
	}
	return store.SetPredicate(ctx, query.Key(opts.filter), time.Time{})
}

// render prints groups with clock times in loc, the zone the registry used
// for the day labels, followed by the page summary when one is known.
func render(out io.Writer, groups []cache.DayGroup, page domain.Pagination, loc *time.Location) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, group := range groups {
		fmt.Fprintln(tw, group.Day)
		for _, a := range group.Activities {
			var marks []string
			if a.IsHost {
				marks = append(marks, "host")
			} else if a.IsGoing {
				marks = append(marks, "going")
			}
			if a.IsCancelled {
				marks = append(marks, "cancelled")
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s, %s\t%s\t%s\n",
				a.Date.In(loc).Format("15:04"), a.Title, a.Venue, a.City, a.ID, strings.Join(marks, " "))
		}
	}
	if page.TotalPages > 0 {
		fmt.Fprintf(tw, "page %d of %d (%d activities)\n", page.CurrentPage, page.TotalPages, page.TotalItems)
	}
	return tw.Flush()
}
