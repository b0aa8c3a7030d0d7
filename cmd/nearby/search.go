package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"nearby/internal/config"
	"nearby/internal/infra"
	"nearby/internal/maps"
	"nearby/internal/modules/catalog"
	"nearby/internal/modules/location"
	"nearby/internal/modules/search"
	"nearby/internal/types"
)

var errTimedOut = errors.New("timed out waiting for results")

var (
	searchLat      float64
	searchLng      float64
	searchProvider string
	searchRadius   float64
	searchDebounce time.Duration
	searchWait     time.Duration
	mapsKey        string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run searches from a fixed point",
	Long: `Reads queries from stdin, one per line, and prints the places found around
--lat/--lng sorted by distance once each search settles. A line of the form
"eta N" requests the driving time to the Nth result of the last search.`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Float64Var(&searchLat, "lat", 0, "latitude of the search origin")
	searchCmd.Flags().Float64Var(&searchLng, "lng", 0, "longitude of the search origin")
	searchCmd.Flags().StringVar(&searchProvider, "provider", config.ProviderGoogle, "place provider (google or catalog)")
	searchCmd.Flags().Float64Var(&searchRadius, "radius", 5000, "search radius in meters")
	searchCmd.Flags().DurationVar(&searchDebounce, "debounce", 100*time.Millisecond, "quiet period before a query is searched")
	searchCmd.Flags().DurationVar(&searchWait, "wait", 15*time.Second, "how long to wait for a search or ETA")
	searchCmd.Flags().StringVar(&mapsKey, "maps-key", os.Getenv("GOOGLE_MAPS_API_KEY"), "Google Maps API key")
	_ = searchCmd.MarkFlagRequired("lat")
	_ = searchCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(searchCmd)
}

// openProviders builds the place and route providers for the selected
// flags. The returned func releases them.
var openProviders = func(ctx context.Context) (search.PlaceSearcher, search.RouteProvider, func(), error) {
	var (
		places search.PlaceSearcher
		routes search.RouteProvider = maps.NoRouteService{}
	)
	release := func() {}
	if mapsKey != "" {
		cfg := maps.ClientConfig{APIKey: mapsKey}
		client, err := maps.NewClient(cfg)
		if err != nil {
			return nil, nil, release, err
		}
		places = maps.NewPlacesService(client, cfg)
		routes = maps.NewRouteService(client, cfg)
	}

	switch searchProvider {
	case config.ProviderGoogle:
		if places == nil {
			return nil, nil, release, errors.New("--maps-key or GOOGLE_MAPS_API_KEY is required for the google provider")
		}
	case config.ProviderCatalog:
		if dbDSN == "" {
			return nil, nil, release, errors.New("--dsn or NEARBY_DB_DSN is required for the catalog provider")
		}
		pool, err := infra.NewDB(ctx, dbDSN)
		if err != nil {
			return nil, nil, release, err
		}
		release = pool.Close
		places = catalog.NewStore(pool)
	default:
		return nil, nil, release, fmt.Errorf("unknown provider %q", searchProvider)
	}
	return places, routes, release, nil
}

func runSearch(cmd *cobra.Command, _ []string) error {
	origin := types.Point{Lat: searchLat, Lng: searchLng}
	if !origin.Valid() {
		return fmt.Errorf("invalid origin %s", origin)
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	places, routes, release, err := openProviders(ctx)
	defer release()
	if err != nil {
		return err
	}

	source := location.NewSource(location.NewStaticPlatform(origin, location.PermissionAuthorized, nil), location.PermissionAuthorized, logger)
	coord := search.NewCoordinator(places, search.NewEnrichmentManager(routes, logger, nil), search.Options{
		Debounce:     searchDebounce,
		RadiusMeters: searchRadius,
		Logger:       logger,
	})
	go func() {
		if err := coord.Run(ctx); err != nil {
			logger.WithError(err).Error("coordinator stopped")
		}
	}()
	defer func() {
		cancel()
		<-coord.Done()
	}()

	if err := coord.ConnectLocationSource(source); err != nil {
		return err
	}
	return readQueries(cmd.InOrStdin(), cmd.OutOrStdout(), coord, logger)
}

func readQueries(in io.Reader, out io.Writer, coord *search.Coordinator, logger logrus.FieldLogger) error {
	updates, unsubscribe := coord.Subscribe()
	defer unsubscribe()

	var last search.Snapshot
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if arg, ok := strings.CutPrefix(line, "eta "); ok {
			if err := printETA(out, coord, updates, last, arg); err != nil {
				logger.WithError(err).Warn("eta failed")
				fmt.Fprintf(out, "eta unavailable: %v\n", err)
			}
			continue
		}

		snap, err := runQuery(coord, updates, line)
		if errors.Is(err, errTimedOut) {
			fmt.Fprintf(out, "Search for %q timed out.\n", line)
			continue
		}
		if err != nil {
			return err
		}
		last = snap
		printResults(out, snap)
	}
	return scanner.Err()
}

// runQuery sets q and waits for the search it triggers to settle. A query
// equal to the one already settled is answered from the current snapshot.
func runQuery(coord *search.Coordinator, updates <-chan search.Snapshot, q string) (search.Snapshot, error) {
	before := coord.Snapshot()
	if err := coord.SetQuery(q); err != nil {
		return search.Snapshot{}, err
	}
	if before.Query == q && before.Generation > 0 && !before.IsSearching {
		return before, nil
	}
	return awaitSnapshot(updates, func(s search.Snapshot) bool {
		return s.Query == q && !s.IsSearching && s.Generation > before.Generation
	})
}

func printETA(out io.Writer, coord *search.Coordinator, updates <-chan search.Snapshot, last search.Snapshot, arg string) error {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 1 || n > len(last.Results) {
		return fmt.Errorf("no result %q", arg)
	}
	res, err := coord.Enrich(last.Results[n-1].ID)
	if err != nil {
		return err
	}
	snap, err := awaitSnapshot(updates, func(s search.Snapshot) bool {
		r, ok := findResult(s.Results, res.ID)
		return ok && r.ETA != nil
	})
	if err != nil {
		return err
	}
	r, _ := findResult(snap.Results, res.ID)
	fmt.Fprintf(out, "[%d] %s: %s by car\n", n, r.Name, r.ETA.Round(time.Second))
	return nil
}

func awaitSnapshot(updates <-chan search.Snapshot, done func(search.Snapshot) bool) (search.Snapshot, error) {
	timeout := time.NewTimer(searchWait)
	defer timeout.Stop()
	for {
		select {
		case s := <-updates:
			if done(s) {
				return s, nil
			}
		case <-timeout.C:
			return search.Snapshot{}, errTimedOut
		}
	}
}

func findResult(results []search.Result, id types.ID) (search.Result, bool) {
	for _, r := range results {
		if r.ID == id {
			return r, true
		}
	}
	return search.Result{}, false
}

func printResults(out io.Writer, snap search.Snapshot) {
	if len(snap.Results) == 0 {
		fmt.Fprintf(out, "No places found for %q.\n", snap.Query)
		return
	}
	fmt.Fprintf(out, "%d places for %q:\n", len(snap.Results), snap.Query)
	for i, r := range snap.Results {
		line := fmt.Sprintf("[%d] %s", i+1, r.Name)
		if r.Address != "" {
			line += " - " + r.Address
		}
		fmt.Fprintf(out, "%s (%.0f m)\n", line, r.DistanceMeters)
	}
}
