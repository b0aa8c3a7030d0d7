package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"nearby/internal/infra"
	"nearby/internal/modules/catalog"
	"nearby/internal/types"
)

var (
	entryAddress  string
	entryCategory string
	entryLat      float64
	entryLng      float64
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the place catalog",
}

var catalogAddCmd = &cobra.Command{
	Use:   "add <id> <name>",
	Short: "Add or update a catalog place",
	Long: `Stores a place in the catalog used by the catalog provider. Places saved
without --lat and --lng are kept but never appear in search results.`,
	Args: cobra.ExactArgs(2),
	RunE: runCatalogAdd,
}

func init() {
	catalogAddCmd.Flags().StringVar(&entryAddress, "address", "", "street address")
	catalogAddCmd.Flags().StringVar(&entryCategory, "category", "", "category matched by searches, e.g. supermarket")
	catalogAddCmd.Flags().Float64Var(&entryLat, "lat", 0, "latitude")
	catalogAddCmd.Flags().Float64Var(&entryLng, "lng", 0, "longitude")
	catalogCmd.AddCommand(catalogAddCmd)
	rootCmd.AddCommand(catalogCmd)
}

// entryFromFlags validates the add flags into a catalog entry.
func entryFromFlags(cmd *cobra.Command, id, name string) (catalog.Entry, error) {
	e := catalog.Entry{ID: id, Name: name, Address: entryAddress, Category: entryCategory}
	latSet, lngSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lng")
	if latSet != lngSet {
		return catalog.Entry{}, errors.New("--lat and --lng must be set together")
	}
	if latSet {
		p := types.Point{Lat: entryLat, Lng: entryLng}
		if !p.Valid() {
			return catalog.Entry{}, fmt.Errorf("invalid coordinates %s", p)
		}
		lat, lng := p.Lat, p.Lng
		e.Lat, e.Lng = &lat, &lng
	}
	return e, nil
}

func runCatalogAdd(cmd *cobra.Command, args []string) error {
	e, err := entryFromFlags(cmd, args[0], args[1])
	if err != nil {
		return err
	}
	if dbDSN == "" {
		return errors.New("--dsn or NEARBY_DB_DSN is required")
	}

	pool, err := infra.NewDB(cmd.Context(), dbDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := catalog.NewStore(pool).Upsert(cmd.Context(), e); err != nil {
		return fmt.Errorf("failed to save place: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", e.ID)
	return nil
}
