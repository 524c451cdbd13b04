package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sjsage522/estateworker/internal/models"
	"sjsage522/estateworker/logger"
	apperrors "sjsage522/estateworker/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink stores records in the properties and property_images tables.
// property_reference is UNIQUE, so concurrent workers saving the same listing
// resolve through ON CONFLICT instead of racing a lookup.
type PostgresSink struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// NewPostgresSink connects, pings and migrates the schema
func NewPostgresSink(ctx context.Context, databaseURL string, log *logger.Logger) (*PostgresSink, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, apperrors.NewConfiguration("invalid DATABASE_URL", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, apperrors.NewStorage("postgres", "failed to create pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperrors.NewStorage("postgres", "failed to ping database", err)
	}

	s := &PostgresSink{pool: pool, logger: log.ForComponent("postgres")}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	s.logger.Info().Msg("Connected to database")
	return s, nil
}

// Migrate creates the tables when they do not exist.
func (s *PostgresSink) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements() {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return apperrors.NewStorage("postgres", "schema migration failed", err)
		}
	}
	return nil
}

func schemaStatements() []string {
	var amenityCols strings.Builder
	for _, a := range models.AllAmenities {
		fmt.Fprintf(&amenityCols, ",\n\t%s BOOLEAN NOT NULL DEFAULT FALSE", a)
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS properties (
	id BIGSERIAL PRIMARY KEY,
	property_reference TEXT NOT NULL UNIQUE,
	external_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT,
	price NUMERIC(14,2),
	currency TEXT NOT NULL DEFAULT 'EUR',
	address TEXT,
	city TEXT,
	neighborhood TEXT,
	province TEXT,
	country TEXT NOT NULL DEFAULT 'Spain',
	zip_code TEXT,
	rooms INTEGER NOT NULL DEFAULT 0,
	bathrooms INTEGER NOT NULL DEFAULT 0,
	area INTEGER NOT NULL DEFAULT 0,
	lot_area INTEGER,
	floor INTEGER,
	floor_total INTEGER,
	year_built INTEGER,
	balcony_count INTEGER,
	kitchen_count INTEGER,
	property_type TEXT,
	transaction_type TEXT,
	status TEXT,
	energy_rating TEXT,
	cooling_system TEXT,
	heating_source TEXT,
	exterior_type TEXT,
	floor_type TEXT,
	garden_type TEXT,
	roof_type TEXT,
	architectural_style TEXT,
	parking_type TEXT,
	gas_emission_class TEXT,
	general_view TEXT,
	agency_name TEXT,
	agency_phone TEXT,
	agency_logo TEXT,
	agency_location TEXT,
	listing_url TEXT,
	source_url TEXT,
	video_url TEXT,
	virtual_tour_url TEXT,
	floorplans TEXT[] NOT NULL DEFAULT '{}',
	exterior_amenities TEXT[] NOT NULL DEFAULT '{}',
	interior_amenities TEXT[] NOT NULL DEFAULT '{}',
	raw_features JSONB,
	source_created_at TEXT,
	source_modified_at TEXT,
	scraped_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()` + amenityCols.String() + `
)`,
		`CREATE TABLE IF NOT EXISTS property_images (
	id BIGSERIAL PRIMARY KEY,
	property_id BIGINT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
	image_url TEXT NOT NULL,
	source_url TEXT,
	is_primary BOOLEAN NOT NULL DEFAULT FALSE,
	position INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS property_images_property_id_idx ON property_images (property_id, position)`,
	}
}

// propertyRow flattens a record into column names and values.
func propertyRow(rec *models.PropertyRecord) ([]string, []any, error) {
	rawFeatures, err := json.Marshal(rec.RawFeatures)
	if err != nil {
		return nil, nil, err
	}

	var agency models.Agency
	if rec.Agency != nil {
		agency = *rec.Agency
	}

	cols := []string{
		"property_reference", "external_id", "title", "description", "price", "currency",
		"address", "city", "neighborhood", "province", "country", "zip_code",
		"rooms", "bathrooms", "area", "lot_area", "floor", "floor_total", "year_built",
		"balcony_count", "kitchen_count",
		"property_type", "transaction_type", "status", "energy_rating", "cooling_system",
		"heating_source", "exterior_type", "floor_type", "garden_type", "roof_type",
		"architectural_style", "parking_type", "gas_emission_class", "general_view",
		"agency_name", "agency_phone", "agency_logo", "agency_location",
		"listing_url", "source_url", "video_url", "virtual_tour_url", "floorplans",
		"exterior_amenities", "interior_amenities", "raw_features",
		"source_created_at", "source_modified_at", "scraped_at",
	}
	f := rec.Features
	vals := []any{
		rec.Reference(), rec.ExternalID, rec.Title, nullString(rec.Description), rec.Price.Amount, rec.Price.Currency,
		nullString(rec.Location.Address), nullString(rec.Location.City), nullString(rec.Location.Neighborhood),
		nullString(rec.Location.Province), rec.Location.Country, nullString(rec.Location.ZipCode),
		intOrZero(f.Rooms), intOrZero(f.Bathrooms), intOrZero(f.AreaM2), f.LotArea, f.Floor, f.FloorTotal, f.YearBuilt,
		f.BalconyCount, f.KitchenCount,
		nullString(rec.PropertyType), nullString(rec.Transaction), nullString(rec.Status),
		nullString(rec.EnergyRating), nullString(rec.CoolingSystem), nullString(rec.HeatingSource),
		nullString(rec.ExteriorType), nullString(rec.FloorType), nullString(rec.GardenType), nullString(rec.RoofType),
		nullString(rec.ArchitecturalStyle), nullString(rec.ParkingType), nullString(rec.GasEmissionClass),
		nullString(rec.GeneralView),
		nullString(agency.Name), nullString(agency.Phone), nullString(agency.LogoURL), nullString(agency.Location),
		rec.URL, rec.SourceURL, nullString(rec.Media.VideoURL), nullString(rec.Media.VirtualTourURL), nonNilSlice(rec.Media.Floorplans),
		nonNilSlice(rec.ExteriorAmenities), nonNilSlice(rec.InteriorAmenities), string(rawFeatures),
		nullString(rec.CreatedAt), nullString(rec.ModifiedAt), rec.ScrapedAt,
	}

	for _, a := range models.AllAmenities {
		cols = append(cols, string(a))
		vals = append(vals, rec.Amenities.Has(a))
	}
	return cols, vals, nil
}

// upsertSQL builds the insert statement for a policy. Both variants return
// the row id and whether the row was newly inserted; the skip variant
// returns no row on conflict.
func upsertSQL(cols []string, policy DuplicatePolicy) string {
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO properties (%s) VALUES (%s) ON CONFLICT (property_reference) ",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	if policy != PolicyOverwrite {
		b.WriteString("DO NOTHING RETURNING id, TRUE")
		return b.String()
	}

	sets := make([]string, 0, len(cols))
	for _, c := range cols {
		if c == "property_reference" {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	sets = append(sets, "updated_at = now()")
	fmt.Fprintf(&b, "DO UPDATE SET %s RETURNING id, (xmax = 0)", strings.Join(sets, ", "))
	return b.String()
}

func (s *PostgresSink) Exists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM properties WHERE property_reference = $1)`, reference).Scan(&exists)
	if err != nil {
		return false, apperrors.NewStorage("postgres", "failed to look up "+reference, err)
	}
	return exists, nil
}

// Save writes the property and its image rows in one transaction.
func (s *PostgresSink) Save(ctx context.Context, rec *models.PropertyRecord, policy DuplicatePolicy) (Outcome, error) {
	cols, vals, err := propertyRow(rec)
	if err != nil {
		return "", apperrors.NewStorage("postgres", "failed to encode features", err)
	}
	log := s.logger.WithField("reference", rec.Reference())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", apperrors.NewStorage("postgres", "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	var (
		propertyID int64
		inserted   bool
	)
	err = tx.QueryRow(ctx, upsertSQL(cols, policy), vals...).Scan(&propertyID, &inserted)
	if errors.Is(err, pgx.ErrNoRows) {
		log.Info().Msg("Skipped existing property")
		return OutcomeSkipped, nil
	}
	if err != nil {
		return "", apperrors.NewStorage("postgres", "failed to upsert property", err)
	}

	outcome := OutcomeInserted
	if !inserted {
		outcome = OutcomeUpdated
		if _, err := tx.Exec(ctx, `DELETE FROM property_images WHERE property_id = $1`, propertyID); err != nil {
			return "", apperrors.NewStorage("postgres", "failed to clear images", err)
		}
	}

	if len(rec.Media.Images) > 0 {
		rows := make([][]any, 0, len(rec.Media.Images))
		for i, img := range rec.Media.Images {
			rows = append(rows, []any{propertyID, img.URL, nullString(img.SourceURL), img.IsPrimary, i})
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"property_images"},
			[]string{"property_id", "image_url", "source_url", "is_primary", "position"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return "", apperrors.NewStorage("postgres", "failed to insert images", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", apperrors.NewStorage("postgres", "failed to commit", err)
	}
	log.Info().
		Int64("property_id", propertyID).
		Int("images", len(rec.Media.Images)).
		Str("outcome", string(outcome)).
		Msg("Saved property")
	return outcome, nil
}

// Close flushes and closes the pool
func (s *PostgresSink) Close() error {
	s.pool.Close()
	s.logger.Info().Msg("Database pool closed")
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func intOrZero(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
