package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rentwatch/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// GetExistingIdentities loads primaryKey -> fingerprint for all active
// listings previously saved under the query.
func (s *PostgresStore) GetExistingIdentities(ctx context.Context, queryID string) (map[string]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT primary_key, fingerprint FROM listings WHERE query_id = $1 AND is_active`,
		queryID)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	identities := make(map[string]string)
	for rows.Next() {
		var key, fingerprint string
		if err := rows.Scan(&key, &fingerprint); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities[key] = fingerprint
	}
	return identities, rows.Err()
}

// SaveResults upserts every classified listing and records the session.
func (s *PostgresStore) SaveResults(ctx context.Context, queryID string, batch *models.CrawlBatch, dedup *models.DedupResult) (*models.SessionSummary, error) {
	now := time.Now()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	saved := 0
	for _, cl := range dedup.Listings {
		if cl.Class == models.ClassUnchanged {
			// Touch last_seen only; content is already current.
			if _, err := tx.Exec(ctx,
				`UPDATE listings SET last_seen_at = $1 WHERE query_id = $2 AND primary_key = $3`,
				now, queryID, cl.Listing.PrimaryKey); err != nil {
				return nil, fmt.Errorf("touch listing: %w", err)
			}
			continue
		}

		features, _ := json.Marshal(cl.Listing.Features)
		stations, _ := json.Marshal(cl.Listing.Stations)

		if _, err := tx.Exec(ctx, `
			INSERT INTO listings (
				query_id, primary_key, fingerprint, title, price, link, location,
				house_type, room_type, size_ping, floor, features, stations,
				lat, lng, first_seen_at, last_seen_at, is_active
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$16,TRUE)
			ON CONFLICT (query_id, primary_key) DO UPDATE SET
				fingerprint = EXCLUDED.fingerprint,
				title = EXCLUDED.title,
				price = EXCLUDED.price,
				location = EXCLUDED.location,
				house_type = EXCLUDED.house_type,
				room_type = EXCLUDED.room_type,
				size_ping = EXCLUDED.size_ping,
				floor = EXCLUDED.floor,
				features = EXCLUDED.features,
				stations = EXCLUDED.stations,
				lat = COALESCE(EXCLUDED.lat, listings.lat),
				lng = COALESCE(EXCLUDED.lng, listings.lng),
				last_seen_at = EXCLUDED.last_seen_at,
				is_active = TRUE`,
			queryID, cl.Listing.PrimaryKey, cl.Listing.Fingerprint, cl.Listing.Title,
			cl.Listing.Price, cl.Listing.Link, cl.Listing.Location,
			cl.Listing.HouseType, cl.Listing.RoomType, cl.Listing.SizePing,
			cl.Listing.Floor, features, stations,
			cl.Listing.Lat, cl.Listing.Lng, now); err != nil {
			return nil, fmt.Errorf("upsert listing %s: %w", cl.Listing.PrimaryKey, err)
		}
		saved++
	}

	failures, _ := json.Marshal(batch.FailedStations())
	if _, err := tx.Exec(ctx, `
		INSERT INTO crawl_sessions (
			id, query_id, started_at, finished_at, status,
			listings_found, listings_new, listings_changed, station_failures
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		batch.ID, queryID, batch.StartedAt, batch.FinishedAt, string(batch.State),
		len(batch.Listings), dedup.New, dedup.Changed, failures); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &models.SessionSummary{
		SessionID: batch.ID,
		QueryID:   queryID,
		Saved:     saved,
		New:       dedup.New,
		Changed:   dedup.Changed,
		Unchanged: dedup.Unchanged,
	}, nil
}

// ActiveListingLinks returns links of listings not checked since cutoff, for
// the healthcheck worker.
func (s *PostgresStore) ActiveListingLinks(ctx context.Context, cutoff time.Time, limit int) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT primary_key, link FROM listings
		WHERE is_active AND last_seen_at < $1
		ORDER BY last_seen_at ASC
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	links := make(map[string]string)
	for rows.Next() {
		var key, link string
		if err := rows.Scan(&key, &link); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links[key] = link
	}
	return links, rows.Err()
}

// MarkListingInactive flags a delisted listing.
func (s *PostgresStore) MarkListingInactive(ctx context.Context, primaryKey string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE listings SET is_active = FALSE WHERE primary_key = $1`, primaryKey)
	return err
}

// TouchListing bumps last_seen_at after a successful healthcheck.
func (s *PostgresStore) TouchListing(ctx context.Context, primaryKey string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE listings SET last_seen_at = $1 WHERE primary_key = $2`, at, primaryKey)
	return err
}

// SessionByID loads one crawl session record.
func (s *PostgresStore) SessionByID(ctx context.Context, id uuid.UUID) (*models.CrawlSession, error) {
	var session models.CrawlSession
	err := s.pool.QueryRow(ctx, `
		SELECT id, query_id, started_at, finished_at, status,
		       listings_found, listings_new, listings_changed, station_failures
		FROM crawl_sessions WHERE id = $1`, id).Scan(
		&session.ID, &session.QueryID, &session.StartedAt, &session.FinishedAt,
		&session.Status, &session.ListingsFound, &session.ListingsNew,
		&session.ListingsChanged, &session.StationFailures)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query session: %w", err)
	}
	return &session, nil
}
