package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"TenderRadar/internal/domain"
	"TenderRadar/internal/ports"
)

// Store is the Postgres persistence gateway for subscribers, countries,
// CPV associations and the sent log.
type Store struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

var _ ports.SubscriberStore = (*Store)(nil)

// NewStore wires an sqlx connection.
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Connect opens and pings a Postgres connection.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// CountriesWithSubscribers returns the countries that have at least one
// subscriber, name-ordered.
func (s *Store) CountriesWithSubscribers(ctx context.Context) ([]domain.Country, error) {
	query, args, err := s.sb.
		Select("c.id", "c.name", "c.iso_code").
		Distinct().
		From("countries c").
		Join("subscribers u ON u.country_id = c.id").
		OrderBy("c.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build countries query: %w", err)
	}

	countries := []domain.Country{}
	if err := s.db.SelectContext(ctx, &countries, query, args...); err != nil {
		return nil, fmt.Errorf("query countries with subscribers: %w", err)
	}
	return countries, nil
}

// SubscribersByCountry returns every subscriber registered for a country.
func (s *Store) SubscribersByCountry(ctx context.Context, countryID int) ([]domain.Subscriber, error) {
	query, args, err := s.sb.
		Select("id", "name", "email", "interests", "country_id").
		From("subscribers").
		Where(sq.Eq{"country_id": countryID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build subscribers query: %w", err)
	}

	subs := []domain.Subscriber{}
	if err := s.db.SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, fmt.Errorf("query subscribers for country %d: %w", countryID, err)
	}
	return subs, nil
}

// CPVsForSubscriber returns the CPV associations of one subscriber.
func (s *Store) CPVsForSubscriber(ctx context.Context, subscriberID int) ([]domain.CPV, error) {
	query, args, err := s.sb.
		Select("c.cpv_code AS code", "c.description").
		From("cpv c").
		Join("subscriber_cpv sc ON sc.cpv_id = c.id").
		Where(sq.Eq{"sc.subscriber_id": subscriberID}).
		OrderBy("c.cpv_code ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build cpv query: %w", err)
	}

	cpvs := []domain.CPV{}
	if err := s.db.SelectContext(ctx, &cpvs, query, args...); err != nil {
		return nil, fmt.Errorf("query cpvs for subscriber %d: %w", subscriberID, err)
	}
	return cpvs, nil
}

// CountryIDByISOCode resolves an ISO code to the internal country id.
// Unknown codes return ok=false without an error.
func (s *Store) CountryIDByISOCode(ctx context.Context, isoCode string) (int, bool, error) {
	query, args, err := s.sb.
		Select("id").
		From("countries").
		Where(sq.Eq{"iso_code": isoCode}).
		ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build country lookup: %w", err)
	}

	var id int
	err = s.db.GetContext(ctx, &id, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup country %s: %w", isoCode, err)
	}
	return id, true, nil
}

// WasSent reports whether the (subscriber, publication) pair is in the sent log.
func (s *Store) WasSent(ctx context.Context, subscriberID int, publicationNumber string) (bool, error) {
	query, args, err := s.sb.
		Select("1").
		From("sent_notices").
		Where(sq.Eq{"subscriber_id": subscriberID, "publication_number": publicationNumber}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build sent lookup: %w", err)
	}

	var one int
	err = s.db.GetContext(ctx, &one, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check sent notice: %w", err)
	}
	return true, nil
}

// RecordSent registers a delivered notice. Duplicate inserts are silently
// ignored, so an overlapping cycle racing on the same pair cannot error.
func (s *Store) RecordSent(ctx context.Context, subscriberID int, publicationNumber string) error {
	query, args, err := s.sb.
		Insert("sent_notices").
		Columns("subscriber_id", "publication_number").
		Values(subscriberID, publicationNumber).
		Suffix("ON CONFLICT (subscriber_id, publication_number) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build sent insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record sent notice: %w", err)
	}
	return nil
}

// SubscribersWithoutCPV returns subscribers with no CPV associations yet.
func (s *Store) SubscribersWithoutCPV(ctx context.Context) ([]domain.Subscriber, error) {
	query, args, err := s.sb.
		Select("u.id", "u.name", "u.email", "u.interests", "u.country_id").
		From("subscribers u").
		LeftJoin("subscriber_cpv sc ON sc.subscriber_id = u.id").
		Where("sc.subscriber_id IS NULL").
		OrderBy("u.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build unclassified query: %w", err)
	}

	subs := []domain.Subscriber{}
	if err := s.db.SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, fmt.Errorf("query subscribers without cpv: %w", err)
	}
	return subs, nil
}

// UpsertCPV inserts or refreshes a CPV entry and returns its id.
func (s *Store) UpsertCPV(ctx context.Context, code, description string) (int, error) {
	query, args, err := s.sb.
		Insert("cpv").
		Columns("cpv_code", "description").
		Values(code, description).
		Suffix("ON CONFLICT (cpv_code) DO UPDATE SET description = EXCLUDED.description RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build cpv upsert: %w", err)
	}

	var id int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert cpv %s: %w", code, err)
	}
	return id, nil
}

// AssociateSubscriberCPV links a subscriber to a CPV, ignoring duplicates.
func (s *Store) AssociateSubscriberCPV(ctx context.Context, subscriberID, cpvID int) error {
	query, args, err := s.sb.
		Insert("subscriber_cpv").
		Columns("subscriber_id", "cpv_id").
		Values(subscriberID, cpvID).
		Suffix("ON CONFLICT (subscriber_id, cpv_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build association insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("associate subscriber %d with cpv %d: %w", subscriberID, cpvID, err)
	}
	return nil
}
