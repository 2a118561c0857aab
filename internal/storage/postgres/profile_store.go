package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"stacks-whale-intel/internal/domain"
	"stacks-whale-intel/internal/observability"
	"stacks-whale-intel/internal/storage"
)

// ProfileStore implements storage.ProfileStore using PostgreSQL. Nested
// portfolio/activity documents live in JSONB columns; the fields the two
// leaderboard reads sort on are first-class columns with indexes.
type ProfileStore struct {
	pool *Pool
}

// NewProfileStore creates a new ProfileStore.
func NewProfileStore(pool *Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ProfileStore = (*ProfileStore)(nil)

const profileColumns = `
	address, alias, category, verified, source,
	stx_balance, stx_locked, total_value_usd, tokens,
	protocols, tx_count_30d, tx_count_90d, volume_30d_stx, last_active_at, activity_level,
	score_composite, score_balance, score_activity, score_diversity,
	percentile, recent_transactions, last_transaction, created_at, updated_at
`

// Upsert inserts or fully replaces the profile for profile.Address.
// created_at is written once and never replaced.
func (s *ProfileStore) Upsert(ctx context.Context, p *domain.WhaleProfile) error {
	if p == nil || p.Address == "" {
		return storage.ErrInvalidInput
	}

	tokens, err := json.Marshal(p.Portfolio.Tokens)
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}
	protocols, err := json.Marshal(p.Activity.Protocols)
	if err != nil {
		return fmt.Errorf("marshal protocols: %w", err)
	}
	recent, err := json.Marshal(p.RecentTransactions)
	if err != nil {
		return fmt.Errorf("marshal recent transactions: %w", err)
	}
	var lastTx *string
	if p.LastTransaction != nil {
		b, err := json.Marshal(p.LastTransaction)
		if err != nil {
			return fmt.Errorf("marshal last transaction: %w", err)
		}
		str := string(b)
		lastTx = &str
	}

	query := `
		INSERT INTO whale_profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23, $24)
		ON CONFLICT (address) DO UPDATE SET
			alias = EXCLUDED.alias,
			category = EXCLUDED.category,
			verified = EXCLUDED.verified,
			source = EXCLUDED.source,
			stx_balance = EXCLUDED.stx_balance,
			stx_locked = EXCLUDED.stx_locked,
			total_value_usd = EXCLUDED.total_value_usd,
			tokens = EXCLUDED.tokens,
			protocols = EXCLUDED.protocols,
			tx_count_30d = EXCLUDED.tx_count_30d,
			tx_count_90d = EXCLUDED.tx_count_90d,
			volume_30d_stx = EXCLUDED.volume_30d_stx,
			last_active_at = EXCLUDED.last_active_at,
			activity_level = EXCLUDED.activity_level,
			score_composite = EXCLUDED.score_composite,
			score_balance = EXCLUDED.score_balance,
			score_activity = EXCLUDED.score_activity,
			score_diversity = EXCLUDED.score_diversity,
			percentile = EXCLUDED.percentile,
			recent_transactions = EXCLUDED.recent_transactions,
			last_transaction = EXCLUDED.last_transaction,
			updated_at = EXCLUDED.updated_at
	`

	start := time.Now()
	_, err = s.pool.Exec(ctx, query,
		p.Address, p.Alias, string(p.Category), p.Verified, string(p.Source),
		p.Portfolio.STXBalance, p.Portfolio.STXLocked, p.Portfolio.TotalValueUSD, string(tokens),
		string(protocols), p.Activity.TxCount30d, p.Activity.TxCount90d, p.Activity.Volume30dSTX,
		p.Activity.LastActiveAt, string(p.Activity.ActivityLevel),
		p.Scores.Composite, p.Scores.Balance, p.Scores.Activity, p.Scores.Diversity,
		p.Percentile, string(recent), lastTx, p.CreatedAt, p.UpdatedAt,
	)
	observability.RecordDBQuery("postgres", "upsert_profile", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("upsert whale profile: %w", err)
	}
	return nil
}

// GetByAddress retrieves one profile. Returns ErrNotFound if absent.
func (s *ProfileStore) GetByAddress(ctx context.Context, address string) (*domain.WhaleProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM whale_profiles WHERE address = $1`

	row := s.pool.QueryRow(ctx, query, address)
	p, err := scanProfile(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get whale profile: %w", err)
	}
	return p, nil
}

// TopByScore returns up to limit profiles ordered by composite score desc,
// ties broken by balance desc. A negative limit returns all profiles.
func (s *ProfileStore) TopByScore(ctx context.Context, limit int) ([]*domain.WhaleProfile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM whale_profiles
		ORDER BY score_composite DESC, stx_balance DESC, address ASC
		LIMIT $1
	`
	return s.queryProfiles(ctx, query, limitArg(limit))
}

// TopByBalance returns up to limit profiles ordered by STX balance desc.
// A negative limit returns all profiles.
func (s *ProfileStore) TopByBalance(ctx context.Context, limit int) ([]*domain.WhaleProfile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM whale_profiles
		ORDER BY stx_balance DESC, score_composite DESC, address ASC
		LIMIT $1
	`
	return s.queryProfiles(ctx, query, limitArg(limit))
}

// limitArg maps a negative limit to NULL, which postgres treats as LIMIT ALL.
func limitArg(limit int) any {
	if limit < 0 {
		return nil
	}
	return limit
}

// ListAddresses returns every tracked address.
func (s *ProfileStore) ListAddresses(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT address FROM whale_profiles ORDER BY address ASC`)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	var addresses []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addresses = append(addresses, a)
	}
	return addresses, rows.Err()
}

// Count returns the number of tracked profiles.
func (s *ProfileStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM whale_profiles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count whale profiles: %w", err)
	}
	return n, nil
}

func (s *ProfileStore) queryProfiles(ctx context.Context, query string, args ...interface{}) ([]*domain.WhaleProfile, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, query, args...)
	observability.RecordDBQuery("postgres", "select_profiles", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("query whale profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*domain.WhaleProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan whale profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// scanProfile reads one row into a WhaleProfile, unmarshalling the JSONB
// document columns.
func scanProfile(row pgx.Row) (*domain.WhaleProfile, error) {
	var (
		p             domain.WhaleProfile
		category      string
		source        string
		activityLevel string
		tokens        []byte
		protocols     []byte
		recent        []byte
		lastTx        []byte
	)

	err := row.Scan(
		&p.Address, &p.Alias, &category, &p.Verified, &source,
		&p.Portfolio.STXBalance, &p.Portfolio.STXLocked, &p.Portfolio.TotalValueUSD, &tokens,
		&protocols, &p.Activity.TxCount30d, &p.Activity.TxCount90d, &p.Activity.Volume30dSTX,
		&p.Activity.LastActiveAt, &activityLevel,
		&p.Scores.Composite, &p.Scores.Balance, &p.Scores.Activity, &p.Scores.Diversity,
		&p.Percentile, &recent, &lastTx, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Category = domain.Category(category)
	p.Source = domain.Source(source)
	p.Activity.ActivityLevel = domain.ActivityLevel(activityLevel)

	if len(tokens) > 0 {
		if err := json.Unmarshal(tokens, &p.Portfolio.Tokens); err != nil {
			return nil, fmt.Errorf("unmarshal tokens: %w", err)
		}
	}
	if len(protocols) > 0 {
		if err := json.Unmarshal(protocols, &p.Activity.Protocols); err != nil {
			return nil, fmt.Errorf("unmarshal protocols: %w", err)
		}
	}
	if len(recent) > 0 {
		if err := json.Unmarshal(recent, &p.RecentTransactions); err != nil {
			return nil, fmt.Errorf("unmarshal recent transactions: %w", err)
		}
	}
	if len(lastTx) > 0 {
		var summary domain.TxSummary
		if err := json.Unmarshal(lastTx, &summary); err != nil {
			return nil, fmt.Errorf("unmarshal last transaction: %w", err)
		}
		p.LastTransaction = &summary
	}

	return &p, nil
}
