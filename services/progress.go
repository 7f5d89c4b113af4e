package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/palateclub/palate/db"
	"github.com/palateclub/palate/roles"
)

// progressCacheTTL keeps the rollup hot between statement writes without
// letting stale counts linger
const progressCacheTTL = 30 * time.Second

// ProgressService rolls up per-theme statement progress over the collections
// visible to the caller's resolved role
type ProgressService struct {
	PG    *sql.DB
	Redis *redis.Client
	Teams roles.TeamStore
	Guard *roles.Guard
}

// NewProgressService creates a new progress service
func NewProgressService(pg *sql.DB, rdb *redis.Client, teams roles.TeamStore, guard *roles.Guard) *ProgressService {
	return &ProgressService{
		PG:    pg,
		Redis: rdb,
		Teams: teams,
		Guard: guard,
	}
}

// Aggregate computes {theme: {total, done}} for the collections visible under
// the team given the caller's role set. Contest managers see every collection
// the contest owns; everyone else sees the division-scoped subset. Themes
// with no visible collection are omitted, not zeroed.
func (s *ProgressService) Aggregate(ctx context.Context, team *db.Team, userID string, set roles.RoleSet) (map[string]db.ThemeProgress, error) {
	scope := s.scopeFor(team, set)

	if cached, ok := s.cacheGet(ctx, team.ID, scope, userID); ok {
		return cached, nil
	}

	var rows *sql.Rows
	var err error
	switch scope {
	case "contest":
		rows, err = s.PG.QueryContext(ctx, contestProgressQuery, team.ID)
	case "division":
		rows, err = s.PG.QueryContext(ctx, divisionProgressQuery, team.ID)
	default: // division-scoped subset of a contest for non-managers
		rows, err = s.PG.QueryContext(ctx, participantProgressQuery, team.ID, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate progress: %w", err)
	}
	defer rows.Close()

	progress := make(map[string]db.ThemeProgress)
	for rows.Next() {
		var theme string
		var total, done int
		if err := rows.Scan(&theme, &total, &done); err != nil {
			return nil, fmt.Errorf("failed to scan progress row: %w", err)
		}
		entry := progress[theme]
		entry.Total += total
		entry.Done += done
		progress[theme] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.cacheSet(ctx, team.ID, scope, userID, progress)
	return progress, nil
}

// Per-collection totals and done counts, accumulated by theme in Go so
// collections sharing a theme sum up.
//
// total: active impressions of the visible collections
// done:  statements with a recorded verdict for the scoped team(s)
const contestProgressQuery = `
	SELECT c.theme,
	       COUNT(ci.id) AS total,
	       COUNT(st.id) FILTER (WHERE st.statement IS NOT NULL) AS done
	FROM team_collections tc
	JOIN collections c ON c.id = tc.collection_id AND c.deleted_at IS NULL
	JOIN collection_impressions ci ON ci.collection_id = c.id AND ci.is_active
	LEFT JOIN statements st ON st.impression_id = ci.id AND st.team_id = tc.team_id
	WHERE tc.team_id = $1 AND tc.link_type = 'category'
	GROUP BY c.theme
`

const divisionProgressQuery = `
	SELECT c.theme,
	       COUNT(ci.id) AS total,
	       COUNT(st.id) FILTER (WHERE st.statement IS NOT NULL) AS done
	FROM team_collections tc
	JOIN collections c ON c.id = tc.collection_id AND c.deleted_at IS NULL
	JOIN collection_impressions ci ON ci.collection_id = c.id AND ci.is_active
	LEFT JOIN statements st ON st.impression_id = ci.id AND st.team_id = tc.team_id
	WHERE tc.team_id = $1 AND tc.link_type = 'division'
	GROUP BY c.theme
`

// Contest view for non-managers: only the collections assigned to divisions
// the user belongs to, with done counted against those divisions
const participantProgressQuery = `
	SELECT c.theme,
	       COUNT(ci.id) AS total,
	       COUNT(st.id) FILTER (WHERE st.statement IS NOT NULL) AS done
	FROM teams d
	JOIN relations r ON r.team_id = d.id AND r.user_id = $2 AND r.deleted_at IS NULL
	JOIN team_collections tc ON tc.team_id = d.id AND tc.link_type = 'division'
	JOIN collections c ON c.id = tc.collection_id AND c.deleted_at IS NULL
	JOIN collection_impressions ci ON ci.collection_id = c.id AND ci.is_active
	LEFT JOIN statements st ON st.impression_id = ci.id AND st.team_id = d.id
	WHERE d.parent_id = $1 AND d.kind = 'division' AND d.deleted_at IS NULL
	GROUP BY c.theme
`

// RecordStatement upserts a division's (or contest's) verdict on one
// collection impression. Gated by dual authority when the team is a division.
func (s *ProgressService) RecordStatement(ctx context.Context, actorID string, team *db.Team, impressionID, verdict string) (*db.Statement, error) {
	if team.Kind == db.KindDivision {
		contest, err := s.Teams.Get(ctx, team.ParentID)
		if err != nil {
			return nil, err
		}
		if err := s.Guard.RequireContestOrDivision(ctx, contest, team, actorID); err != nil {
			// Guides record statements for their division too
			if _, gerr := s.Guard.RequireTeam(ctx, team, actorID, roles.RoleGuide); gerr != nil {
				return nil, err
			}
		}
	} else {
		if _, err := s.Guard.RequireTeam(ctx, team, actorID, roles.Managers...); err != nil {
			return nil, err
		}
	}

	st := &db.Statement{
		ID:           uuid.New().String(),
		TeamID:       team.ID,
		ImpressionID: impressionID,
		RecordedBy:   actorID,
	}
	if verdict != "" {
		st.Statement = &verdict
	}
	now := time.Now()
	st.CreatedAt = now
	st.UpdatedAt = now

	// One row per (team, impression): re-recording updates in place
	err := s.PG.QueryRowContext(ctx, `
		INSERT INTO statements (id, team_id, impression_id, statement, recorded_by, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
		ON CONFLICT (team_id, impression_id)
		DO UPDATE SET statement = NULLIF($4, ''), recorded_by = $5, updated_at = $7
		RETURNING id, created_at
	`, st.ID, st.TeamID, st.ImpressionID, verdict, st.RecordedBy, st.CreatedAt, st.UpdatedAt).Scan(&st.ID, &st.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record statement: %w", err)
	}

	s.cacheInvalidate(ctx, team.ID, team.ParentID)
	return st, nil
}

// AssignCollection links a collection to a team: 'category' ownership for
// contests, 'division' assignment for divisions. A collection has exactly one
// owning contest but may serve many divisions.
func (s *ProgressService) AssignCollection(ctx context.Context, actorID string, team *db.Team, collectionID string) error {
	linkType := db.LinkCategory
	if team.Kind == db.KindDivision {
		linkType = db.LinkDivision
		contest, err := s.Teams.Get(ctx, team.ParentID)
		if err != nil {
			return err
		}
		if err := s.Guard.RequireContestOrDivision(ctx, contest, team, actorID); err != nil {
			return err
		}
		// A division can only receive collections its contest owns
		var owned bool
		if err := s.PG.QueryRowContext(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM team_collections
				WHERE team_id = $1 AND collection_id = $2 AND link_type = 'category'
			)
		`, contest.ID, collectionID).Scan(&owned); err != nil {
			return fmt.Errorf("failed to check collection ownership: %w", err)
		}
		if !owned {
			return roles.ErrNotFound
		}
	} else {
		if _, err := s.Guard.RequireTeam(ctx, team, actorID, roles.Managers...); err != nil {
			return err
		}
		// Category ownership is exclusive across contests
		var taken bool
		if err := s.PG.QueryRowContext(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM team_collections
				WHERE collection_id = $1 AND link_type = 'category' AND team_id != $2
			)
		`, collectionID, team.ID).Scan(&taken); err != nil {
			return fmt.Errorf("failed to check collection ownership: %w", err)
		}
		if taken {
			return fmt.Errorf("%w: collection already owned by another contest", ErrAlreadyExists)
		}
	}

	result, err := s.PG.ExecContext(ctx, `
		INSERT INTO team_collections (id, team_id, collection_id, link_type, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (team_id, collection_id, link_type) DO NOTHING
	`, uuid.New().String(), team.ID, collectionID, linkType)
	if err != nil {
		return fmt.Errorf("failed to assign collection: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// ============================================================================
// Cache helpers (best-effort, never fail the request)
// ============================================================================

// cacheKey scopes the entry by team and visibility scope. The participant view
// is cut to the caller's own divisions, so it is additionally keyed per user:
// two participants of different divisions must never share an entry.
func (s *ProgressService) cacheKey(teamID, scope, userID string) string {
	key := "progress:" + teamID + ":" + scope
	if scope == "participant" {
		key += ":" + userID
	}
	return key
}

func (s *ProgressService) cacheGet(ctx context.Context, teamID, scope, userID string) (map[string]db.ThemeProgress, bool) {
	if s.Redis == nil {
		return nil, false
	}
	raw, err := s.Redis.Get(ctx, s.cacheKey(teamID, scope, userID)).Result()
	if err != nil {
		return nil, false
	}
	var progress map[string]db.ThemeProgress
	if err := json.Unmarshal([]byte(raw), &progress); err != nil {
		return nil, false
	}
	return progress, true
}

func (s *ProgressService) cacheSet(ctx context.Context, teamID, scope, userID string, progress map[string]db.ThemeProgress) {
	if s.Redis == nil {
		return
	}
	raw, err := json.Marshal(progress)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, s.cacheKey(teamID, scope, userID), raw, progressCacheTTL).Err(); err != nil {
		log.Printf("progress: cache set failed for team %s: %v", teamID, err)
	}
}

func (s *ProgressService) cacheInvalidate(ctx context.Context, teamIDs ...string) {
	if s.Redis == nil {
		return
	}
	for _, id := range teamIDs {
		if id == "" {
			continue
		}
		for _, scope := range []string{"contest", "division"} {
			if err := s.Redis.Del(ctx, s.cacheKey(id, scope, "")).Err(); err != nil {
				log.Printf("progress: cache invalidation failed for team %s: %v", id, err)
			}
		}
		keys, err := s.Redis.Keys(ctx, "progress:"+id+":participant:*").Result()
		if err != nil {
			log.Printf("progress: cache invalidation failed for team %s: %v", id, err)
			continue
		}
		if len(keys) > 0 {
			if err := s.Redis.Del(ctx, keys...).Err(); err != nil {
				log.Printf("progress: cache invalidation failed for team %s: %v", id, err)
			}
		}
	}
}

func (s *ProgressService) scopeFor(team *db.Team, set roles.RoleSet) string {
	switch {
	case team.Kind == db.KindDivision:
		return "division"
	case set.Intersects(roles.Managers...):
		return "contest"
	default:
		return "participant"
	}
}
