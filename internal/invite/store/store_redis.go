package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"hackgate/internal/invite/models"
	id "hackgate/pkg/domain"
	"hackgate/pkg/platform/sentinel"
)

// RedisStore persists invite tokens in Redis. The consume transition runs as
// a single Lua script so concurrent consumers of the same token resolve to
// exactly one winner in one round trip.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func inviteKey(inviteID id.InviteID) string {
	return "invite:" + inviteID.String()
}

func teamInvitesKey(teamID id.TeamID) string {
	return "invites:team:" + teamID.String()
}

var consumeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 'missing'
end
if redis.call('HGET', KEYS[1], 'consumed') == '1' then
	return 'used'
end
redis.call('HSET', KEYS[1], 'consumed', '1', 'consumed_at', ARGV[1], 'consumed_by', ARGV[2])
return 'ok'
`)

func (s *RedisStore) Create(ctx context.Context, token *models.Token) error {
	key := inviteKey(token.ID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"team_id", token.TeamID.String(),
		"secret_hash", token.SecretHash,
		"created_at", token.CreatedAt.Format(time.RFC3339Nano),
		"consumed", "0",
	)
	pipe.SAdd(ctx, teamInvitesKey(token.TeamID), token.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create invite: %w", err)
	}
	return nil
}

func (s *RedisStore) Find(ctx context.Context, inviteID id.InviteID) (*models.Token, error) {
	fields, err := s.client.HGetAll(ctx, inviteKey(inviteID)).Result()
	if err != nil {
		return nil, fmt.Errorf("find invite: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("invite %s: %w", inviteID, sentinel.ErrNotFound)
	}
	return tokenFromFields(inviteID, fields)
}

func (s *RedisStore) Consume(ctx context.Context, inviteID id.InviteID, userID id.UserID, now time.Time) error {
	result, err := consumeScript.Run(ctx, s.client,
		[]string{inviteKey(inviteID)},
		now.Format(time.RFC3339Nano), userID.String(),
	).Text()
	if err != nil {
		return fmt.Errorf("consume invite: %w", err)
	}
	switch result {
	case "ok":
		return nil
	case "used":
		return fmt.Errorf("invite %s: %w", inviteID, sentinel.ErrAlreadyUsed)
	default:
		return fmt.Errorf("invite %s: %w", inviteID, sentinel.ErrNotFound)
	}
}

func (s *RedisStore) Unconsume(ctx context.Context, inviteID id.InviteID) error {
	key := inviteKey(inviteID)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("unconsume invite: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("invite %s: %w", inviteID, sentinel.ErrNotFound)
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, "consumed", "0")
	pipe.HDel(ctx, key, "consumed_at", "consumed_by")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("unconsume invite: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, inviteID id.InviteID) error {
	token, err := s.Find(ctx, inviteID)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, inviteKey(inviteID))
	pipe.SRem(ctx, teamInvitesKey(token.TeamID), inviteID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete invite: %w", err)
	}
	return nil
}

func (s *RedisStore) ListByTeam(ctx context.Context, teamID id.TeamID) ([]*models.Token, error) {
	ids, err := s.client.SMembers(ctx, teamInvitesKey(teamID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	var out []*models.Token
	for _, raw := range ids {
		inviteID, err := id.ParseInviteID(raw)
		if err != nil {
			continue
		}
		token, err := s.Find(ctx, inviteID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, token)
	}
	return out, nil
}

func (s *RedisStore) DeleteByTeam(ctx context.Context, teamID id.TeamID) error {
	ids, err := s.client.SMembers(ctx, teamInvitesKey(teamID)).Result()
	if err != nil {
		return fmt.Errorf("delete team invites: %w", err)
	}
	pipe := s.client.TxPipeline()
	for _, raw := range ids {
		pipe.Del(ctx, "invite:"+raw)
	}
	pipe.Del(ctx, teamInvitesKey(teamID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete team invites: %w", err)
	}
	return nil
}

func tokenFromFields(inviteID id.InviteID, fields map[string]string) (*models.Token, error) {
	teamID, err := id.ParseTeamID(fields["team_id"])
	if err != nil {
		return nil, fmt.Errorf("invite %s has malformed team id: %w", inviteID, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("invite %s has malformed created_at: %w", inviteID, err)
	}

	token := &models.Token{
		ID:         inviteID,
		TeamID:     teamID,
		SecretHash: fields["secret_hash"],
		CreatedAt:  createdAt,
	}
	if fields["consumed"] == "1" {
		if at, err := time.Parse(time.RFC3339Nano, fields["consumed_at"]); err == nil {
			token.ConsumedAt = &at
		}
		if by, err := id.ParseUserID(fields["consumed_by"]); err == nil {
			token.ConsumedBy = &by
		}
	}
	return token, nil
}
