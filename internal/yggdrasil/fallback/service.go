package fallback

import (
	"context"
	"sort"
	"strings"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/domain"
)

// Recorder receives fallback lookup outcomes for metrics.
type Recorder interface {
	ObserveFallback(operation string, hit bool)
}

// Service is the high-level fallback surface the protocol engine talks to.
// Every method returns the raw remote payload, or nil when all endpoints
// miss or fail.
type Service struct {
	orchestrator *Orchestrator
	client       *Client
	cache        *ttlCache

	// Metrics is optional; nil disables recording.
	Metrics Recorder
}

func NewService(endpoints []domain.FallbackEndpoint) *Service {
	eps := append([]domain.FallbackEndpoint(nil), endpoints...)
	sort.SliceStable(eps, func(i, j int) bool { return eps[i].Priority < eps[j].Priority })

	return &Service{
		orchestrator: NewOrchestrator(eps),
		client:       NewClient(),
		cache:        newTTLCache(4096),
	}
}

// Endpoints returns the configured endpoints in priority order.
func (s *Service) Endpoints() []domain.FallbackEndpoint {
	return s.orchestrator.Endpoints
}

// SkinDomains returns the advertised skin domain union for metadata.
func (s *Service) SkinDomains() []string {
	return SkinDomains(s.orchestrator.Endpoints)
}

func (s *Service) record(operation string, hit bool) {
	if s.Metrics != nil {
		s.Metrics.ObserveFallback(operation, hit)
	}
}

func (s *Service) cached(ctx context.Context, strategy domain.FallbackStrategy, operation, key string, fn Requester) []byte {
	if res, ok := s.cache.Get(key); ok {
		s.record(operation, true)
		return res
	}
	res, ep := s.orchestrator.Run(ctx, strategy, fn)
	if res != nil && ep != nil {
		s.cache.Set(key, res, ep.CacheTTL)
	}
	s.record(operation, res != nil)
	return res
}

// HasJoined checks the join handshake against remote sessionservers. Not
// cached: the answer is only meaningful for a few seconds.
func (s *Service) HasJoined(ctx context.Context, strategy domain.FallbackStrategy, username, serverID, ip string) []byte {
	res, _ := s.orchestrator.Run(ctx, strategy, func(ctx context.Context, ep domain.FallbackEndpoint) ([]byte, error) {
		return s.client.HasJoined(ctx, ep, username, serverID, ip)
	})
	s.record("hasJoined", res != nil)
	return res
}

// ProfileByID fetches a remote profile document by undashed uuid.
func (s *Service) ProfileByID(ctx context.Context, strategy domain.FallbackStrategy, id string, unsigned bool) []byte {
	key := "profile:" + id
	if !unsigned {
		key += ":signed"
	}
	return s.cached(ctx, strategy, "profile", key, func(ctx context.Context, ep domain.FallbackEndpoint) ([]byte, error) {
		return s.client.ProfileByID(ctx, ep, id, unsigned)
	})
}

// ProfileByName resolves a remote player name to a {id,name} stub.
func (s *Service) ProfileByName(ctx context.Context, strategy domain.FallbackStrategy, name string) []byte {
	key := "name:" + strings.ToLower(name)
	return s.cached(ctx, strategy, "profileByName", key, func(ctx context.Context, ep domain.FallbackEndpoint) ([]byte, error) {
		return s.client.ProfileByName(ctx, ep, name)
	})
}

// ProfileLookup resolves a remote player name through the services API.
func (s *Service) ProfileLookup(ctx context.Context, strategy domain.FallbackStrategy, name string) []byte {
	key := "lookup:" + strings.ToLower(name)
	return s.cached(ctx, strategy, "profileLookup", key, func(ctx context.Context, ep domain.FallbackEndpoint) ([]byte, error) {
		return s.client.ProfileLookup(ctx, ep, name)
	})
}

// ProfilesByNames performs a bulk remote name lookup.
func (s *Service) ProfilesByNames(ctx context.Context, strategy domain.FallbackStrategy, names []string) []byte {
	res, _ := s.orchestrator.Run(ctx, strategy, func(ctx context.Context, ep domain.FallbackEndpoint) ([]byte, error) {
		return s.client.ProfilesByNames(ctx, ep, names)
	})
	s.record("profilesByNames", res != nil)
	return res
}
