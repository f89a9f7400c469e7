package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"wavecli/internal/waves"
)

// WaveService manages wave definitions and resolves transition tokens
// for preview. Mutations persist through the registry's backing store.
type WaveService struct {
	registry *waves.Registry
	resolver *waves.Resolver
	validate *validator.Validate
	logger   *slog.Logger
}

// NewWaveService creates a wave service over the given registry.
func NewWaveService(registry *waves.Registry, logger *slog.Logger) *WaveService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WaveService{
		registry: registry,
		resolver: waves.NewResolver(registry),
		validate: newRequestValidator(),
		logger:   logger,
	}
}

// AddWaveRequest describes a wave to register. Wave accepts either a
// bare number ("4") or a display name containing one ("Wave4"). Prefix
// overrides the W<N>_ column prefix convention when set.
type AddWaveRequest struct {
	Wave        string `json:"wave" validate:"required,max=50"`
	Prefix      string `json:"prefix,omitempty" validate:"omitempty,max=50"`
	Description string `json:"description,omitempty" validate:"omitempty,max=500"`
}

// List returns the registered waves in ascending wave order.
func (s *WaveService) List() []waves.Wave {
	return s.registry.List()
}

// Count returns the number of registered waves.
func (s *WaveService) Count() int {
	return s.registry.Count()
}

// Add registers the wave described by the request, deriving the
// conventional display name from its number. The column prefix
// defaults to W<N>_ unless the request supplies its own.
// Registering an existing number overwrites that definition.
func (s *WaveService) Add(ctx context.Context, req AddWaveRequest) (waves.Wave, error) {
	if err := validateRequest(s.validate, req); err != nil {
		return waves.Wave{}, err
	}

	number, err := parseWaveNumber(req.Wave)
	if err != nil {
		return waves.Wave{}, err
	}

	prefix := strings.TrimSpace(req.Prefix)
	if prefix == "" {
		prefix = fmt.Sprintf("W%d_", number)
	}

	wave := waves.Wave{
		Number:      number,
		Name:        fmt.Sprintf("Wave%d", number),
		Prefix:      prefix,
		Description: req.Description,
	}
	if err := s.registry.Register(wave); err != nil {
		return waves.Wave{}, err
	}

	s.logger.InfoContext(ctx, "wave definition added",
		slog.Int("number", number),
		slog.String("name", wave.Name),
		slog.String("prefix", wave.Prefix))
	return wave, nil
}

// Resolve previews a transition token against the current definitions.
func (s *WaveService) Resolve(ctx context.Context, token string) (waves.Resolution, error) {
	res, err := s.resolver.Resolve(token)
	if err != nil {
		return waves.Resolution{}, err
	}

	s.logger.DebugContext(ctx, "wave token resolved",
		slog.String("token", token),
		slog.String("canonical", res.Token))
	return res, nil
}

// parseWaveNumber accepts a bare wave number or a name containing one.
func parseWaveNumber(raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if n, err := strconv.Atoi(trimmed); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("%w: wave number must be positive, got %d", ErrInvalidInput, n)
		}
		return n, nil
	}

	n, err := waves.NumberFromName(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a wave number or name", ErrInvalidInput, raw)
	}
	return n, nil
}
