package waves

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// AllWavesToken selects the full registered span: earliest wave to latest.
const AllWavesToken = "all_waves"

// pairPattern matches explicit wave-pair tokens such as "w1_to_w3".
// Matching happens after lowercasing, so "W2_TO_W5" resolves too.
var pairPattern = regexp.MustCompile(`^w(\d+)_to_w(\d+)$`)

// Resolution is a resolved wave pair ready for column derivation.
type Resolution struct {
	Source Wave `json:"source"`
	Target Wave `json:"target"`
	// Token is the canonical form of the resolved pair, "w<N>_to_w<M>",
	// regardless of whether the input was explicit or "all_waves".
	Token string `json:"token"`
}

// Columns returns the source and target dataset columns for a variable.
func (res Resolution) Columns(variable string) (source, target string) {
	return ColumnPair(res.Source.Prefix, res.Target.Prefix, variable)
}

// Label renders the pair for display, e.g. "Wave1 to Wave3".
func (res Resolution) Label() string {
	return fmt.Sprintf("%s to %s", res.Source.Name, res.Target.Name)
}

// ColumnPair derives the two dataset column names for a variable measured
// at a source and a target wave. Pure concatenation: whether the columns
// exist in a particular dataset is the dataset layer's concern.
func ColumnPair(sourcePrefix, targetPrefix, variable string) (source, target string) {
	return sourcePrefix + variable, targetPrefix + variable
}

// ValidTokenSyntax reports whether token is syntactically a transition
// token, either AllWavesToken or the explicit pair form "w1_to_w2".
// It does not check that the named waves are registered.
func ValidTokenSyntax(token string) bool {
	normalized := strings.ToLower(strings.TrimSpace(token))
	return normalized == AllWavesToken || pairPattern.MatchString(normalized)
}

// Resolver resolves wave-pair tokens against a registry.
type Resolver struct {
	registry *Registry
}

// NewResolver creates a resolver backed by the given registry.
func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve turns a token into a concrete wave pair.
//
// Two shapes are accepted, case-insensitively and with surrounding
// whitespace ignored:
//
//	"w<N>_to_w<M>"  an explicit pair of registered waves, N != M
//	"all_waves"     earliest registered wave to latest
//
// "all_waves" requires at least two registered waves; with fewer there is
// no pair to form and resolution fails rather than guessing one.
func (r *Resolver) Resolve(token string) (Resolution, error) {
	normalized := strings.ToLower(strings.TrimSpace(token))

	if normalized == AllWavesToken {
		return r.resolveAll(token)
	}

	match := pairPattern.FindStringSubmatch(normalized)
	if match == nil {
		return Resolution{}, newConfigError(token,
			"unrecognized format", r.registry.Numbers(), nil)
	}

	sourceNum, err := strconv.Atoi(match[1])
	if err != nil {
		return Resolution{}, newConfigError(token,
			fmt.Sprintf("wave number %q out of range", match[1]), r.registry.Numbers(), err)
	}
	targetNum, err := strconv.Atoi(match[2])
	if err != nil {
		return Resolution{}, newConfigError(token,
			fmt.Sprintf("wave number %q out of range", match[2]), r.registry.Numbers(), err)
	}

	if sourceNum == targetNum {
		return Resolution{}, newConfigError(token,
			"source and target wave must differ", r.registry.Numbers(), nil)
	}

	source, err := r.registry.Get(sourceNum)
	if err != nil {
		return Resolution{}, newConfigError(token,
			fmt.Sprintf("source wave %d is not registered", sourceNum), r.registry.Numbers(), err)
	}
	target, err := r.registry.Get(targetNum)
	if err != nil {
		return Resolution{}, newConfigError(token,
			fmt.Sprintf("target wave %d is not registered", targetNum), r.registry.Numbers(), err)
	}

	return Resolution{
		Source: source,
		Target: target,
		Token:  canonicalToken(source.Number, target.Number),
	}, nil
}

// resolveAll maps "all_waves" to the (min, max) registered pair.
func (r *Resolver) resolveAll(token string) (Resolution, error) {
	numbers := r.registry.Numbers()
	if len(numbers) < 2 {
		return Resolution{}, newConfigError(token,
			fmt.Sprintf("%q needs at least two registered waves, have %d", AllWavesToken, len(numbers)),
			numbers, nil)
	}

	source, err := r.registry.Get(numbers[0])
	if err != nil {
		return Resolution{}, newConfigError(token, "registry changed during resolution", numbers, err)
	}
	target, err := r.registry.Get(numbers[len(numbers)-1])
	if err != nil {
		return Resolution{}, newConfigError(token, "registry changed during resolution", numbers, err)
	}

	return Resolution{
		Source: source,
		Target: target,
		Token:  canonicalToken(source.Number, target.Number),
	}, nil
}

func canonicalToken(source, target int) string {
	return fmt.Sprintf("w%d_to_w%d", source, target)
}
