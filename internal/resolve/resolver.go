// Package resolve maps user-supplied symbols or company names to canonical
// ticker identities. Resolution is deterministic and offline: a manual alias
// map first, then a ticker-shape heuristic. Provider-backed resolution is an
// extension point behind the Resolver interface, not implemented here.
package resolve

import (
	"context"
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/equity-snapshot/internal/boundary"
	"github.com/sells-group/equity-snapshot/internal/model"
)

// Resolver resolves a symbol or company name to a canonical identity.
type Resolver interface {
	Resolve(ctx context.Context, symbolOrName string) (*model.ResolvedIdentity, *boundary.Error)
}

// AliasEntry is one company in the manual alias map. The first alias is the
// canonical default when the input matched on name rather than ticker.
type AliasEntry struct {
	Name     string   `yaml:"name"`
	Exchange string   `yaml:"exchange,omitempty"`
	Aliases  []string `yaml:"aliases"`
}

// aliasFile is the on-disk shape of the alias map.
type aliasFile struct {
	Companies []AliasEntry `yaml:"companies"`
}

// tickerShapeRe matches plausible ticker symbols: letters, digits, dots and
// dashes, at most 12 characters.
var tickerShapeRe = regexp.MustCompile(`^[A-Z0-9.\-]{1,12}$`)

const (
	manualMapConfidence = 0.99
	heuristicConfidence = 0.4
)

// StaticResolver resolves against an in-memory alias map.
type StaticResolver struct {
	entries []AliasEntry
	index   map[string]int // normalized alias or name -> entries offset
}

// NewStaticResolver builds a resolver over the given alias entries.
func NewStaticResolver(entries []AliasEntry) *StaticResolver {
	r := &StaticResolver{entries: entries, index: make(map[string]int)}
	for i, e := range entries {
		for _, alias := range e.Aliases {
			r.index[NormalizeName(alias)] = i
		}
		if e.Name != "" {
			r.index[NormalizeName(e.Name)] = i
		}
	}
	return r
}

// LoadAliases reads an alias map from a YAML file.
func LoadAliases(path string) ([]AliasEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve: read alias map %s", path)
	}
	var f aliasFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, eris.Wrapf(err, "resolve: parse alias map %s", path)
	}
	return f.Companies, nil
}

// NewResolver builds a StaticResolver from the alias map at path, merged over
// the built-in defaults. An empty path uses the defaults alone.
func NewResolver(path string) (*StaticResolver, error) {
	entries := defaultAliases()
	if path != "" {
		loaded, err := LoadAliases(path)
		if err != nil {
			return nil, err
		}
		entries = append(entries, loaded...)
	}
	return NewStaticResolver(entries), nil
}

// Resolve maps the input to a canonical identity. Order: empty input is a
// validation error; exact alias-map match wins with confidence 0.99; inputs
// shaped like a ticker fall back to a heuristic identity at confidence 0.4;
// anything else is a non-retryable validation error.
func (r *StaticResolver) Resolve(ctx context.Context, symbolOrName string) (*model.ResolvedIdentity, *boundary.Error) {
	input := strings.ToUpper(strings.TrimSpace(symbolOrName))
	if input == "" {
		return nil, boundary.New(boundary.SourceResolver, boundary.CodeValidationError, "", "empty symbol or company name")
	}

	if i, ok := r.index[NormalizeName(input)]; ok {
		entry := r.entries[i]
		identity := &model.ResolvedIdentity{
			RequestedSymbol:  input,
			CanonicalSymbol:  canonicalFor(entry, input),
			CompanyName:      entry.Name,
			Aliases:          entry.Aliases,
			Exchange:         entry.Exchange,
			Confidence:       manualMapConfidence,
			ResolutionSource: model.ResolutionManualMap,
		}
		zap.L().Debug("resolve: matched alias map",
			zap.String("input", input),
			zap.String("canonical", identity.CanonicalSymbol),
		)
		return identity, nil
	}

	if tickerShapeRe.MatchString(input) {
		zap.L().Debug("resolve: ticker-shape heuristic", zap.String("input", input))
		return &model.ResolvedIdentity{
			RequestedSymbol:  input,
			CanonicalSymbol:  input,
			CompanyName:      input,
			Confidence:       heuristicConfidence,
			ResolutionSource: model.ResolutionHeuristic,
		}, nil
	}

	return nil, boundary.New(boundary.SourceResolver, boundary.CodeValidationError, "",
		"cannot resolve "+input+" to a ticker symbol")
}

// canonicalFor picks the canonical symbol for a matched entry: the alias-set
// member matching the input when present, else the entry's first alias.
func canonicalFor(entry AliasEntry, input string) string {
	for _, alias := range entry.Aliases {
		if strings.EqualFold(alias, input) {
			return strings.ToUpper(alias)
		}
	}
	if len(entry.Aliases) > 0 {
		return strings.ToUpper(entry.Aliases[0])
	}
	return input
}

// defaultAliases covers a handful of frequently requested large caps so the
// resolver is useful with no alias file configured.
func defaultAliases() []AliasEntry {
	return []AliasEntry{
		{Name: "Apple Inc.", Exchange: "NASDAQ", Aliases: []string{"AAPL", "APPLE"}},
		{Name: "Microsoft Corporation", Exchange: "NASDAQ", Aliases: []string{"MSFT", "MICROSOFT"}},
		{Name: "Alphabet Inc.", Exchange: "NASDAQ", Aliases: []string{"GOOGL", "GOOG", "ALPHABET", "GOOGLE"}},
		{Name: "Amazon.com, Inc.", Exchange: "NASDAQ", Aliases: []string{"AMZN", "AMAZON"}},
		{Name: "NVIDIA Corporation", Exchange: "NASDAQ", Aliases: []string{"NVDA", "NVIDIA"}},
		{Name: "Berkshire Hathaway Inc.", Exchange: "NYSE", Aliases: []string{"BRK.B", "BRK.A", "BERKSHIRE HATHAWAY", "BERKSHIRE"}},
		{Name: "JPMorgan Chase & Co.", Exchange: "NYSE", Aliases: []string{"JPM", "JPMORGAN", "JPMORGAN CHASE"}},
		{Name: "Tesla, Inc.", Exchange: "NASDAQ", Aliases: []string{"TSLA", "TESLA"}},
	}
}
