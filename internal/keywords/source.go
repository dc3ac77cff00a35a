package keywords

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"bgm-radar/pkg/logger"
)

// Strategy selects how keywords are picked for a run.
type Strategy string

const (
	StrategyRandom   Strategy = "random"
	StrategyRotating Strategy = "rotating"
	StrategyPriority Strategy = "priority"
)

// ParseStrategy validates a strategy name. Empty means rotating.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyRotating:
		return StrategyRotating, nil
	case StrategyRandom:
		return StrategyRandom, nil
	case StrategyPriority:
		return StrategyPriority, nil
	}
	return "", fmt.Errorf("unknown keyword strategy %q", s)
}

// OverrideLoader fetches an operator supplied keyword list.
type OverrideLoader func() ([]string, error)

// Source hands out search keywords from the taxonomy or from an override list.
type Source struct {
	taxonomy Taxonomy
	priority []string
	override OverrideLoader
	log      *logger.Logger
}

// NewSource builds a Source on the default taxonomy. override may be nil.
func NewSource(log *logger.Logger, override OverrideLoader) *Source {
	if log == nil {
		log = logger.NewNop()
	}
	return &Source{
		taxonomy: DefaultTaxonomy(),
		priority: priorityKeywords,
		override: override,
		log:      log,
	}
}

// Vocabulary is the full built-in taxonomy, regardless of any override.
// Classification tags channels against it.
func (s *Source) Vocabulary() []string {
	return s.taxonomy.All()
}

// All returns the active keyword list: the override when present, else the taxonomy.
func (s *Source) All() []string {
	if list, ok := s.overrideList(); ok {
		return list
	}
	return s.taxonomy.All()
}

// Random samples n distinct keywords.
func (s *Source) Random(n int) []string {
	list := s.All()
	return lo.Samples(list, clamp(n, len(list)))
}

// Rotating returns n keywords starting at a day dependent offset.
func (s *Source) Rotating(n int, day time.Time) []string {
	return Rotate(s.All(), n, day)
}

// HighPriority returns the first n entries of the ranked list. When an override
// is set the ranking is dropped and the override's own order is used instead.
func (s *Source) HighPriority(n int) []string {
	list := s.priority
	if override, ok := s.overrideList(); ok {
		list = override
	}
	return append([]string(nil), list[:clamp(n, len(list))]...)
}

// Select picks count keywords using the given strategy.
func (s *Source) Select(strategy Strategy, count int, day time.Time) []string {
	switch strategy {
	case StrategyRandom:
		return s.Random(count)
	case StrategyPriority:
		return s.HighPriority(count)
	default:
		return s.Rotating(count, day)
	}
}

func (s *Source) overrideList() ([]string, bool) {
	if s.override == nil {
		return nil, false
	}
	list, err := s.override()
	if err != nil {
		s.log.Warn("Keyword override unavailable, using default taxonomy", zap.Error(err))
		return nil, false
	}
	list = lo.Uniq(lo.Compact(lo.Map(list, func(k string, _ int) string {
		return strings.TrimSpace(k)
	})))
	if len(list) == 0 {
		return nil, false
	}
	return list, true
}

// Rotate returns n entries of list starting at (dayOfYear*3) mod len(list), wrapping.
// n is capped at len(list) so no keyword repeats within one call.
func Rotate(list []string, n int, day time.Time) []string {
	if len(list) == 0 || n <= 0 {
		return []string{}
	}
	n = clamp(n, len(list))
	start := (day.YearDay() * 3) % len(list)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, list[(start+i)%len(list)])
	}
	return out
}

func clamp(n, limit int) int {
	if n < 0 {
		return 0
	}
	if n > limit {
		return limit
	}
	return n
}
