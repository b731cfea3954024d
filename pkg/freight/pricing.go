package freight

import (
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Option identifies a pricing tier.
type Option int

const (
	OptionNormal  Option = 1
	OptionSedex   Option = 2
	OptionSedex10 Option = 3
)

// String returns the tier name.
func (o Option) String() string {
	switch o {
	case OptionNormal:
		return "Normal"
	case OptionSedex:
		return "Sedex"
	case OptionSedex10:
		return "Sedex10"
	default:
		return "Unknown"
	}
}

// ParseOption accepts a menu number ("1".."3") or a tier name, case-insensitive.
func ParseOption(s string) (Option, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		o := Option(n)
		if o.String() == "Unknown" {
			return 0, InvalidInput("Invalid freight option.")
		}
		return o, nil
	}
	switch strings.ToLower(s) {
	case "normal":
		return OptionNormal, nil
	case "sedex":
		return OptionSedex, nil
	case "sedex10", "sedex_10":
		return OptionSedex10, nil
	}
	return 0, InvalidInput("Invalid freight option.")
}

// Strategy prices a shipment from distance and weight.
type Strategy interface {
	// Option returns the tier this strategy implements.
	Option() Option

	// Calculate returns the unrounded price.
	Calculate(distance, weight float64) float64
}

// flatRate charges distance*weight plus a fixed surcharge.
type flatRate struct {
	option    Option
	surcharge float64
}

func (f flatRate) Option() Option { return f.option }

func (f flatRate) Calculate(distance, weight float64) float64 {
	return distance*weight + f.surcharge
}

// Normal returns the Normal tier (+5).
func Normal() Strategy { return flatRate{option: OptionNormal, surcharge: 5} }

// Sedex returns the Sedex tier (+10).
func Sedex() Strategy { return flatRate{option: OptionSedex, surcharge: 10} }

// Sedex10 returns the Sedex10 tier (+15).
func Sedex10() Strategy { return flatRate{option: OptionSedex10, surcharge: 15} }

// Registry manages the available pricing strategies.
type Registry struct {
	strategies map[Option]Strategy
	mu         sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[Option]Strategy),
	}
}

// DefaultRegistry returns a registry holding Normal, Sedex and Sedex10.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Normal())
	r.Register(Sedex())
	r.Register(Sedex10())
	return r
}

// Register adds a strategy, replacing any strategy for the same option.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Option()] = s
}

// Get returns the strategy for an option.
func (r *Registry) Get(o Option) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.strategies[o]; ok {
		return s, nil
	}
	return nil, InvalidInput("Invalid freight option.")
}

// All returns all registered strategies ordered by option.
func (r *Registry) All() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Strategy, 0, len(r.strategies))
	for _, s := range r.strategies {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Option() < result[j].Option()
	})
	return result
}

// Names returns the tier names ordered by option.
func (r *Registry) Names() []string {
	all := r.All()
	names := make([]string, 0, len(all))
	for _, s := range all {
		names = append(names, s.Option().String())
	}
	return names
}

// Count returns the number of registered strategies.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.strategies)
}

// PriceAll prices the shipment with every registered strategy.
func (r *Registry) PriceAll(distance, weight float64) ([]*Freight, error) {
	all := r.All()
	result := make([]*Freight, 0, len(all))
	for _, s := range all {
		f, err := NewFreight(distance, weight, s)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, nil
}
