package routing

import (
	"fmt"

	"github.com/upb/concept-studio/services/providers"
)

// textOrders lists the fixed text orderings keyed by the preferred provider
var textOrders = map[providers.ProviderID][]providers.ProviderID{
	providers.LocalLLM:   {providers.LocalLLM, providers.HostedLLMB, providers.HostedLLMA},
	providers.HostedLLMB: {providers.HostedLLMB, providers.HostedLLMA, providers.LocalLLM},
	providers.HostedLLMA: {providers.HostedLLMA, providers.LocalLLM, providers.HostedLLMB},
}

// defaultTextOrder applies when the preference is empty or unknown
var defaultTextOrder = []providers.ProviderID{providers.LocalLLM, providers.HostedLLMA, providers.HostedLLMB}

// imageOrder has a single provider and no fallback target
var imageOrder = []providers.ProviderID{providers.HostedImage}

// ResolveTextOrder maps a preferred-provider setting to the text order.
// Identity tags and backend aliases are both accepted.
func ResolveTextOrder(preferred string) []providers.ProviderID {
	id, ok := providers.ParseProviderID(preferred)
	if order, known := textOrders[id]; ok && known {
		return append([]providers.ProviderID(nil), order...)
	}
	return append([]providers.ProviderID(nil), defaultTextOrder...)
}

// FallbackPolicy holds the provider order for each operation family. It is built once at startup.
type FallbackPolicy struct {
	preferred string
	text      []providers.ProviderID
	image     []providers.ProviderID
}

// NewFallbackPolicy derives the orders from the preferred-provider setting
func NewFallbackPolicy(preferred string) (*FallbackPolicy, error) {
	p := &FallbackPolicy{
		preferred: preferred,
		text:      ResolveTextOrder(preferred),
		image:     append([]providers.ProviderID(nil), imageOrder...),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks that each order only names capable providers, each at most once
func (p *FallbackPolicy) Validate() error {
	if err := validateOrder(providers.FamilyText, p.text); err != nil {
		return err
	}
	return validateOrder(providers.FamilyImage, p.image)
}

func validateOrder(family providers.Family, order []providers.ProviderID) error {
	seen := make(map[providers.ProviderID]bool, len(order))
	for _, id := range order {
		if seen[id] {
			return fmt.Errorf("%s order lists %s twice", family, id)
		}
		seen[id] = true

		for _, op := range familyOps(family) {
			if !id.Supports(op) {
				return fmt.Errorf("%s order includes %s which does not support %s", family, id, op)
			}
		}
	}
	return nil
}

func familyOps(family providers.Family) []providers.Operation {
	if family == providers.FamilyImage {
		return []providers.Operation{providers.OpGenerateImage}
	}
	return []providers.Operation{providers.OpChat, providers.OpNarrate, providers.OpEnhancePrompt}
}

// Order returns a copy of the provider order for an operation
func (p *FallbackPolicy) Order(op providers.Operation) []providers.ProviderID {
	if op.Family() == providers.FamilyImage {
		return append([]providers.ProviderID(nil), p.image...)
	}
	return append([]providers.ProviderID(nil), p.text...)
}

// Preferred returns the raw preferred-provider setting
func (p *FallbackPolicy) Preferred() string {
	return p.preferred
}
