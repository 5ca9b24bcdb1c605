// Package cart implements the order cart. The one rule that matters: a cart
// holds at most one Splunk lab plan at a time, since a user can only have
// one active lab. Adding a second plan swaps out the first instead of
// stacking, and the swap is reported so the portal can tell the user.
package cart // import "github.com/splunklabhq/splunklab/backend/services/cart"

import (
	"sync"

	"github.com/lithammer/shortuuid/v3"

	"github.com/splunklabhq/splunklab/backend/services/types"
	"github.com/splunklabhq/splunklab/backend/services/utils"
)

// SplunkServiceType marks items subject to the one-per-cart rule.
const SplunkServiceType types.ServiceType = "splunk"

// Item is one purchasable entry in the cart. Hours is the rental duration
// the amount was priced for, PricingOption the calculator option that
// produced it, and Components the instance roles included in the plan.
type Item struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	ServiceType   types.ServiceType `json:"service_type"`
	PlanCode      string            `json:"plan_code"`
	AmountCents   int64             `json:"amount_cents"`
	Currency      string            `json:"currency"`
	Hours         int               `json:"hours"`
	PricingOption string            `json:"pricing_option"`
	Components    []string          `json:"components,omitempty"`
}

// Cart holds one user's pending order. Safe for concurrent use.
type Cart struct {
	mu    sync.Mutex
	items []Item
}

func New() *Cart {
	return &Cart{}
}

// Add puts the item in the cart, assigning it an id. When the item is a
// Splunk plan and the cart already holds one, the old plan is replaced and
// returned so the caller can surface the swap.
func (c *Cart) Add(item Item) (added Item, replaced *Item) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item.ID = shortuuid.New()

	if item.ServiceType == SplunkServiceType {
		for i, existing := range c.items {
			if existing.ServiceType == SplunkServiceType {
				old := existing
				c.items[i] = item
				return item, &old
			}
		}
	}

	c.items = append(c.items, item)
	return item, nil
}

// Remove deletes the item with the given id.
func (c *Cart) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, item := range c.items {
		if item.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return nil
		}
	}
	return utils.MakeError("no cart item with id %s", id)
}

// Items returns a snapshot of the cart contents.
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Item(nil), c.items...)
}

// TotalCents sums the cart. All items must share one currency; the portal
// only sells in one.
func (c *Cart) TotalCents() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for _, item := range c.items {
		total += item.AmountCents
	}
	return total
}

// Clear empties the cart, typically after a verified payment.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = nil
}
