package billing

import (
	"encoding/json"
	"sync"
)

// PageGateway opens checkout by handing the options to the pricing page, which
// starts checkout.js from ScriptURL. It is available only when a script is configured.
type PageGateway struct {
	ScriptURL string

	mu     sync.Mutex
	opened *CheckoutOptions
}

// NewPageGateway returns a gateway for the given checkout script URL.
func NewPageGateway(scriptURL string) *PageGateway {
	return &PageGateway{ScriptURL: scriptURL}
}

func (g *PageGateway) Available() bool { return g.ScriptURL != "" }

func (g *PageGateway) Open(opts CheckoutOptions) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.opened = &opts
	return nil
}

// Opened returns the options of the last Open call. The pricing page renders
// them for checkout.js.
func (g *PageGateway) Opened() (CheckoutOptions, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.opened == nil {
		return CheckoutOptions{}, false
	}
	return *g.opened, true
}

// OptionsJSON renders opts for embedding in the page.
func OptionsJSON(opts CheckoutOptions) (string, error) {
	b, err := json.Marshal(opts)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Tier is a pricing card.
type Tier struct {
	Name    string
	Credits int
	Rupees  int
}

// Tiers are the advertised bundles.
var Tiers = []Tier{
	{Name: "Starter", Credits: 5, Rupees: 50},
	{Name: "Pro", Credits: 20, Rupees: 150},
	{Name: "Enterprise", Credits: 100, Rupees: 700},
}
