package cards

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Side string

const (
	SideCorp   Side = "corp"
	SideRunner Side = "runner"
)

// Sides in their fixed draft order: the corp packs circulate first.
var Sides = []Side{SideCorp, SideRunner}

// Card is a single catalog record. The core only cares about Code, Title and
// Side; everything else is carried through untouched for rendering.
type Card struct {
	Code            string `json:"code"`
	Title           string `json:"title"`
	TypeCode        string `json:"type_code"`
	SideCode        string `json:"side_code"`
	FactionCode     string `json:"faction_code"`
	Text            string `json:"text"`
	Keywords        string `json:"keywords"`
	Cost            *int   `json:"cost"`
	TrashCost       *int   `json:"trash_cost"`
	Strength        *int   `json:"strength"`
	AdvancementCost *int   `json:"advancement_cost"`
	AgendaPoints    *int   `json:"agenda_points"`
	MemoryCost      *int   `json:"memory_cost"`
	ImageURL        string `json:"image_url"`
}

// Catalog is the full card feed for one draft: per side, the identity subset
// and the main (non-identity) subset.
type Catalog struct {
	Identities map[Side][]Card
	Mains      map[Side][]Card
}

var feedFiles = map[string]struct {
	side     Side
	identity bool
}{
	"corp_ids.json":     {SideCorp, true},
	"corp_cards.json":   {SideCorp, false},
	"runner_ids.json":   {SideRunner, true},
	"runner_cards.json": {SideRunner, false},
}

// Load reads the four catalog files from dir. The feed is a static,
// pre-validated input: any missing file or malformed JSON is a startup error.
func Load(dir string) (*Catalog, error) {
	c := &Catalog{
		Identities: map[Side][]Card{},
		Mains:      map[Side][]Card{},
	}
	for name, meta := range feedFiles {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("card feed: %w", err)
		}
		var file struct {
			Cards []Card `json:"cards"`
		}
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("card feed %s: %w", name, err)
		}
		if meta.identity {
			c.Identities[meta.side] = file.Cards
		} else {
			c.Mains[meta.side] = file.Cards
		}
	}
	return c, nil
}
