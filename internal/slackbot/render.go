package slackbot

import (
	"fmt"
	"strings"

	"github.com/anrdraft/draft-backend/internal/cards"
	"github.com/anrdraft/draft-backend/internal/engine"
)

// cardText renders one card as Slack mrkdwn, one field layout per card type.
func cardText(c cards.Card) string {
	f := []string{
		field("Name", orNone(c.Title)),
		field("Type", titleCase(orNone(c.TypeCode))),
	}
	switch c.TypeCode {
	case "identity":
		// identities show only name, type and text
	case "agenda":
		f = append(f,
			field("Subtype", orNone(c.Keywords)),
			field("Agenda Points", num(c.AgendaPoints)),
			field("Advancement Requirement", num(c.AdvancementCost)),
		)
	case "asset", "upgrade":
		f = append(f,
			field("Subtype", orNone(c.Keywords)),
			field("Rez Cost", num(c.Cost)),
			field("Trash Cost", num(c.TrashCost)),
		)
	case "ice":
		f = append(f,
			field("Subtype", orNone(c.Keywords)),
			field("Rez Cost", num(c.Cost)),
			field("Strength", num(c.Strength)),
		)
	case "operation":
		f = append(f,
			field("Subtype", orNone(c.Keywords)),
			field("Play Cost", num(c.Cost)),
			field("Trash Cost", num(c.TrashCost)),
		)
	case "event":
		f = append(f,
			field("Subtype", orNone(c.Keywords)),
			field("Play Cost", num(c.Cost)),
		)
	case "hardware", "resource":
		f = append(f,
			field("Subtype", orNone(c.Keywords)),
			field("Install Cost", num(c.Cost)),
		)
	case "program":
		f = append(f,
			field("Subtype", orNone(c.Keywords)),
			field("Install Cost", num(c.Cost)),
			field("Memory", num(c.MemoryCost)),
		)
	default:
		return fmt.Sprintf("```%s (%s)```", c.Title, c.Code)
	}

	f = append(f, field("Text", orNone(c.Text)))
	if c.TypeCode != "identity" {
		f = append(f, field("Faction", titleCase(orNone(c.FactionCode))))
	}
	return strings.Join(f, "\n")
}

// RenderSummary formats a picks pool grouped by side with deck copy counts.
func RenderSummary(sum *engine.PicksSummary) string {
	var b strings.Builder
	for _, side := range cards.Sides {
		fmt.Fprintf(&b, "*%s picks*\n", titleCase(string(side)))
		entries := sum.Sides[side]
		if len(entries) == 0 {
			b.WriteString("_nothing drafted yet_\n")
			continue
		}
		for _, e := range entries {
			fmt.Fprintf(&b, "x%d %s\n", e.Copies, e.Card.Title)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func field(label, value string) string {
	return fmt.Sprintf("*%s*: %s", label, value)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func num(n *int) string {
	if n == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *n)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
