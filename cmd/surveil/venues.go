package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cryptosurveil/surveil/internal/config"
)

// runVenuesList prints each configured venue's monitored market types after
// applying the §6 market selector, without dialing any venue connection.
func runVenuesList(cmd *cobra.Command, args []string) error {
	envPath, _ := cmd.Flags().GetString("env")

	cfg, err := config.LoadStartup(envPath)
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	for _, vc := range cfg.Venues {
		markets := narrowMarketTypes(vc.MarketTypes, cfg.MarketSelector)
		fmt.Printf("%-12s markets=%-20s stream=%s\n", vc.Name, strings.Join(markets, ","), vc.StreamEndpoint)
	}
	return nil
}

// narrowMarketTypes mirrors supervisor.marketTypesOf's selector semantics
// for display purposes only: the selector narrows a venue's own configured
// market types, it never widens beyond what the venue supports.
func narrowMarketTypes(raw []string, selector config.MarketSelector) []string {
	allowed := map[string]bool{}
	switch selector {
	case config.MarketSpot:
		allowed["spot"] = true
	case config.MarketPerp:
		allowed["perp"] = true
	case config.MarketAll, "":
		allowed["spot"], allowed["perp"] = true, true
	default:
		for _, part := range strings.Split(string(selector), ",") {
			if part = strings.TrimSpace(part); part != "" {
				allowed[part] = true
			}
		}
	}

	var out []string
	for _, m := range raw {
		if allowed[m] {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		out = append(out, "spot")
	}
	return out
}
