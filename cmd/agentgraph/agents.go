package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/aristath/agentgraph/internal/agents"
)

// agentsTimeout bounds one -agents, -install or -remove command.
const agentsTimeout = 30 * time.Second

// runAgents lists, installs or removes backend agents and exits.
func runAgents(ctx context.Context, client *agents.Client, dir *agents.Directory, opts options, stdout, stderr io.Writer) int {
	ctx, cancel := context.WithTimeout(ctx, agentsTimeout)
	defer cancel()

	if err := dir.Refresh(ctx); err != nil {
		fmt.Fprintf(stderr, "warning: %v; using cached listings\n", err)
	}

	switch {
	case opts.install != "":
		listing, ok := findListing(dir.Marketplace(), opts.install)
		if !ok {
			fmt.Fprintf(stderr, "error: no marketplace agent %q\n", opts.install)
			return 1
		}
		if listing.RequiresAPIKey {
			if opts.apiKey == "" {
				fmt.Fprintf(stderr, "error: %s requires an API key (%s); pass -api-key\n", listing.Name, listing.APIKeyPlaceholder)
				return 1
			}
			listing.APIKey = opts.apiKey
		}
		res, err := client.Add(ctx, listing)
		if err != nil {
			fmt.Fprintf(stderr, "error: install %s: %v\n", listing.Name, err)
			return 1
		}
		fmt.Fprintf(stdout, "%s (id %s)\n", res.Message, res.AgentID)

	case opts.remove != "":
		info, ok := findInstalled(dir.Installed(), opts.remove)
		if !ok {
			fmt.Fprintf(stderr, "error: no installed agent %q\n", opts.remove)
			return 1
		}
		res, err := client.Remove(ctx, info.ID)
		if err != nil {
			fmt.Fprintf(stderr, "error: remove %s: %v\n", info.Name, err)
			return 1
		}
		fmt.Fprintln(stdout, res.Message)

	default:
		if err := writeAgents(stdout, dir); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	// Keep the cache in step with the change.
	if err := dir.Refresh(ctx); err != nil {
		fmt.Fprintf(stderr, "warning: %v\n", err)
	}
	return 0
}

func writeAgents(w io.Writer, dir *agents.Directory) error {
	installed := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "TYPE", "STATUS", "REQUESTS")
	for _, a := range dir.Installed() {
		installed.Row(a.ID, a.Name, a.Type, a.Status, strconv.Itoa(a.RequestCount))
	}

	market := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "CATEGORY", "RATING", "API KEY")
	for _, m := range dir.Marketplace() {
		key := "no"
		if m.RequiresAPIKey {
			key = "yes"
		}
		market.Row(m.ID, m.Name, m.Category, strconv.FormatFloat(m.Rating, 'f', 1, 64), key)
	}

	refreshed := "never"
	if t := dir.RefreshedAt(); !t.IsZero() {
		refreshed = t.Format(time.RFC3339)
	}
	_, err := fmt.Fprintf(w, "Installed agents\n%s\n\nMarketplace\n%s\n\nRefreshed: %s\n",
		installed.Render(), market.Render(), refreshed)
	return err
}

// findListing matches a marketplace agent by ID or case-insensitive name.
func findListing(listings []agents.MarketplaceAgent, ref string) (agents.MarketplaceAgent, bool) {
	for _, m := range listings {
		if m.ID == ref || strings.EqualFold(m.Name, ref) {
			return m, true
		}
	}
	return agents.MarketplaceAgent{}, false
}

func findInstalled(infos []agents.AgentInfo, ref string) (agents.AgentInfo, bool) {
	for _, a := range infos {
		if a.ID == ref || strings.EqualFold(a.Name, ref) {
			return a, true
		}
	}
	return agents.AgentInfo{}, false
}
