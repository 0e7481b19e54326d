package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aristath/agentgraph/internal/graph"
	"github.com/aristath/agentgraph/internal/logging"
	"github.com/aristath/agentgraph/internal/persistence"
)

// Source fetches agent listings. *Client implements it.
type Source interface {
	List(ctx context.Context) ([]AgentInfo, error)
	Marketplace(ctx context.Context) ([]MarketplaceAgent, error)
}

// Defaults are the display hints for the agents every backend ships with.
var Defaults = map[string]graph.Display{
	"Researcher": {
		Icon:        "🔍",
		Category:    "research",
		Description: "Searches and summarizes information",
		Color:       "#8b5cf6",
	},
	"Coder": {
		Icon:        "💻",
		Category:    "development",
		Description: "Writes and reviews code",
		Color:       "#3b82f6",
	},
	"CommandExecutor": {
		Icon:        "⚡",
		Category:    "system",
		Description: "Runs shell commands",
		Color:       "#f59e0b",
	},
}

// Directory resolves agent names to display hints. Entries are layered:
// defaults, then marketplace listings, then installed agents, then
// configured overrides. Lookups are case-insensitive.
type Directory struct {
	source    Source
	store     persistence.Store
	overrides map[string]graph.Display
	logger    *slog.Logger

	mu        sync.RWMutex
	entries   map[string]graph.Display
	installed []AgentInfo
	market    []MarketplaceAgent
	refreshed time.Time
}

// NewDirectory creates a directory holding only defaults and overrides.
// source and store may be nil.
func NewDirectory(source Source, store persistence.Store, overrides map[string]graph.Display, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = logging.Discard()
	}
	d := &Directory{
		source:    source,
		store:     store,
		overrides: overrides,
		logger:    logger,
	}
	d.rebuild(nil, nil)
	return d
}

// Lookup implements graph.Directory.
func (d *Directory) Lookup(name string) (graph.Display, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	disp, ok := d.entries[key(name)]
	return disp, ok
}

// Installed returns the last known installed agents.
func (d *Directory) Installed() []AgentInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]AgentInfo(nil), d.installed...)
}

// Marketplace returns the last known marketplace listing.
func (d *Directory) Marketplace() []MarketplaceAgent {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]MarketplaceAgent(nil), d.market...)
}

// RefreshedAt returns when the listings were last fetched or cached.
func (d *Directory) RefreshedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.refreshed
}

// Load fills the directory from the store cache.
func (d *Directory) Load(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	installed, err := d.store.ListAgents(ctx, persistence.SourceInstalled)
	if err != nil {
		return fmt.Errorf("load installed agents: %w", err)
	}
	market, err := d.store.ListAgents(ctx, persistence.SourceMarketplace)
	if err != nil {
		return fmt.Errorf("load marketplace agents: %w", err)
	}
	refreshed, err := d.store.LastRefresh(ctx, persistence.SourceInstalled)
	if err != nil {
		return fmt.Errorf("load refresh time: %w", err)
	}

	infos := make([]AgentInfo, 0, len(installed))
	for _, rec := range installed {
		infos = append(infos, infoFromRecord(rec))
	}
	listings := make([]MarketplaceAgent, 0, len(market))
	for _, rec := range market {
		listings = append(listings, marketFromRecord(rec))
	}

	d.rebuild(infos, listings)
	d.mu.Lock()
	d.refreshed = refreshed
	d.mu.Unlock()
	d.logger.Debug("agent directory loaded from cache", "installed", len(infos), "marketplace", len(listings))
	return nil
}

// Refresh fetches both listings from the source and writes them through to
// the store. When the fetch fails the cached listings are loaded instead and
// the fetch error is returned.
func (d *Directory) Refresh(ctx context.Context) error {
	if d.source == nil {
		return d.Load(ctx)
	}

	installed, listErr := d.source.List(ctx)
	market, marketErr := d.source.Marketplace(ctx)
	if err := errors.Join(listErr, marketErr); err != nil {
		d.logger.Warn("agent directory refresh failed, using cache", "error", err)
		if loadErr := d.Load(ctx); loadErr != nil {
			d.logger.Error("agent directory cache unavailable", "error", loadErr)
		}
		return fmt.Errorf("refresh agent directory: %w", err)
	}

	d.rebuild(installed, market)
	now := time.Now()
	d.mu.Lock()
	d.refreshed = now
	d.mu.Unlock()

	if d.store != nil {
		if err := d.store.ReplaceAgents(ctx, persistence.SourceInstalled, recordsFromInfos(installed)); err != nil {
			return fmt.Errorf("cache installed agents: %w", err)
		}
		if err := d.store.ReplaceAgents(ctx, persistence.SourceMarketplace, recordsFromMarket(market)); err != nil {
			return fmt.Errorf("cache marketplace agents: %w", err)
		}
	}
	d.logger.Info("agent directory refreshed", "installed", len(installed), "marketplace", len(market))
	return nil
}

func (d *Directory) rebuild(installed []AgentInfo, market []MarketplaceAgent) {
	entries := make(map[string]graph.Display, len(Defaults)+len(installed)+len(market)+len(d.overrides))
	for name, disp := range Defaults {
		entries[key(name)] = disp
	}
	for _, m := range market {
		entries[key(m.Name)] = merge(entries[key(m.Name)], graph.Display{
			Icon:        m.Icon,
			Category:    m.Category,
			Description: m.Description,
		})
	}
	for _, a := range installed {
		entries[key(a.Name)] = merge(entries[key(a.Name)], graph.Display{
			Category:    a.Type,
			Description: a.Description,
		})
	}
	for name, disp := range d.overrides {
		entries[key(name)] = merge(entries[key(name)], disp)
	}

	d.mu.Lock()
	d.entries = entries
	d.installed = installed
	d.market = market
	d.mu.Unlock()
}

// merge layers the non-empty fields of top over base.
func merge(base, top graph.Display) graph.Display {
	if top.Icon != "" {
		base.Icon = top.Icon
	}
	if top.Category != "" {
		base.Category = top.Category
	}
	if top.Description != "" {
		base.Description = top.Description
	}
	if top.Color != "" {
		base.Color = top.Color
	}
	return base
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func recordsFromInfos(infos []AgentInfo) []persistence.AgentRecord {
	recs := make([]persistence.AgentRecord, 0, len(infos))
	for _, a := range infos {
		recs = append(recs, persistence.AgentRecord{
			ID:           a.ID,
			Name:         a.Name,
			Description:  a.Description,
			Type:         a.Type,
			Status:       a.Status,
			Capabilities: a.Capabilities,
			RequestCount: a.RequestCount,
		})
	}
	return recs
}

func recordsFromMarket(market []MarketplaceAgent) []persistence.AgentRecord {
	recs := make([]persistence.AgentRecord, 0, len(market))
	for _, m := range market {
		recs = append(recs, persistence.AgentRecord{
			ID:           m.ID,
			Name:         m.Name,
			Description:  m.Description,
			Type:         m.AgentType,
			Category:     m.Category,
			Icon:         m.Icon,
			Capabilities: m.Capabilities,
			Rating:       m.Rating,
			Downloads:    m.Downloads,
		})
	}
	return recs
}

func infoFromRecord(rec persistence.AgentRecord) AgentInfo {
	return AgentInfo{
		ID:           rec.ID,
		Name:         rec.Name,
		Description:  rec.Description,
		Type:         rec.Type,
		Status:       rec.Status,
		RequestCount: rec.RequestCount,
		Capabilities: rec.Capabilities,
	}
}

func marketFromRecord(rec persistence.AgentRecord) MarketplaceAgent {
	return MarketplaceAgent{
		ID:           rec.ID,
		Name:         rec.Name,
		Category:     rec.Category,
		Description:  rec.Description,
		Icon:         rec.Icon,
		Rating:       rec.Rating,
		Downloads:    rec.Downloads,
		Capabilities: rec.Capabilities,
		AgentType:    rec.Type,
	}
}
