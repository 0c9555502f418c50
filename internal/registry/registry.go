// Package registry owns the Deployment Registry: a periodically
// refreshed, immutable mapping from logical model name to upstream
// deployment URL, with alias and family-fallback resolution.
package registry

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sap-samples/ai-core-gateway/internal/aicore"
	"github.com/sap-samples/ai-core-gateway/internal/config"
	"github.com/sap-samples/ai-core-gateway/internal/family"
)

// ModelBinding is a resolved logical model name: where to send requests
// for it, and which wire-protocol family it speaks.
type ModelBinding struct {
	LogicalName   string
	DeploymentURL string
	Family        family.Family
}

type aliasEntry struct {
	pattern     string
	logicalName string
}

// Snapshot is an immutable, point-in-time view of the ModelBinding
// table. Never mutated after construction; a refresh builds a new one
// and the Registry atomically swaps to it.
type Snapshot struct {
	bindings  map[string]ModelBinding
	fallbacks map[family.Family]string
	aliases   []aliasEntry
}

// Resolve looks up model name m against exact match, then alias match,
// then family-prefix fallback, in that order.
func (s *Snapshot) Resolve(m string) (ModelBinding, bool) {
	if b, ok := s.bindings[m]; ok {
		return b, true
	}
	if logical, ok := s.resolveAlias(m); ok {
		if b, ok := s.bindings[logical]; ok {
			return b, true
		}
	}
	fam := family.Infer(m)
	if fallback, ok := s.fallbacks[fam]; ok {
		if b, ok := s.bindings[fallback]; ok {
			return b, true
		}
	}
	return ModelBinding{}, false
}

// resolveAlias finds the most specific alias pattern matching m. When
// several patterns match, the one with the longest literal prefix wins.
func (s *Snapshot) resolveAlias(m string) (string, bool) {
	bestSpecificity := -1
	bestLogical := ""
	found := false
	for _, a := range s.aliases {
		if ok, specificity := globMatches(a.pattern, m); ok && specificity > bestSpecificity {
			bestSpecificity = specificity
			bestLogical = a.logicalName
			found = true
		}
	}
	return bestLogical, found
}

// globMatches reports whether pattern matches name, and how specific
// the match is (the literal prefix length). A trailing '*' makes
// pattern a prefix match; otherwise it must match exactly.
func globMatches(pattern, name string) (bool, int) {
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		if strings.HasPrefix(name, prefix) {
			return true, len(prefix)
		}
		return false, 0
	}
	if pattern == name {
		return true, len(pattern)
	}
	return false, 0
}

// Bindings returns every logical name currently bound, for CLI
// introspection (`deployments list`-style consumers).
func (s *Snapshot) Bindings() map[string]ModelBinding {
	out := make(map[string]ModelBinding, len(s.bindings))
	for k, v := range s.bindings {
		out[k] = v
	}
	return out
}

// Registry owns the current Snapshot and refreshes it on a timer.
type Registry struct {
	client          *aicore.Client
	models          []config.ModelEntry
	fallbackModels  config.FallbackModels
	resourceGroup   string
	refreshInterval time.Duration

	snap atomic.Pointer[Snapshot]
}

// New builds a Registry. Call Start before resolving anything.
func New(client *aicore.Client, cfg *config.Config) *Registry {
	r := &Registry{
		client:          client,
		models:          cfg.Models,
		fallbackModels:  cfg.FallbackModels,
		resourceGroup:   cfg.Credentials.ResourceGroup,
		refreshInterval: time.Duration(cfg.RefreshIntervalSecs) * time.Second,
	}
	r.snap.Store(emptySnapshot())
	return r
}

func emptySnapshot() *Snapshot {
	return &Snapshot{bindings: map[string]ModelBinding{}, fallbacks: map[family.Family]string{}}
}

// Start performs the initial refresh and, on success, spawns the
// background refresh loop. It returns the initial refresh's error, if
// any, so startup can fail fast on an unreachable control plane.
func (r *Registry) Start(ctx context.Context) error {
	if err := r.Refresh(ctx); err != nil {
		return err
	}
	go r.runBackgroundRefresh(ctx)
	return nil
}

// Resolve looks up model name m in the current snapshot.
func (r *Registry) Resolve(m string) (ModelBinding, bool) {
	return r.snap.Load().Resolve(m)
}

// Current returns the snapshot currently in effect. Callers that need
// a consistent view for the duration of one request should call this
// once and hold the reference, rather than calling Resolve repeatedly.
func (r *Registry) Current() *Snapshot {
	return r.snap.Load()
}

// Refresh queries the control plane and atomically swaps in a new
// Snapshot. On failure the previous Snapshot is retained untouched.
func (r *Registry) Refresh(ctx context.Context) error {
	deployments, err := r.client.ListDeployments(ctx, r.resourceGroup)
	if err != nil {
		log.Error().Err(err).Msg("registry: refresh failed, retaining previous snapshot")
		return err
	}

	snap := buildSnapshot(deployments, r.models, r.fallbackModels)
	r.snap.Store(snap)
	log.Info().Int("bindings", len(snap.bindings)).Msg("registry: snapshot refreshed")
	return nil
}

func (r *Registry) runBackgroundRefresh(ctx context.Context) {
	ticker := time.NewTicker(r.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = r.Refresh(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// buildSnapshot implements the §4.3 snapshot-construction algorithm.
func buildSnapshot(deployments []aicore.Deployment, models []config.ModelEntry, fallbackModels config.FallbackModels) *Snapshot {
	running := make([]aicore.Deployment, 0, len(deployments))
	for _, d := range deployments {
		if d.Running() {
			running = append(running, d)
		}
	}

	bindings := map[string]ModelBinding{}
	claimed := map[string]bool{}
	aliases := make([]aliasEntry, 0)

	for _, m := range models {
		dep, ok := resolveConfiguredEntry(m, running)
		if !ok {
			log.Warn().Str("model", m.Name).Msg("registry: configured model has no running deployment")
			continue
		}
		bindings[m.Name] = ModelBinding{
			LogicalName:   m.Name,
			DeploymentURL: dep.DeploymentURL,
			Family:        family.Infer(m.Name),
		}
		claimed[dep.ID] = true
		for _, alias := range m.Aliases {
			aliases = append(aliases, aliasEntry{pattern: alias, logicalName: m.Name})
		}
	}

	for _, d := range running {
		if claimed[d.ID] {
			continue
		}
		logicalName := d.ConfigurationName
		if logicalName == "" {
			logicalName = d.ModelName
		}
		if logicalName == "" {
			continue
		}
		if _, exists := bindings[logicalName]; exists {
			continue // configured entries take precedence
		}
		bindings[logicalName] = ModelBinding{
			LogicalName:   logicalName,
			DeploymentURL: d.DeploymentURL,
			Family:        family.Infer(logicalName),
		}
	}

	fallbacks := map[family.Family]string{}
	addFallback := func(fam family.Family, name string) {
		if name == "" {
			return
		}
		fallbacks[fam] = name
		if _, ok := bindings[name]; !ok {
			log.Warn().Str("family", string(fam)).Str("fallback_model", name).
				Msg("registry: fallback model does not resolve in this snapshot; fallback is inert")
		}
	}
	addFallback(family.OpenAI, fallbackModels.OpenAI)
	addFallback(family.Claude, fallbackModels.Claude)
	addFallback(family.Gemini, fallbackModels.Gemini)

	return &Snapshot{bindings: bindings, fallbacks: fallbacks, aliases: aliases}
}

// resolveConfiguredEntry finds the running deployment a configured
// model entry should bind to, per the three lookup rules in §4.3 step 2.
func resolveConfiguredEntry(m config.ModelEntry, running []aicore.Deployment) (aicore.Deployment, bool) {
	if m.DeploymentID != "" {
		for _, d := range running {
			if d.ID == m.DeploymentID {
				return d, true
			}
		}
		return aicore.Deployment{}, false
	}

	key := m.AICoreModelName
	if key == "" {
		key = m.Name
	}

	var candidates []aicore.Deployment
	for _, d := range running {
		if d.ModelName == key {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return aicore.Deployment{}, false
	}
	if len(candidates) == 1 {
		return candidates[0], true
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].StartTime != candidates[j].StartTime {
			return candidates[i].StartTime > candidates[j].StartTime // most recent first
		}
		return candidates[i].ID < candidates[j].ID // lexicographic tiebreak
	})
	return candidates[0], true
}
