package client

// =============================================================================
// Navigation Completion
// =============================================================================

// processSuccessfulNavigation drives a success outcome through the
// waiting and rendering phases. commit is the caller's intent snapshot:
// false for prefetch warming (stop before the render), true otherwise.
//
// The finally-step removes the entry from its slot unless it is a pure
// prefetch, so the prefetch cache can still serve a subsequent click.
func (m *NavigationStateManager) processSuccessfulNavigation(entry *NavigationEntry, o OutcomeSuccess, commit bool) (err error) {
	defer func() {
		m.setPhase(entry, PhaseComplete)
		m.mu.Lock()
		pure := entry.navType == NavPrefetch && entry.intent == IntentNone
		if !pure {
			m.removeEntryLocked(entry)
		}
		m.mu.Unlock()
		m.dispatcher.schedule()
	}()

	payload := o.Payload

	// While the build identity is unchanged, fold the payload's module
	// identities into the map and warm the CSS cache, prefetches included.
	if o.ResponseBuild == m.state.BuildID() {
		m.state.MergeModules(payload.MatchedPatterns, payload.ImportURLs, payload.ExportKeys, payload.ErrorExportKeys, payload.LoadersData)
		m.assets.ApplyCSS(payload.CSSBundles)
	}

	// A revalidation whose page moved underneath it is stale.
	if entry.navType == NavRevalidation && m.dom.Href() != entry.originHref {
		return nil
	}

	m.setPhase(entry, PhaseWaiting)

	// Build identity changes are announced before any further work.
	m.noteBuildID(o.ResponseBuild)

	clientData := o.ClientLoaders.Await(entry.control.Signal())

	for _, wait := range o.CSSWaits {
		if cssErr := <-wait; cssErr != nil {
			m.logf("CSS preload failed: %v", cssErr)
		}
	}

	if !commit {
		return nil
	}

	if entry.navType == NavRevalidation && m.dom.Href() != entry.originHref {
		return nil
	}

	m.setPhase(entry, PhaseRendering)

	if err := m.renderer.Render(entry, o, clientData); err != nil {
		m.logf("Navigation failed: %v", err)
		return err
	}
	return nil
}
