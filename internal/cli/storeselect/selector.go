package storeselect

import (
	"fmt"
	"os"

	"github.com/manifoldco/promptui"

	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/api"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/cli/config"
	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/cli/userconfig"
)

// Prompt asks the user to pick one of stores. Replaced in tests.
var Prompt = PromptStoreSelection

// ResolveStore determines which store to use based on the following priority:
// 1. If storeFlag is provided, use that store (ID, alias or name)
// 2. If user has a selected store in their local config, use that
// 3. If the user can only operate on one store, use that
// 4. Otherwise, prompt user to select a store interactively
func ResolveStore(stores []api.Store, projectConfig *config.Config, storeFlag string) (*api.Store, error) {
	if len(stores) == 0 {
		return nil, fmt.Errorf("no stores available for this account")
	}

	if storeFlag != "" {
		return FindStore(stores, projectConfig, storeFlag)
	}

	selectedID, err := userconfig.GetSelectedStore()
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}

	if selectedID != "" {
		if store := findByID(stores, selectedID); store != nil {
			return store, nil
		}
		// Selected store is no longer available to this user
		if err := userconfig.SetSelectedStore(""); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to clear selected store: %v\n", err)
		}
	}

	if len(stores) == 1 {
		store := &stores[0]
		if err := userconfig.SetSelectedStore(store.ID); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to save selected store: %v\n", err)
		}
		return store, nil
	}

	store, err := Prompt(stores, projectConfig)
	if err != nil {
		return nil, err
	}

	if err := userconfig.SetSelectedStore(store.ID); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save selected store: %v\n", err)
	}

	return store, nil
}

// PromptStoreSelection shows an interactive prompt for the user to select a store
func PromptStoreSelection(stores []api.Store, projectConfig *config.Config) (*api.Store, error) {
	if len(stores) == 0 {
		return nil, fmt.Errorf("no stores available for this account")
	}

	type storeOption struct {
		Label string
		Store *api.Store
	}

	options := make([]storeOption, len(stores))
	for i := range stores {
		store := &stores[i]
		options[i] = storeOption{
			Label: Label(store, projectConfig),
			Store: store,
		}
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: "{{ .Label | green }}",
	}

	prompt := promptui.Select{
		Label:     "Select a store",
		Items:     options,
		Templates: templates,
		Size:      10,
	}

	index, _, err := prompt.Run()
	if err != nil {
		return nil, fmt.Errorf("store selection cancelled: %w", err)
	}

	return options[index].Store, nil
}

// FindStore finds a store by ID, local alias or name
func FindStore(stores []api.Store, projectConfig *config.Config, ref string) (*api.Store, error) {
	id := ref
	if projectConfig != nil {
		id = projectConfig.ResolveStoreID(ref)
	}
	if store := findByID(stores, id); store != nil {
		return store, nil
	}

	for i := range stores {
		if stores[i].Name == ref {
			return &stores[i], nil
		}
	}

	return nil, fmt.Errorf("store '%s' not found or not available to this account", ref)
}

// Label renders a store for display
func Label(store *api.Store, projectConfig *config.Config) string {
	if projectConfig != nil {
		if alias := projectConfig.AliasFor(store.ID); alias != "" {
			return fmt.Sprintf("%s [%s] (%s)", store.Name, alias, store.ID)
		}
	}
	return fmt.Sprintf("%s (%s)", store.Name, store.ID)
}

func findByID(stores []api.Store, id string) *api.Store {
	for i := range stores {
		if stores[i].ID == id {
			return &stores[i]
		}
	}
	return nil
}
