package main

import (
	"fmt"
	"freedomwall/internal/docstore"
	"freedomwall/internal/identity"
	"freedomwall/internal/layout"
	"freedomwall/internal/providers"
	"freedomwall/internal/services"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

type client struct {
	logger     providers.Logger
	tokens     *identity.Store
	controller *services.SubmissionController
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "freedomwall", "storage.json")
}

// newClient wires the wall against the daemon at --server. Without a usable
// state path the visitor token lives for this run only.
func newClient() (*client, error) {
	logger := providers.NewConsoleLogger(logLevel, os.Stderr)

	store, err := docstore.NewRemoteStore(serverURL, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, err
	}

	path := statePath
	if path == "" {
		path = defaultStatePath()
	}
	var storage identity.KeyValueStorage
	if path != "" {
		storage = identity.NewFileStorage(path)
	}
	tokens := identity.NewStore(storage, logger)
	repo := services.NewPostRepository(store, collection, logger)

	return &client{
		logger:     logger,
		tokens:     tokens,
		controller: services.NewSubmissionController(repo, tokens, layout.NewAllocator(nil), logger),
	}, nil
}

func renderWall(w io.Writer, v services.View) {
	if v.Loading {
		fmt.Fprintln(w, "Loading posts...")
		return
	}
	if v.FeedError != "" {
		fmt.Fprintln(w, v.FeedError)
		return
	}
	fmt.Fprintf(w, "Freedom Wall (%s)\n", v.PostCount)
	if len(v.Posts) == 0 {
		fmt.Fprintln(w, "Be the first to leave a message!")
		return
	}
	for _, p := range v.Posts {
		fmt.Fprintf(w, "\n%s · %s\n", p.Name, p.TimeAgo)
		for _, line := range strings.Split(p.Message, "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}
