package main

import (
	"context"
	"time"

	"github.com/graph-gophers/dataloader/v7"
)

// DataLoaderContextKey is the key used to store dataloaders in context
type DataLoaderContextKey string

const dataLoaderKey DataLoaderContextKey = "dataloader"

// DataLoaders holds the per-request batched loaders.
type DataLoaders struct {
	ProfileLoader *dataloader.Loader[int, *Profile]
}

// NewDataLoaders creates new dataloaders over the profile store.
func NewDataLoaders(profiles ProfileStore) *DataLoaders {
	return &DataLoaders{
		ProfileLoader: dataloader.NewBatchedLoader(profileBatchFn(profiles), dataloader.WithWait[int, *Profile](16*time.Millisecond)),
	}
}

// GetDataLoadersFromContext retrieves dataloaders from context
func GetDataLoadersFromContext(ctx context.Context) *DataLoaders {
	if dl, ok := ctx.Value(dataLoaderKey).(*DataLoaders); ok {
		return dl
	}
	return nil
}

// WithDataLoaders adds dataloaders to context
func WithDataLoaders(ctx context.Context, dl *DataLoaders) context.Context {
	return context.WithValue(ctx, dataLoaderKey, dl)
}

// profileBatchFn collapses the per-match profile hydration of a listing page
// into one store round trip.
func profileBatchFn(profiles ProfileStore) dataloader.BatchFunc[int, *Profile] {
	return func(ctx context.Context, keys []int) []*dataloader.Result[*Profile] {
		results := make([]*dataloader.Result[*Profile], len(keys))
		for i := range results {
			results[i] = &dataloader.Result[*Profile]{}
		}
		if len(keys) == 0 {
			return results
		}

		found, err := profiles.Profiles(ctx, keys)
		if err != nil {
			for i := range results {
				results[i].Error = err
			}
			return results
		}
		for i, key := range keys {
			results[i].Data = found[key] // nil when the profile is gone
		}
		return results
	}
}

// loadPeerProfiles hydrates the peer side of a batch of match records via
// the batched loader so one listing page is one IN query.
func loadPeerProfiles(ctx context.Context, dl *DataLoaders, userID int, records []*MatchRecord) map[int]*Profile {
	peers := make(map[int]*Profile, len(records))
	if dl == nil {
		return peers
	}
	thunks := make([]func() (*Profile, error), 0, len(records))
	ids := make([]int, 0, len(records))
	for _, rec := range records {
		peerID := rec.Other(userID)
		ids = append(ids, peerID)
		thunks = append(thunks, dl.ProfileLoader.Load(ctx, peerID))
	}
	for i, thunk := range thunks {
		if p, err := thunk(); err == nil && p != nil {
			peers[ids[i]] = p
		}
	}
	return peers
}
