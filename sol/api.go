package sol

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/meme-bots/go-nft/types"
	"github.com/pkg/errors"
)

const MaxDuration = 5 * time.Minute

// NewOffChainMetadata builds the JSON document a metadata uri is expected to
// serve for a single image NFT.
func NewOffChainMetadata(name, symbol, description, imageUrl string, attributes []types.Attribute) *types.OffChainMetadata {
	if attributes == nil {
		attributes = []types.Attribute{}
	}
	return &types.OffChainMetadata{
		Name:        name,
		Symbol:      symbol,
		Description: description,
		Image:       imageUrl,
		Attributes:  attributes,
		Properties: types.Properties{
			Files: []types.File{
				{Type: "image/png", Uri: imageUrl},
			},
			Category: "image",
		},
	}
}

func QueryOffChainMetadata(ctx context.Context, uri string) (*types.OffChainMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}

	ret, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer ret.Body.Close()

	if ret.StatusCode == http.StatusNotFound {
		return nil, types.ErrNotFound
	}
	if ret.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %d fetching %s", ret.StatusCode, uri)
	}

	body, err := io.ReadAll(ret.Body)
	if err != nil {
		return nil, err
	}

	var metadata types.OffChainMetadata
	err = json.Unmarshal(body, &metadata)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid metadata json at %s", uri)
	}

	return &metadata, nil
}

func QueryOffChainMetadataWithCache(ctx context.Context, cached *cache.Cache[[]byte], uri string) (*types.OffChainMetadata, error) {
	key := "QueryOffChainMetadata:" + uri

	data, err := cached.Get(ctx, key)
	if err == nil {
		var metadata types.OffChainMetadata
		err = json.Unmarshal(data, &metadata)
		if err != nil {
			return nil, err
		}
		return &metadata, nil
	}

	metadata, err := QueryOffChainMetadata(ctx, uri)
	if err != nil {
		return nil, err
	}

	data, err = json.Marshal(metadata)
	if err == nil {
		cached.Set(ctx, key, data, store.WithExpiration(MaxDuration))
	}

	return metadata, nil
}
