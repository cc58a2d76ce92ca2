package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"

	perr "animabook/internal/platform/errors"

	json "github.com/goccy/go-json"
)

// maxBody bounds decoded payload size per response
const maxBody = 4 << 20

// entityPaths maps catalog entity types to their by-id resource roots.
// graph-bearing types use the /full variant so the payload carries its
// relation sections in one fetch
var entityPaths = map[string]string{
	"anime":     "/anime/%d/full",
	"manga":     "/manga/%d/full",
	"character": "/characters/%d",
	"person":    "/people/%d",
	"producer":  "/producers/%d",
	"magazine":  "/magazines/%d",
	"club":      "/clubs/%d",
}

// subResources lists the extended fetches allowed per entity type
var subResources = map[string]map[string]bool{
	"anime": {"statistics": true, "staff": true, "characters": true, "news": true},
	"manga": {"statistics": true, "characters": true, "news": true},
}

// listingPaths maps seed listing names to their first-page paths
// %d is the page number
var listingPaths = map[string]string{
	"top_anime": "/top/anime?page=%d",
	"top_manga": "/top/manga?page=%d",
	"seasonal":  "/seasons/now?page=%d",
	"watch":     "/watch/episodes?page=%d",
	"genres":    "/genres/anime?page=%d",
	"producers": "/producers?page=%d",
	"magazines": "/magazines?page=%d",
	"clubs":     "/clubs?page=%d",
	"search":    "/anime?order_by=mal_id&sort=desc&page=%d",
}

// SupportsEntity reports whether entityType has a by-id endpoint
func SupportsEntity(entityType string) bool {
	_, ok := entityPaths[entityType]
	return ok
}

// SupportsListing reports whether name is a known seed listing
func SupportsListing(name string) bool {
	_, ok := listingPaths[name]
	return ok
}

// EntityByID fetches one entity document
// found=false with a nil error is the explicit not-found result
func (c *Client) EntityByID(ctx context.Context, entityType string, id int64) (Document, bool, error) {
	tmpl, ok := entityPaths[entityType]
	if !ok {
		return nil, false, perr.InvalidArgf("no by-id endpoint for entity type %q", entityType)
	}
	return c.fetchOne(ctx, fmt.Sprintf(tmpl, id))
}

// SubResource fetches an extended sub-resource document for an entity
func (c *Client) SubResource(ctx context.Context, entityType string, id int64, sub string) (Document, bool, error) {
	if !subResources[entityType][sub] {
		return nil, false, perr.InvalidArgf("no %q sub-resource for entity type %q", sub, entityType)
	}
	root := "/anime"
	if entityType == "manga" {
		root = "/manga"
	}
	doc, found, err := c.fetchEnvelope(ctx, fmt.Sprintf("%s/%d/%s", root, id, sub))
	if err != nil || !found {
		return nil, found, err
	}
	return doc, true, nil
}

// SubResourceList fetches a list-shaped sub-resource (news, staff, characters)
func (c *Client) SubResourceList(ctx context.Context, entityType string, id int64, sub string) ([]Document, bool, error) {
	if !subResources[entityType][sub] {
		return nil, false, perr.InvalidArgf("no %q sub-resource for entity type %q", sub, entityType)
	}
	root := "/anime"
	if entityType == "manga" {
		root = "/manga"
	}
	return c.fetchList(ctx, fmt.Sprintf("%s/%d/%s", root, id, sub))
}

// Listing fetches one page of a named listing
// hasNext reports upstream pagination; found=false means the page is past the end
func (c *Client) Listing(ctx context.Context, name string, page int) ([]Document, bool, error) {
	tmpl, ok := listingPaths[name]
	if !ok {
		return nil, false, perr.InvalidArgf("unknown listing %q", name)
	}
	if page < 1 {
		page = 1
	}
	docs, found, err := c.fetchList(ctx, fmt.Sprintf(tmpl, page))
	if err != nil || !found {
		return nil, false, err
	}
	return docs, true, nil
}

// fetchOne GETs path and decodes a single-object data envelope
func (c *Client) fetchOne(ctx context.Context, path string) (Document, bool, error) {
	doc, found, err := c.fetchEnvelope(ctx, path)
	if err != nil || !found {
		return nil, found, err
	}
	if doc.ID() == 0 {
		// an object without a stable id cannot be cataloged
		return nil, false, nil
	}
	return doc, true, nil
}

func (c *Client) fetchEnvelope(ctx context.Context, path string) (Document, bool, error) {
	resp, err := c.Do(ctx, path)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Str("path", path).Msg("upstream close body failed")
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}

	var env struct {
		Data map[string]any `json:"data"`
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, false, perr.Wrapf(err, perr.ErrorCodeUnavailable, "upstream read %s", path)
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, false, perr.Wrapf(err, perr.ErrorCodeJSON, "upstream decode %s", path)
	}
	if env.Data == nil {
		return nil, false, nil
	}
	return Document(env.Data), true, nil
}

func (c *Client) fetchList(ctx context.Context, path string) ([]Document, bool, error) {
	resp, err := c.Do(ctx, path)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Str("path", path).Msg("upstream close body failed")
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}

	var env struct {
		Data []map[string]any `json:"data"`
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, false, perr.Wrapf(err, perr.ErrorCodeUnavailable, "upstream read %s", path)
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, false, perr.Wrapf(err, perr.ErrorCodeJSON, "upstream decode %s", path)
	}
	out := make([]Document, 0, len(env.Data))
	for _, d := range env.Data {
		out = append(out, Document(d))
	}
	return out, true, nil
}
