package activity

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

const queryLimit = 100

// collections maps every GraphQL collection to the fields it selects.
var collections = []struct {
	name   string
	kind   Kind
	fields string
}{
	{"attacks", KindAttack, "id timestamp attacker winner loser attackerName winnerName loserName scoresWon"},
	{"killeds", KindKilled, "id timestamp nftId deadId killer winnerName loserName reward"},
	{"mints", KindMint, "id timestamp nftId"},
	{"playeds", KindPlayed, "id timestamp nftId nftName gameName points timeExtension"},
	{"itemConsumeds", KindItemConsumed, "id timestamp nftId nftName giver itemId"},
	{"shopItemPurchaseds", KindShopItemPurchased, "id timestamp nftId nftName giver itemId"},
	{"landTransferEvents", KindLandTransfer, "id timestamp from to tokenId blockHeight"},
	{"landMintedEvents", KindLandMinted, "id timestamp to tokenId mintPrice blockHeight"},
	{"landNameChangedEvents", KindLandNameChanged, "id timestamp tokenId name blockHeight"},
	{"villageUpgradedWithLeafEvents", KindVillageUpgradedWithLeaf, "id timestamp landId buildingId upgradeCost xp blockHeight"},
	{"villageSpeedUpWithSeedEvents", KindVillageSpeedUpWithSeed, "id timestamp landId buildingId speedUpCost xp blockHeight"},
	{"townUpgradedWithLeafEvents", KindTownUpgradedWithLeaf, "id timestamp landId buildingId upgradeCost xp blockHeight"},
	{"townSpeedUpWithSeedEvents", KindTownSpeedUpWithSeed, "id timestamp landId buildingId speedUpCost xp blockHeight"},
	{"questStartedEvents", KindQuestStarted, "id timestamp landId farmerSlotId difficulty startBlock endBlock blockHeight"},
	{"questFinalizedEvents", KindQuestFinalized, "id timestamp landId farmerSlotId player rewardType amount blockHeight"},
	{"villageProductionClaimedEvents", KindVillageProductionClaimed, "id timestamp landId buildingId blockHeight"},
}

var allActivityQuery = buildActivityQuery()

func buildActivityQuery() string {
	var sb strings.Builder
	sb.WriteString("query GetAllActivity {\n")
	for _, c := range collections {
		fmt.Fprintf(&sb, "  %s(orderBy: \"timestamp\", orderDirection: \"desc\", limit: %d) {\n    items { __typename %s }\n  }\n", c.name, queryLimit, c.fields)
	}
	sb.WriteString("}")
	return sb.String()
}

const shopItemsQuery = `query GetShopItems { shopItems { id name price effectTime description category } }`

const gardenItemsQuery = `query GetGardenItems { gardenItems { id name price points timeExtension description category } }`

// fallbackGardenItems is used when the indexer has no garden catalogue.
var fallbackGardenItems = map[string]string{
	"0": "Sunlight",
	"1": "Water",
	"2": "Fertilizer",
	"3": "Pollinator",
	"4": "Magic Soil",
	"5": "Dream Dew",
}

// FetchError reports a failed read from the indexer.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client talks to the Ponder GraphQL indexer.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient returns a Client for endpoint. A nil httpClient means a client
// with a 30s timeout.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: httpClient,
		logger:     log.With().Str("component", "activity").Logger(),
	}
}

type graphQLRequest struct {
	Query string `json:"query"`
}

func (c *Client) query(ctx context.Context, q string) ([]byte, error) {
	body, err := sonic.Marshal(graphQLRequest{Query: q})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphql request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read graphql response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("graphql request failed: %s", resp.Status)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("graphql response is not valid json")
	}
	if errs := gjson.GetBytes(data, "errors"); errs.Exists() && len(errs.Array()) > 0 {
		c.logger.Error().Str("errors", errs.Raw).Msg("graphql errors")
		return nil, fmt.Errorf("graphql errors: %s", errs.Get("0.message").String())
	}
	return data, nil
}

// FetchEvents returns the latest raw events across every collection.
// Records that cannot be decoded are dropped and logged.
func (c *Client) FetchEvents(ctx context.Context) ([]Event, error) {
	data, err := c.query(ctx, allActivityQuery)
	if err != nil {
		return nil, &FetchError{Source: "activity", Err: err}
	}

	var events []Event
	for _, coll := range collections {
		gjson.GetBytes(data, "data."+coll.name+".items").ForEach(func(_, item gjson.Result) bool {
			kind := coll.kind
			if tn := item.Get("__typename").String(); tn != "" {
				kind = Kind(tn)
			}
			ev, err := decodeEvent(kind, item.Raw)
			if err != nil {
				c.logger.Warn().Err(err).
					Str("collection", coll.name).
					Str("id", item.Get("id").String()).
					Msg("dropping undecodable record")
				return true
			}
			events = append(events, ev)
			return true
		})
	}
	c.logger.Debug().Int("events", len(events)).Msg("fetched activity")
	return events, nil
}

func (c *Client) fetchItemNames(ctx context.Context, q, path string) (map[string]string, error) {
	data, err := c.query(ctx, q)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string)
	gjson.GetBytes(data, path).ForEach(func(_, item gjson.Result) bool {
		id := item.Get("id").String()
		if id != "" {
			names[id] = item.Get("name").String()
		}
		return true
	})
	return names, nil
}

// FetchShopItems returns shop item names by id. Failures yield an empty map.
func (c *Client) FetchShopItems(ctx context.Context) map[string]string {
	names, err := c.fetchItemNames(ctx, shopItemsQuery, "data.shopItems")
	if err != nil {
		c.logger.Error().Err(err).Msg("fetch shop items failed")
		return map[string]string{}
	}
	return names
}

// FetchGardenItems returns garden item names by id, falling back to the
// built-in table when the indexer fails or has none.
func (c *Client) FetchGardenItems(ctx context.Context) map[string]string {
	names, err := c.fetchItemNames(ctx, gardenItemsQuery, "data.gardenItems")
	if err != nil {
		c.logger.Error().Err(err).Msg("fetch garden items failed, using fallback mapping")
		return maps.Clone(fallbackGardenItems)
	}
	if len(names) == 0 {
		c.logger.Info().Msg("indexer returned no garden items, using fallback mapping")
		return maps.Clone(fallbackGardenItems)
	}
	return names
}

// TestConnection reports whether one full activity fetch succeeds.
func (c *Client) TestConnection(ctx context.Context) bool {
	if _, err := c.FetchEvents(ctx); err != nil {
		c.logger.Error().Err(err).Msg("indexer connection test failed")
		return false
	}
	return true
}
