package pricing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
)

// ErrTransient marks market failures worth retrying.
var ErrTransient = errors.New("transient market failure")

// Quote is the trading post state of one item.
type Quote struct {
	ID          int64
	BuyPrice    int64
	BuyQty      int64
	SellPrice   int64
	SellQty     int64
	Whitelisted bool
}

// Activity is the combined order depth used to pick the fast tier interval.
func (q Quote) Activity() int64 {
	return q.BuyQty + q.SellQty
}

// ItemInfo is the static metadata of one item.
type ItemInfo struct {
	ID           int64
	Name         string
	Icon         string
	Rarity       string
	VendorValue  int64
	AccountBound bool
}

// Market is the external market API.
type Market interface {
	// Prices returns quotes for the tradable subset of ids.
	Prices(ctx context.Context, ids []int64) (map[int64]Quote, error)
	// Items returns metadata for the known subset of ids.
	Items(ctx context.Context, ids []int64) (map[int64]ItemInfo, error)
}

// HTTPMarket talks to a GW2-style REST API.
type HTTPMarket struct {
	client *resty.Client
}

// NewHTTPMarket creates a market client.
func NewHTTPMarket(cfg MarketConfig) *HTTPMarket {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 15
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(time.Duration(timeout)*time.Second).
		SetHeader("Accept", "application/json")
	return &HTTPMarket{client: client}
}

type priceDTO struct {
	ID          int64 `json:"id"`
	Whitelisted bool  `json:"whitelisted"`
	Buys        struct {
		Quantity  int64 `json:"quantity"`
		UnitPrice int64 `json:"unit_price"`
	} `json:"buys"`
	Sells struct {
		Quantity  int64 `json:"quantity"`
		UnitPrice int64 `json:"unit_price"`
	} `json:"sells"`
}

type itemDTO struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Icon        string   `json:"icon"`
	Rarity      string   `json:"rarity"`
	VendorValue int64    `json:"vendor_value"`
	Flags       []string `json:"flags"`
}

// Prices fetches /commerce/prices for the ids.
func (m *HTTPMarket) Prices(ctx context.Context, ids []int64) (map[int64]Quote, error) {
	var dtos []priceDTO
	if err := m.get(ctx, "/commerce/prices", ids, &dtos); err != nil {
		return nil, err
	}
	out := make(map[int64]Quote, len(dtos))
	for _, d := range dtos {
		out[d.ID] = Quote{
			ID:          d.ID,
			BuyPrice:    d.Buys.UnitPrice,
			BuyQty:      d.Buys.Quantity,
			SellPrice:   d.Sells.UnitPrice,
			SellQty:     d.Sells.Quantity,
			Whitelisted: d.Whitelisted,
		}
	}
	return out, nil
}

// Items fetches /items for the ids.
func (m *HTTPMarket) Items(ctx context.Context, ids []int64) (map[int64]ItemInfo, error) {
	var dtos []itemDTO
	if err := m.get(ctx, "/items", ids, &dtos); err != nil {
		return nil, err
	}
	out := make(map[int64]ItemInfo, len(dtos))
	for _, d := range dtos {
		out[d.ID] = ItemInfo{
			ID:           d.ID,
			Name:         d.Name,
			Icon:         d.Icon,
			Rarity:       d.Rarity,
			VendorValue:  d.VendorValue,
			AccountBound: hasBoundFlag(d.Flags),
		}
	}
	return out, nil
}

func (m *HTTPMarket) get(ctx context.Context, path string, ids []int64, out any) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) > MaxBatchSize {
		return fmt.Errorf("%d ids exceed the per-call cap of %d", len(ids), MaxBatchSize)
	}

	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParam("ids", joinIDs(ids)).
		Get(path)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", ErrTransient, path, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		// The API answers 404 when none of the ids are known.
		return nil
	case resp.StatusCode() < 200 || resp.StatusCode() > 299:
		return fmt.Errorf("%w: GET %s: status %d", ErrTransient, path, resp.StatusCode())
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func hasBoundFlag(flags []string) bool {
	for _, f := range flags {
		switch f {
		case "AccountBound", "SoulbindOnAcquire":
			return true
		}
	}
	return false
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
