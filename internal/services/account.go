package services

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/xsx/internal/models"
	"github.com/desertthunder/xsx/internal/shared"
)

// Account is the set of X-Series operations the clone and seed paths need, bound to one account.
type Account struct {
	Domain string
	exec   Executor
	walker *Walker
}

// NewAccount binds exec to domain. pageSize configures collection walks.
func NewAccount(domain string, exec Executor, pageSize int, logger *log.Logger) *Account {
	return &Account{Domain: domain, exec: exec, walker: NewWalker(exec, pageSize, logger)}
}

// FetchAll walks the collection for t. See [Walker.FetchAll].
func (a *Account) FetchAll(ctx context.Context, t models.EntityType) iter.Seq2[models.SourceEntity, error] {
	return a.walker.FetchAll(ctx, t)
}

// Retailer returns the account summary. A 401 here means the token is wrong, a 404 the domain.
func (a *Account) Retailer(ctx context.Context) (models.Retailer, error) {
	var body struct {
		Data models.Retailer `json:"data"`
	}
	resp, err := a.exec.Execute(ctx, Get("/retailer"))
	if err != nil {
		return models.Retailer{}, err
	}
	if err := resp.Decode(&body); err != nil {
		return models.Retailer{}, err
	}
	return body.Data, nil
}

// Outlets returns every outlet of the account.
func (a *Account) Outlets(ctx context.Context) ([]models.SourceEntity, error) {
	return Collect(a.walker.FetchAll(ctx, models.Outlets))
}

// Inventory returns the stock levels of one product across outlets.
func (a *Account) Inventory(ctx context.Context, productID string) ([]models.InventoryLine, error) {
	var lines []models.InventoryLine
	for record, err := range a.walker.FetchPath(ctx, "/products/"+url.PathEscape(productID)+"/inventory") {
		if err != nil {
			return lines, err
		}
		outlet := record.String("outlet_id")
		if outlet == "" {
			continue
		}
		lines = append(lines, models.InventoryLine{OutletID: outlet, CurrentAmount: amount(record["current_amount"])})
	}
	return lines, nil
}

// Create posts payload to the collection for t and returns the new identifier.
//
// Products answer with a list of ids (one per family member, the first being the product itself);
// every other collection answers with a single object carrying an id.
func (a *Account) Create(ctx context.Context, t models.EntityType, payload map[string]any, idempotencyKey string) (string, error) {
	resp, err := a.exec.Execute(ctx, Post(collectionPath(string(t)), payload, idempotencyKey))
	if err != nil {
		return "", err
	}

	var body struct {
		Data json.RawMessage `json:"data"`
	}
	if err := resp.Decode(&body); err != nil {
		return "", err
	}

	id, err := createdID(t, body.Data)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", t.Singular(), err)
	}
	return id, nil
}

func createdID(t models.EntityType, data json.RawMessage) (string, error) {
	switch t {
	case models.Products:
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return "", fmt.Errorf("%w: expected a list of ids: %v", shared.ErrInvalidInput, err)
		}
		if len(ids) == 0 || ids[0] == "" {
			return "", fmt.Errorf("%w: empty id list", shared.ErrInvalidInput)
		}
		return ids[0], nil
	default:
		var obj struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return "", fmt.Errorf("%w: expected an object: %v", shared.ErrInvalidInput, err)
		}
		if obj.ID == "" {
			return "", fmt.Errorf("%w: response has no id", shared.ErrInvalidInput)
		}
		return obj.ID, nil
	}
}

type inventoryUpdate struct {
	Common  inventoryCommon  `json:"common"`
	Details inventoryDetails `json:"details"`
}

type inventoryCommon struct {
	TrackInventory bool `json:"track_inventory"`
}

type inventoryDetails struct {
	Inventory []models.InventoryLine `json:"inventory"`
}

// UpdateInventory sets stock levels on a destination product through the 2.1 API, enabling
// inventory tracking in the same call.
func (a *Account) UpdateInventory(ctx context.Context, productID string, lines []models.InventoryLine) error {
	body := inventoryUpdate{
		Common:  inventoryCommon{TrackInventory: true},
		Details: inventoryDetails{Inventory: lines},
	}
	_, err := a.exec.Execute(ctx, Put(V21, "/products/"+url.PathEscape(productID), body))
	return err
}

func amount(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}
